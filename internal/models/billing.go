/**
 * Copyright 2025-present VeraGuard Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditBalance is the remote ledger's snapshot of a user's prepaid balance.
// The ledger owns it; the client holds a read-mostly mirror that is overwritten
// wholesale after every fetch or mutating call.
type CreditBalance struct {
	Credits          int             `json:"credits"`
	IsMember         bool            `json:"is_member"`
	LifetimeSpendEth decimal.Decimal `json:"lifetime_spend_eth"`
}

// FeeQuote is a time-boxed price offer from the pricing collaborator.
// Once expired it is refetched, never mutated in place.
type FeeQuote struct {
	AmountEthPerCredit    decimal.Decimal `json:"amount"`
	Expiry                int64           `json:"expiry"`
	Signature             string          `json:"signature"`
	SubscriptionAmountEth decimal.Decimal `json:"subscription_amount"`
	EthPriceUsd           decimal.Decimal `json:"eth_price_usd"`
}

// Expired reports whether the quote may no longer be transacted against.
func (q *FeeQuote) Expired(now time.Time) bool {
	return now.Unix() >= q.Expiry
}

// TimeLeft returns the remaining countdown, floored at zero.
func (q *FeeQuote) TimeLeft(now time.Time) time.Duration {
	left := q.Expiry - now.Unix()
	if left < 0 {
		left = 0
	}
	return time.Duration(left) * time.Second
}

// Total returns the ETH cost of the given number of credits at this quote.
func (q *FeeQuote) Total(credits int) decimal.Decimal {
	return q.AmountEthPerCredit.Mul(decimal.NewFromInt(int64(credits)))
}

// PurchaseIntent is the user's selected bundle or subscription choice.
// It is destroyed on confirm or abort and never partially applied.
type PurchaseIntent struct {
	CreditAmount   int
	IsSubscription bool
	ReferralCode   string
}

// SubscriptionCredits is the credit grant attached to the subscription plan.
// The grant itself is applied server-side; this is display data.
const SubscriptionCredits = 50

// ReferralStats is the server's view of a user's referral program standing.
// All referral logic (uses, earnings, eligibility) is server-authoritative.
type ReferralStats struct {
	Code          string `json:"code"`
	Uses          int    `json:"uses"`
	EarnedCredits int    `json:"earned"`
}

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

package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"veraguard-go/internal/engine"
	"veraguard-go/internal/history"
	"veraguard-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State names one position in the purchase machine.
type State string

const (
	StateIdle         State = "idle"
	StatePreviewShown State = "preview_shown"
	StateConfirming   State = "confirming"
	StateSuccess      State = "success"
)

// transitions is the legal move table. Anything not listed is rejected.
var transitions = map[State][]State{
	StateIdle:         {StatePreviewShown},
	StatePreviewShown: {StateConfirming, StateIdle, StatePreviewShown},
	StateConfirming:   {StateSuccess, StateIdle},
	StateSuccess:      {StateIdle},
}

var (
	// ErrInvalidTransition rejects operations that do not fit the current
	// state, including a second Confirm while one is in flight.
	ErrInvalidTransition = errors.New("operation not valid in current purchase state")

	// ErrTermsNotAccepted blocks Confirm until the acknowledgment gesture.
	ErrTermsNotAccepted = errors.New("terms must be accepted before confirming")

	// ErrQuoteExpired means the quote expired between preview and confirm.
	// The preview has been rebuilt against the fresh quote and must be shown
	// again before confirming.
	ErrQuoteExpired = errors.New("quote expired, review the updated preview")
)

// Quotes is the quote cache contract the flow reads at preview and again at
// confirm time.
type Quotes interface {
	Get(ctx context.Context) (*models.FeeQuote, error)
	TimeLeft() time.Duration
}

// Settlement is the payment collaborator.
type Settlement interface {
	SubmitPayment(ctx context.Context, request engine.PaymentRequest) (*models.CreditBalance, error)
}

// BalanceMirror adopts the settlement response snapshot.
type BalanceMirror interface {
	Adopt(balance models.CreditBalance)
}

// Identity supplies the user id and the settlement transaction reference.
type Identity interface {
	UserId() string
	PaymentTxHash() string
}

// ActivityRecorder appends purchases to the local vault log. Optional.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, record history.ActivityRecord) error
}

// Preview is what the user confirms against.
type Preview struct {
	Credits        int
	IsSubscription bool
	TotalEth       decimal.Decimal
	TotalUsd       decimal.Decimal
	QuoteTimeLeft  time.Duration
}

// Receipt is the time-boxed confirmation shown after a successful purchase.
type Receipt struct {
	Credits int
	CostEth decimal.Decimal
	ShownAt time.Time
}

// Flow is the purchase state machine. One settlement submission per confirm,
// no automatic retries, and the ledger snapshot from the response is adopted
// verbatim.
type Flow struct {
	quotes     Quotes
	settlement Settlement
	mirror     BalanceMirror
	identity   Identity
	recorder   ActivityRecorder

	receiptDuration time.Duration

	mu            sync.Mutex
	state         State
	intent        *models.PurchaseIntent
	previewQuote  *models.FeeQuote
	previewTotal  decimal.Decimal
	termsAccepted bool
	receipt       *Receipt
	receiptTimer  *time.Timer
	lastError     string
}

// Config wires a purchase flow.
type Config struct {
	Quotes          Quotes
	Settlement      Settlement
	Mirror          BalanceMirror
	Identity        Identity
	Recorder        ActivityRecorder
	ReceiptDuration time.Duration
}

func NewFlow(cfg Config) *Flow {
	receiptDuration := cfg.ReceiptDuration
	if receiptDuration <= 0 {
		receiptDuration = 6 * time.Second
	}
	return &Flow{
		quotes:          cfg.Quotes,
		settlement:      cfg.Settlement,
		mirror:          cfg.Mirror,
		identity:        cfg.Identity,
		recorder:        cfg.Recorder,
		receiptDuration: receiptDuration,
		state:           StateIdle,
	}
}

// State returns the current machine position.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError returns the inline error from the most recent failed confirm.
func (f *Flow) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// LastIntent returns the preserved selection after a failure, so the user can
// retry without re-entering choices.
func (f *Flow) LastIntent() *models.PurchaseIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intent == nil {
		return nil
	}
	intent := *f.intent
	return &intent
}

// to validates and performs a state transition. Callers hold f.mu.
func (f *Flow) to(next State) error {
	for _, allowed := range transitions[f.state] {
		if allowed == next {
			f.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, next)
}

// Begin validates the selection against a live quote and shows the preview.
// With no quote obtainable the flow aborts back to Idle (the cache has
// already forced a refetch attempt) instead of blocking the user.
func (f *Flow) Begin(ctx context.Context, intent models.PurchaseIntent) (*Preview, error) {
	if !intent.IsSubscription && intent.CreditAmount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive")
	}

	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	f.mu.Unlock()

	liveQuote, err := f.quotes.Get(ctx)
	if err != nil {
		zap.L().Warn("Purchase aborted, no live quote", zap.Error(err))
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.to(StatePreviewShown); err != nil {
		return nil, err
	}

	f.intent = &intent
	f.previewQuote = liveQuote
	f.previewTotal = intentTotal(&intent, liveQuote)
	f.termsAccepted = false
	f.lastError = ""

	return f.buildPreview(), nil
}

// AcceptTerms records the explicit acknowledgment gesture that enables
// Confirm.
func (f *Flow) AcceptTerms() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StatePreviewShown {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	f.termsAccepted = true
	return nil
}

// Abort discards the preview and returns to Idle. The selection is not
// preserved: the intent is destroyed on abort.
func (f *Flow) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StatePreviewShown {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	if err := f.to(StateIdle); err != nil {
		return err
	}
	f.intent = nil
	f.previewQuote = nil
	f.termsAccepted = false
	return nil
}

// Confirm issues exactly one payment-intent submission. The quote is re-read
// at confirm time; if it changed since the preview, the preview is rebuilt
// against the fresh quote and ErrQuoteExpired is returned so the user sees
// the updated arithmetic before transacting.
func (f *Flow) Confirm(ctx context.Context) (*Receipt, error) {
	f.mu.Lock()
	if f.state != StatePreviewShown {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	if !f.termsAccepted {
		f.mu.Unlock()
		return nil, ErrTermsNotAccepted
	}
	intent := *f.intent
	previewSignature := f.previewQuote.Signature
	f.mu.Unlock()

	confirmQuote, err := f.quotes.Get(ctx)
	if err != nil {
		return nil, f.fail(err)
	}

	f.mu.Lock()
	if confirmQuote.Signature != previewSignature {
		// Stale preview. Rebuild against the new quote and require a fresh
		// acknowledgment before submission.
		f.previewQuote = confirmQuote
		f.previewTotal = intentTotal(&intent, confirmQuote)
		f.termsAccepted = false
		_ = f.to(StatePreviewShown)
		f.mu.Unlock()
		return nil, ErrQuoteExpired
	}
	if err := f.to(StateConfirming); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	total := f.previewTotal
	f.mu.Unlock()

	request := engine.PaymentRequest{
		TxHash:         f.identity.PaymentTxHash(),
		UserId:         f.identity.UserId(),
		Credits:        intent.CreditAmount,
		IsSubscription: intent.IsSubscription,
		ReferralCode:   intent.ReferralCode,
	}
	if intent.IsSubscription {
		request.Credits = 0
	}

	balance, err := f.settlement.SubmitPayment(ctx, request)
	if err != nil {
		return nil, f.fail(err)
	}

	// Adopt the server's balance verbatim, never a locally computed sum.
	f.mirror.Adopt(*balance)

	grantedCredits := intent.CreditAmount
	if intent.IsSubscription {
		grantedCredits = models.SubscriptionCredits
	}

	receipt := &Receipt{Credits: grantedCredits, CostEth: total, ShownAt: time.Now()}

	f.mu.Lock()
	if err := f.to(StateSuccess); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.intent = nil
	f.receipt = receipt
	f.receiptTimer = time.AfterFunc(f.receiptDuration, func() {
		if err := f.DismissReceipt(); err != nil && !errors.Is(err, ErrInvalidTransition) {
			zap.L().Warn("Receipt auto-dismiss failed", zap.Error(err))
		}
	})
	f.mu.Unlock()

	f.recordPurchase(ctx, grantedCredits, total, intent.IsSubscription)

	zap.L().Info("Purchase settled",
		zap.Int("credits", grantedCredits),
		zap.String("cost_eth", total.String()),
		zap.Bool("subscription", intent.IsSubscription))

	return receipt, nil
}

// fail surfaces a settlement error inline and returns to Idle, preserving the
// user's selection for retry.
func (f *Flow) fail(cause error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastError = cause.Error()
	f.state = StateIdle
	f.termsAccepted = false
	zap.L().Warn("Purchase failed", zap.Error(cause))
	return cause
}

// Receipt returns the live receipt, or nil once dismissed or expired.
func (f *Flow) Receipt() *Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// DismissReceipt ends the confirmation display, either by the user or by the
// expiry timer.
func (f *Flow) DismissReceipt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateSuccess {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	if err := f.to(StateIdle); err != nil {
		return err
	}
	f.receipt = nil
	if f.receiptTimer != nil {
		f.receiptTimer.Stop()
		f.receiptTimer = nil
	}
	return nil
}

func (f *Flow) buildPreview() *Preview {
	preview := &Preview{
		Credits:        f.intent.CreditAmount,
		IsSubscription: f.intent.IsSubscription,
		TotalEth:       f.previewTotal,
		QuoteTimeLeft:  f.quotes.TimeLeft(),
	}
	if f.intent.IsSubscription {
		preview.Credits = models.SubscriptionCredits
	}
	if !f.previewQuote.EthPriceUsd.IsZero() {
		preview.TotalUsd = f.previewTotal.Mul(f.previewQuote.EthPriceUsd).Round(2)
	}
	return preview
}

// CurrentPreview rebuilds the preview view after ErrQuoteExpired.
func (f *Flow) CurrentPreview() *Preview {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StatePreviewShown || f.intent == nil {
		return nil
	}
	return f.buildPreview()
}

func (f *Flow) recordPurchase(ctx context.Context, credits int, total decimal.Decimal, isSubscription bool) {
	if f.recorder == nil {
		return
	}
	description := fmt.Sprintf("Purchased %d credits", credits)
	if isSubscription {
		description = "Activated Vera-Pass subscription"
	}
	err := f.recorder.RecordActivity(ctx, history.ActivityRecord{
		Type:        history.ActivityPurchase,
		Description: description,
		AmountEth:   total,
		Credits:     credits,
	})
	if err != nil {
		zap.L().Warn("Failed to record purchase in vault log", zap.Error(err))
	}
}

func intentTotal(intent *models.PurchaseIntent, liveQuote *models.FeeQuote) decimal.Decimal {
	if intent.IsSubscription {
		return liveQuote.SubscriptionAmountEth
	}
	return liveQuote.Total(intent.CreditAmount)
}

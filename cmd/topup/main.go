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

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"veraguard-go/internal/common"
	"veraguard-go/internal/config"
	"veraguard-go/internal/models"
	"veraguard-go/internal/purchase"

	"go.uber.org/zap"
)

func main() {
	creditsFlag := flag.Int("credits", 0, "Number of credits to purchase")
	subscriptionFlag := flag.Bool("subscription", false, "Purchase the monthly membership instead of a credit bundle")
	referralFlag := flag.String("referral", "", "Optional referral code to apply")
	walletFlag := flag.String("wallet", "", "Connect this wallet address before purchasing")
	logoutFlag := flag.Bool("logout", false, "Disconnect the wallet and exit; credits and history are preserved")
	yesFlag := flag.Bool("yes", false, "Accept terms and confirm without prompting")
	listFlag := flag.Bool("list", false, "List available bundles and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *listFlag {
		listBundles(ctx, services)
		return
	}

	if *logoutFlag {
		if err := services.Session.Logout(ctx); err != nil {
			zap.L().Fatal("Logout failed", zap.Error(err))
		}
		fmt.Println("Wallet disconnected. Your credits and audit history are preserved.")
		return
	}

	if *walletFlag != "" {
		if err := services.Session.ConnectWallet(ctx, *walletFlag); err != nil {
			zap.L().Fatal("Failed to connect wallet", zap.Error(err))
		}
		fmt.Printf("Wallet connected: %s\n", *walletFlag)
	}

	if !*subscriptionFlag && *creditsFlag <= 0 {
		fmt.Println("Usage: topup --credits N [--referral CODE] | topup --subscription")
		os.Exit(1)
	}

	services.Mirror.Refresh(ctx, services.Session.UserId())
	if balance, synced := services.Mirror.Current(); synced {
		common.PrintBalance(&balance, synced)
	}

	intent := models.PurchaseIntent{
		CreditAmount:   *creditsFlag,
		IsSubscription: *subscriptionFlag,
		ReferralCode:   strings.TrimSpace(*referralFlag),
	}

	receipt, err := runPurchase(ctx, services, intent, *yesFlag)
	if err != nil {
		if msg := services.Purchase.LastError(); msg != "" {
			fmt.Printf("\nPurchase failed: %s\n", msg)
		} else {
			fmt.Println("\nPurchase failed.")
		}
		zap.L().Error("Purchase did not complete", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("\n✓ Purchase complete: %d credits for %s ETH\n", receipt.Credits, receipt.CostEth.String())
	if balance, synced := services.Mirror.Current(); synced {
		common.PrintBalance(&balance, synced)
	}
}

// runPurchase drives the state machine: preview, terms, confirm. A quote
// that expires between preview and confirm rebuilds the preview at the new
// rate and asks again; one retry round is allowed.
func runPurchase(ctx context.Context, services *common.Services, intent models.PurchaseIntent, autoConfirm bool) (*purchase.Receipt, error) {
	preview, err := services.Purchase.Begin(ctx, intent)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		printPreview(preview)

		if !autoConfirm {
			if !confirm("Accept terms and pay?") {
				_ = services.Purchase.Abort()
				return nil, fmt.Errorf("purchase cancelled")
			}
		}
		if err := services.Purchase.AcceptTerms(); err != nil {
			return nil, err
		}

		receipt, err := services.Purchase.Confirm(ctx)
		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, purchase.ErrQuoteExpired) {
			fmt.Println("\nThe price quote expired. Updated pricing:")
			preview = services.Purchase.CurrentPreview()
			if preview == nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}

	_ = services.Purchase.Abort()
	return nil, fmt.Errorf("quote kept expiring before confirmation")
}

func printPreview(preview *purchase.Preview) {
	common.PrintHeader("PURCHASE PREVIEW", common.DefaultWidth)
	if preview.IsSubscription {
		fmt.Printf("  Monthly membership: %d credits plus member pricing\n", models.SubscriptionCredits)
	} else {
		fmt.Printf("  Credits: %d\n", preview.Credits)
	}
	fmt.Printf("  Total:   %s ETH (~$%s)\n", preview.TotalEth.String(), preview.TotalUsd.StringFixed(2))
	fmt.Printf("  Quote valid for %ds\n", int(preview.QuoteTimeLeft.Seconds()))
	common.PrintSeparator("=", common.DefaultWidth)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func listBundles(ctx context.Context, services *common.Services) {
	common.PrintHeader("CREDIT BUNDLES", common.DefaultWidth)
	member := services.Session.Current().IsMember

	if quote, err := services.Quotes.Get(ctx); err == nil {
		common.PrintQuoteCountdown(quote, time.Now())
	}
	for _, bundle := range services.Bundles.Bundles {
		fmt.Printf("  %-14s %d credits\n", bundle.Label, bundle.Credits)
	}

	standard := services.Bundles.Tiers.Standard
	deep := services.Bundles.Tiers.Deep
	if member {
		fmt.Printf("\n  Member pricing: standard %d, deep %d credits per audit\n",
			standard.MemberCredits, deep.MemberCredits)
	} else {
		fmt.Printf("\n  Pricing: standard %d, deep %d credits per audit\n",
			standard.Credits, deep.Credits)
		fmt.Printf("  Members pay: standard %d, deep %d\n",
			standard.MemberCredits, deep.MemberCredits)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

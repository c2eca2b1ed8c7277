package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"veraguard-go/internal/engine"
	"veraguard-go/internal/models"

	"github.com/shopspring/decimal"
)

type fakeQuotes struct {
	quotes []*models.FeeQuote
	err    error
}

func (f *fakeQuotes) Get(ctx context.Context) (*models.FeeQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	quote := f.quotes[0]
	if len(f.quotes) > 1 {
		f.quotes = f.quotes[1:]
	}
	return quote, nil
}

func (f *fakeQuotes) TimeLeft() time.Duration { return 25 * time.Second }

type fakeSettlement struct {
	balance  *models.CreditBalance
	err      error
	requests []engine.PaymentRequest
}

func (f *fakeSettlement) SubmitPayment(ctx context.Context, request engine.PaymentRequest) (*models.CreditBalance, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return f.balance, nil
}

type fakeMirror struct {
	adopted []models.CreditBalance
}

func (f *fakeMirror) Adopt(balance models.CreditBalance) {
	f.adopted = append(f.adopted, balance)
}

type fakeIdentity struct{}

func (fakeIdentity) UserId() string        { return "user-1" }
func (fakeIdentity) PaymentTxHash() string { return "0xvalid_abc123def" }

func purchaseQuote(signature string) *models.FeeQuote {
	return &models.FeeQuote{
		AmountEthPerCredit: decimal.RequireFromString("0.001"),
		Expiry:             time.Now().Add(time.Minute).Unix(),
		Signature:          signature,
		EthPriceUsd:        decimal.RequireFromString("3000"),
	}
}

func setupFlow(quotes *fakeQuotes, settlement *fakeSettlement, mirror *fakeMirror) *Flow {
	return NewFlow(Config{
		Quotes:          quotes,
		Settlement:      settlement,
		Mirror:          mirror,
		Identity:        fakeIdentity{},
		ReceiptDuration: time.Minute,
	})
}

func TestBegin_ShowsPreviewWithQuoteArithmetic(t *testing.T) {
	flow := setupFlow(&fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a")}}, &fakeSettlement{}, &fakeMirror{})

	preview, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 7})
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if preview.Credits != 7 {
		t.Errorf("Expected 7 credits, got %d", preview.Credits)
	}
	if !preview.TotalEth.Equal(decimal.RequireFromString("0.007")) {
		t.Errorf("Expected total 0.007 ETH, got %s", preview.TotalEth.String())
	}
	if !preview.TotalUsd.Equal(decimal.RequireFromString("21")) {
		t.Errorf("Expected total $21, got %s", preview.TotalUsd.String())
	}
	if flow.State() != StatePreviewShown {
		t.Errorf("Expected preview_shown, got %s", flow.State())
	}
}

func TestBegin_NoQuoteAbortsToIdle(t *testing.T) {
	flow := setupFlow(&fakeQuotes{err: errors.New("pricing down")}, &fakeSettlement{}, &fakeMirror{})

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 5}); err == nil {
		t.Fatal("Expected Begin to fail without a quote")
	}
	if flow.State() != StateIdle {
		t.Errorf("Expected idle after failed begin, got %s", flow.State())
	}
}

func TestConfirm_RequiresTermsAcceptance(t *testing.T) {
	flow := setupFlow(&fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a")}}, &fakeSettlement{}, &fakeMirror{})

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 5}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := flow.Confirm(context.Background()); !errors.Is(err, ErrTermsNotAccepted) {
		t.Errorf("Expected ErrTermsNotAccepted, got %v", err)
	}
}

func TestConfirm_AdoptsServerBalanceVerbatim(t *testing.T) {
	settlement := &fakeSettlement{balance: &models.CreditBalance{Credits: 99, IsMember: true}}
	mirror := &fakeMirror{}
	flow := setupFlow(&fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a")}}, settlement, mirror)

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 7}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.AcceptTerms(); err != nil {
		t.Fatalf("AcceptTerms failed: %v", err)
	}
	receipt, err := flow.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if receipt.Credits != 7 {
		t.Errorf("Expected receipt for 7 credits, got %d", receipt.Credits)
	}
	if !receipt.CostEth.Equal(decimal.RequireFromString("0.007")) {
		t.Errorf("Expected cost 0.007 ETH, got %s", receipt.CostEth.String())
	}
	if len(settlement.requests) != 1 {
		t.Fatalf("Expected exactly one settlement call, got %d", len(settlement.requests))
	}
	if settlement.requests[0].Credits != 7 || settlement.requests[0].UserId != "user-1" {
		t.Errorf("Unexpected payment request: %+v", settlement.requests[0])
	}
	// The mirror takes the server's 99, never preview arithmetic.
	if len(mirror.adopted) != 1 || mirror.adopted[0].Credits != 99 {
		t.Errorf("Expected adopted balance 99, got %+v", mirror.adopted)
	}
	if flow.State() != StateSuccess {
		t.Errorf("Expected success, got %s", flow.State())
	}
}

func TestConfirm_QuoteChangeForcesRepreview(t *testing.T) {
	settlement := &fakeSettlement{balance: &models.CreditBalance{Credits: 10}}
	quotes := &fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a"), purchaseQuote("sig-b")}}
	flow := setupFlow(quotes, settlement, &fakeMirror{})

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 5}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.AcceptTerms(); err != nil {
		t.Fatalf("AcceptTerms failed: %v", err)
	}

	if _, err := flow.Confirm(context.Background()); !errors.Is(err, ErrQuoteExpired) {
		t.Fatalf("Expected ErrQuoteExpired, got %v", err)
	}
	if len(settlement.requests) != 0 {
		t.Fatal("No payment may be submitted against a stale preview")
	}
	if flow.State() != StatePreviewShown {
		t.Errorf("Expected rebuilt preview, got %s", flow.State())
	}
	if flow.CurrentPreview() == nil {
		t.Fatal("Expected a rebuilt preview")
	}

	// Terms must be re-acknowledged against the new arithmetic.
	if _, err := flow.Confirm(context.Background()); !errors.Is(err, ErrTermsNotAccepted) {
		t.Fatalf("Expected ErrTermsNotAccepted after re-preview, got %v", err)
	}
	if err := flow.AcceptTerms(); err != nil {
		t.Fatalf("AcceptTerms failed: %v", err)
	}
	if _, err := flow.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm against fresh quote failed: %v", err)
	}
	if len(settlement.requests) != 1 {
		t.Errorf("Expected exactly one settlement call, got %d", len(settlement.requests))
	}
}

func TestConfirm_SubscriptionSendsZeroCredits(t *testing.T) {
	settlement := &fakeSettlement{balance: &models.CreditBalance{Credits: 50, IsMember: true}}
	flow := setupFlow(&fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a")}}, settlement, &fakeMirror{})

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{IsSubscription: true}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.AcceptTerms(); err != nil {
		t.Fatalf("AcceptTerms failed: %v", err)
	}
	receipt, err := flow.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if receipt.Credits != models.SubscriptionCredits {
		t.Errorf("Expected %d subscription credits, got %d", models.SubscriptionCredits, receipt.Credits)
	}
	if !settlement.requests[0].IsSubscription || settlement.requests[0].Credits != 0 {
		t.Errorf("Unexpected subscription request: %+v", settlement.requests[0])
	}
}

func TestConfirm_SettlementFailurePreservesIntent(t *testing.T) {
	settlement := &fakeSettlement{err: errors.New("engine 500")}
	mirror := &fakeMirror{}
	flow := setupFlow(&fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a")}}, settlement, mirror)

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 5, ReferralCode: "FRIEND"}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.AcceptTerms(); err != nil {
		t.Fatalf("AcceptTerms failed: %v", err)
	}
	if _, err := flow.Confirm(context.Background()); err == nil {
		t.Fatal("Expected settlement failure")
	}

	if flow.State() != StateIdle {
		t.Errorf("Expected idle after failure, got %s", flow.State())
	}
	if flow.LastError() == "" {
		t.Error("Expected an inline error message")
	}
	if len(mirror.adopted) != 0 {
		t.Error("No balance may be adopted on failure")
	}
	intent := flow.LastIntent()
	if intent == nil || intent.CreditAmount != 5 || intent.ReferralCode != "FRIEND" {
		t.Errorf("Expected preserved selection, got %+v", intent)
	}
}

func TestAbort_DestroysIntent(t *testing.T) {
	flow := setupFlow(&fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a")}}, &fakeSettlement{}, &fakeMirror{})

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 5}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if flow.State() != StateIdle {
		t.Errorf("Expected idle, got %s", flow.State())
	}
	if flow.LastIntent() != nil {
		t.Error("Abort must destroy the selection")
	}
}

func TestDismissReceipt_ReturnsToIdle(t *testing.T) {
	settlement := &fakeSettlement{balance: &models.CreditBalance{Credits: 5}}
	flow := setupFlow(&fakeQuotes{quotes: []*models.FeeQuote{purchaseQuote("sig-a")}}, settlement, &fakeMirror{})

	if _, err := flow.Begin(context.Background(), models.PurchaseIntent{CreditAmount: 5}); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := flow.AcceptTerms(); err != nil {
		t.Fatalf("AcceptTerms failed: %v", err)
	}
	if _, err := flow.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if flow.Receipt() == nil {
		t.Fatal("Expected a live receipt")
	}
	if err := flow.DismissReceipt(); err != nil {
		t.Fatalf("DismissReceipt failed: %v", err)
	}
	if flow.Receipt() != nil {
		t.Error("Receipt must clear on dismiss")
	}
	if flow.State() != StateIdle {
		t.Errorf("Expected idle, got %s", flow.State())
	}
}

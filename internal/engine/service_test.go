package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func setupEngine(t *testing.T, handler http.Handler) (*Service, func()) {
	server := httptest.NewServer(handler)
	service, err := NewService(server.URL, 5*time.Second)
	if err != nil {
		server.Close()
		t.Fatalf("NewService failed: %v", err)
	}
	return service, server.Close
}

func TestGetFeeQuote_DecodesEnvelope(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/fee" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"quote":{"amount":"0.001","expiry":1890000000,"signature":"sig-1",` +
			`"subscription_amount":"0.05","eth_price_usd":"3000"}}`))
	}))
	defer cleanup()

	quote, err := service.GetFeeQuote(context.Background())
	if err != nil {
		t.Fatalf("GetFeeQuote failed: %v", err)
	}
	if quote.Signature != "sig-1" || quote.Expiry != 1890000000 {
		t.Errorf("Unexpected quote: %+v", quote)
	}
	if quote.AmountEthPerCredit.String() != "0.001" {
		t.Errorf("Unexpected rate: %s", quote.AmountEthPerCredit.String())
	}
}

func TestGetFeeQuote_EmptyEnvelopeIsError(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer cleanup()

	if _, err := service.GetFeeQuote(context.Background()); err == nil {
		t.Fatal("Expected an error for a quote-less response")
	}
}

func TestGetCredits_PathAndDecode(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/credits/user-1" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"credits":4,"is_member":true,"lifetime_spend_eth":"0.02"}`))
	}))
	defer cleanup()

	balance, err := service.GetCredits(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetCredits failed: %v", err)
	}
	if balance.Credits != 4 || !balance.IsMember {
		t.Errorf("Unexpected balance: %+v", balance)
	}
}

func TestSubmitPayment_SendsIntentAndReturnsSnapshot(t *testing.T) {
	var received PaymentRequest
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/pay" {
			t.Errorf("Unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		w.Write([]byte(`{"credits":12,"is_member":false,"lifetime_spend_eth":"0.007"}`))
	}))
	defer cleanup()

	balance, err := service.SubmitPayment(context.Background(), PaymentRequest{
		TxHash:       "0xvalid_abc",
		UserId:       "user-1",
		Credits:      7,
		ReferralCode: "FRIEND",
	})
	if err != nil {
		t.Fatalf("SubmitPayment failed: %v", err)
	}
	if balance.Credits != 12 {
		t.Errorf("Expected server snapshot 12, got %d", balance.Credits)
	}
	if received.TxHash != "0xvalid_abc" || received.Credits != 7 || received.ReferralCode != "FRIEND" {
		t.Errorf("Unexpected payment payload: %+v", received)
	}
}

func TestSubmitPayment_ValidatesInput(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Invalid input must not reach the engine")
	}))
	defer cleanup()

	if _, err := service.SubmitPayment(context.Background(), PaymentRequest{UserId: "u", TxHash: "0xvalid_a"}); err == nil {
		t.Error("Expected rejection of zero credits")
	}
	if _, err := service.SubmitPayment(context.Background(), PaymentRequest{UserId: "u", Credits: 1}); err == nil {
		t.Error("Expected rejection of missing tx hash")
	}
}

func TestSubmitAudit_DecodesReport(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"vera_score":77,"warnings":["reentrancy"],"risk_summary":"moderate",` +
			`"report_hash":"h1","cost_deducted":1,"credit_source":"credits","is_proxy":false}`))
	}))
	defer cleanup()

	outcome, err := service.SubmitAudit(context.Background(), AuditSubmission{
		Address: "0x1111111111111111111111111111111111111111",
		UserId:  "user-1",
	})
	if err != nil {
		t.Fatalf("SubmitAudit failed: %v", err)
	}
	if outcome.RequiresApproval {
		t.Fatal("Expected a report, not an escalation")
	}
	if outcome.Report.Score != 77 || outcome.Report.CostDeducted != 1 {
		t.Errorf("Unexpected report: %+v", outcome.Report)
	}
	if outcome.Report.Address != "0x1111111111111111111111111111111111111111" {
		t.Errorf("Report must carry the submitted address, got %s", outcome.Report.Address)
	}
}

func TestSubmitAudit_RequiresApproval(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"requires_approval"}`))
	}))
	defer cleanup()

	outcome, err := service.SubmitAudit(context.Background(), AuditSubmission{
		Address: "0x1111111111111111111111111111111111111111",
		UserId:  "user-1",
	})
	if err != nil {
		t.Fatalf("SubmitAudit failed: %v", err)
	}
	if !outcome.RequiresApproval {
		t.Error("Expected the escalation signal")
	}
}

func TestSubmitAudit_InsufficientCreditsWithDetail(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"detail":"Deep audit costs 3 credits, you have 1"}`))
	}))
	defer cleanup()

	_, err := service.SubmitAudit(context.Background(), AuditSubmission{
		Address: "0x1111111111111111111111111111111111111111",
		UserId:  "user-1",
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("Expected ErrInsufficientCredits, got %v", err)
	}
	if !strings.Contains(err.Error(), "Deep audit costs 3 credits") {
		t.Errorf("Expected the server detail to survive, got %v", err)
	}
}

func TestSubmitAudit_VaultHalted(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer cleanup()

	_, err := service.SubmitAudit(context.Background(), AuditSubmission{
		Address: "0x1111111111111111111111111111111111111111",
		UserId:  "user-1",
	})
	if !errors.Is(err, ErrVaultHalted) {
		t.Fatalf("Expected ErrVaultHalted, got %v", err)
	}
}

func TestSubmitAudit_EnvelopeErrorSurfaces(t *testing.T) {
	service, cleanup := setupEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"invalid contract address"}`))
	}))
	defer cleanup()

	_, err := service.SubmitAudit(context.Background(), AuditSubmission{
		Address: "0x1111111111111111111111111111111111111111",
		UserId:  "user-1",
	})
	if err == nil || !strings.Contains(err.Error(), "invalid contract address") {
		t.Errorf("Expected the envelope error, got %v", err)
	}
}

func TestWebsocketURL_Derivation(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/api/live/ws"},
		{"https://engine.example.com", "wss://engine.example.com/api/live/ws"},
		{"https://engine.example.com/v1/", "wss://engine.example.com/v1/api/live/ws"},
	}
	for _, tt := range tests {
		service, err := NewService(tt.base, time.Second)
		if err != nil {
			t.Fatalf("NewService(%s) failed: %v", tt.base, err)
		}
		got, err := service.websocketURL()
		if err != nil {
			t.Fatalf("websocketURL failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("websocketURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}

package triage

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"veraguard-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

const validAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type fakeChainReader struct {
	code       []byte
	codeErr    error
	storage    []byte
	storageErr error
}

func (f *fakeChainReader) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return f.code, f.codeErr
}

func (f *fakeChainReader) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	return f.storage, f.storageErr
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"checksummed", validAddress, false},
		{"lowercase", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"missing prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", false},
		{"too short", "0x5aaeb6", true},
		{"not hex", "0xZZZeb6053f3e94c9b9a09f33669435e7ef1beaed", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.wantErr && !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("Expected ErrInvalidAddress, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
		})
	}
}

func TestClassify_NoReaderIsNotKnowable(t *testing.T) {
	classifier := NewClassifierWithReader(nil, time.Second)

	result, err := classifier.Classify(context.Background(), validAddress)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Known {
		t.Error("Without an endpoint the tier is not knowable")
	}
}

func TestClassify_SmallContractIsStandard(t *testing.T) {
	reader := &fakeChainReader{code: make([]byte, 500)}
	classifier := NewClassifierWithReader(reader, time.Second)

	result, err := classifier.Classify(context.Background(), validAddress)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !result.Known || result.Tier != models.TierStandard {
		t.Errorf("Expected known standard, got %+v", result)
	}
	if result.BytecodeSize != 500 {
		t.Errorf("Expected 500 bytes, got %d", result.BytecodeSize)
	}
}

func TestClassify_LargeContractRecommendsDeep(t *testing.T) {
	reader := &fakeChainReader{code: make([]byte, DeepDiveSizeThreshold+1)}
	classifier := NewClassifierWithReader(reader, time.Second)

	result, err := classifier.Classify(context.Background(), validAddress)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Tier != models.TierDeep {
		t.Errorf("Expected deep recommendation, got %+v", result)
	}
}

func TestClassify_MinimalProxyRecommendsDeep(t *testing.T) {
	code := append(common.Hex2Bytes("363d3d373d3d3d363d73"), make([]byte, 25)...)
	classifier := NewClassifierWithReader(&fakeChainReader{code: code}, time.Second)

	result, err := classifier.Classify(context.Background(), validAddress)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !result.IsProxy || result.Tier != models.TierDeep {
		t.Errorf("Expected proxy deep, got %+v", result)
	}
}

func TestClassify_PopulatedImplSlotRecommendsDeep(t *testing.T) {
	slot := make([]byte, 32)
	slot[31] = 0x42
	reader := &fakeChainReader{code: make([]byte, 100), storage: slot}
	classifier := NewClassifierWithReader(reader, time.Second)

	result, err := classifier.Classify(context.Background(), validAddress)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !result.IsProxy || result.Tier != models.TierDeep {
		t.Errorf("Expected EIP-1967 proxy deep, got %+v", result)
	}
}

func TestClassify_EmptyImplSlotIsNotProxy(t *testing.T) {
	reader := &fakeChainReader{code: make([]byte, 100), storage: make([]byte, 32)}
	classifier := NewClassifierWithReader(reader, time.Second)

	result, err := classifier.Classify(context.Background(), validAddress)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.IsProxy {
		t.Errorf("Zero slot must not flag a proxy: %+v", result)
	}
}

func TestClassify_ProbeFailureDegrades(t *testing.T) {
	reader := &fakeChainReader{codeErr: errors.New("rpc timeout")}
	classifier := NewClassifierWithReader(reader, time.Second)

	result, err := classifier.Classify(context.Background(), validAddress)
	if err != nil {
		t.Fatalf("Probe failure must not block the audit: %v", err)
	}
	if result.Known {
		t.Error("A failed probe is not a verdict")
	}
}

func TestClassify_RejectsMalformedAddress(t *testing.T) {
	classifier := NewClassifierWithReader(&fakeChainReader{}, time.Second)
	if _, err := classifier.Classify(context.Background(), "0xnope"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
}

func TestCreditCost(t *testing.T) {
	tests := []struct {
		name     string
		tier     models.Tier
		isMember bool
		want     int
	}{
		{"standard", models.TierStandard, false, 1},
		{"standard member", models.TierStandard, true, 0},
		{"deep", models.TierDeep, false, 3},
		{"deep member", models.TierDeep, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CreditCost(tt.tier, tt.isMember, 1, 0, 3, 2); got != tt.want {
				t.Errorf("CreditCost = %d, want %d", got, tt.want)
			}
		})
	}
}

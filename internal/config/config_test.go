package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.BaseURL != "http://localhost:8000" {
		t.Errorf("Unexpected default base URL: %s", cfg.Engine.BaseURL)
	}
	if cfg.Flow.StandardAnalysisFloor != 2500*time.Millisecond {
		t.Errorf("Unexpected standard floor: %s", cfg.Flow.StandardAnalysisFloor)
	}
	if cfg.Flow.DeepAnalysisFloor != 6*time.Second {
		t.Errorf("Unexpected deep floor: %s", cfg.Flow.DeepAnalysisFloor)
	}
	if cfg.Chain.RPCURL != "" {
		t.Errorf("Chain RPC must default to disabled, got %s", cfg.Chain.RPCURL)
	}
	if cfg.State.MaxOpenConns != 25 {
		t.Errorf("Unexpected max open conns: %d", cfg.State.MaxOpenConns)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_BASE_URL", "https://engine.example.com")
	t.Setenv("AUDIT_DEEP_FLOOR", "9s")
	t.Setenv("DB_MAX_OPEN_CONNS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.BaseURL != "https://engine.example.com" {
		t.Errorf("Override not applied: %s", cfg.Engine.BaseURL)
	}
	if cfg.Flow.DeepAnalysisFloor != 9*time.Second {
		t.Errorf("Override not applied: %s", cfg.Flow.DeepAnalysisFloor)
	}
	if cfg.State.MaxOpenConns != 3 {
		t.Errorf("Override not applied: %d", cfg.State.MaxOpenConns)
	}
}

func TestLoad_RejectsInvalidDuration(t *testing.T) {
	t.Setenv("ENGINE_REQUEST_TIMEOUT", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("Expected invalid duration to be rejected")
	}
}

func TestLoadBundles_MissingFileFallsBack(t *testing.T) {
	cfg, err := LoadBundles(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadBundles failed: %v", err)
	}
	if len(cfg.Bundles) == 0 {
		t.Fatal("Expected default bundles")
	}
	if cfg.Tiers.Deep.Credits != 3 || cfg.Tiers.Deep.MemberCredits != 2 {
		t.Errorf("Unexpected default deep tier: %+v", cfg.Tiers.Deep)
	}
	if cfg.Tiers.Standard.Credits != 1 || cfg.Tiers.Standard.MemberCredits != 0 {
		t.Errorf("Unexpected default standard tier: %+v", cfg.Tiers.Standard)
	}
}

func TestLoadBundles_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.yaml")
	content := `
bundles:
  - credits: 2
    label: Duo
tiers:
  standard:
    credits: 1
    member_credits: 0
  deep:
    credits: 4
    member_credits: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadBundles(path)
	if err != nil {
		t.Fatalf("LoadBundles failed: %v", err)
	}
	if len(cfg.Bundles) != 1 || cfg.Bundles[0].Credits != 2 {
		t.Errorf("Unexpected bundles: %+v", cfg.Bundles)
	}
	if cfg.Tiers.Deep.Credits != 4 {
		t.Errorf("Unexpected deep cost: %d", cfg.Tiers.Deep.Credits)
	}
}

func TestLoadBundles_RejectsInvalidPresets(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no bundles", "bundles: []\ntiers:\n  standard: {credits: 1}\n  deep: {credits: 3}\n"},
		{"zero credits", "bundles:\n  - credits: 0\ntiers:\n  standard: {credits: 1}\n  deep: {credits: 3}\n"},
		{"missing tiers", "bundles:\n  - credits: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bundles.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			if _, err := LoadBundles(path); err == nil {
				t.Error("Expected validation failure")
			}
		})
	}
}

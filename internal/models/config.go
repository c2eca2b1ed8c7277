package models

import "time"

// Config represents the application configuration
type Config struct {
	Engine EngineConfig
	Chain  ChainConfig
	State  StateConfig
	Flow   FlowConfig
	Live   LiveConfig
}

// EngineConfig holds settings for the remote VeraGuard engine
type EngineConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// ChainConfig holds settings for the optional on-chain triage probe
type ChainConfig struct {
	RPCURL       string
	ProbeTimeout time.Duration
}

// StateConfig holds local state database settings
type StateConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// FlowConfig holds timing knobs for the purchase and audit flows
type FlowConfig struct {
	StandardAnalysisFloor time.Duration
	DeepAnalysisFloor     time.Duration
	ReceiptDuration       time.Duration
	BundlesFile           string
}

// LiveConfig holds push channel subscription settings
type LiveConfig struct {
	ReconnectInterval time.Duration
	DialTimeout       time.Duration
}

package engine

import "errors"

// Domain-coded rejections from the metered analysis endpoint. Everything else
// non-2xx surfaces as a generic error and is never retried automatically.
var (
	// ErrInsufficientCredits maps the engine's 402 response. Credits are
	// untouched server-side when this is returned.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrVaultHalted maps the engine's 503 response: the security vault is
	// insolvent and audits are halted for safety.
	ErrVaultHalted = errors.New("security vault insolvent, audits halted")
)

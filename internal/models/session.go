package models

import "time"

// Session identifies the local user. UserId is generated once and persisted;
// WalletAddress is set only by an explicit connect and cleared only by logout,
// which preserves UserId.
type Session struct {
	UserId        string    `db:"user_id"`
	WalletAddress string    `db:"wallet_address"`
	IsMember      bool      `db:"is_member"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

package models

import "time"

// DerivationParams describes how a client must derive its login key. The
// server stores the parameters opaquely and hands them back before sign-in so
// the derivation is reproducible on any device.
type DerivationParams struct {
	Func    string
	Alg     string
	Cost    int
	KeySize int
	Nonce   string
	Salt    string
	Version string
}

// User is an account row. EncryptedPassword is the client-derived secret; the
// server never sees the plaintext password.
type User struct {
	UUID              string
	Email             string
	EncryptedPassword string
	Params            DerivationParams

	// Brute-force lockout state.
	NumFailedAttempts int
	LockedUntil       *time.Time

	UpdatedWithUserAgent string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Locked reports whether the account is locked out at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

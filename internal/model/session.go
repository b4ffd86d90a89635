package model

import "time"

// PairingSession is a short-lived capability token linking an uploading
// phone to a receiving desktop. Only the sha256 hash of the token is
// stored; the raw token exists only in the create-session response.
type PairingSession struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

// Expired reports whether the session grants no further capability at the
// given instant. Callers must use this rather than trusting the store to
// have swept expired rows.
func (s *PairingSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

type CreateSessionParams struct {
	TokenHash string
	OwnerID   string
	ExpiresAt time.Time
}

package types

import "time"

// RefreshToken is an opaque, revocable credential used to mint new access
// tokens. Expired rows are swept by the store; logout revokes explicitly.
type RefreshToken struct {
	ID        int       `json:"id" db:"id"`
	Token     string    `json:"token" db:"token"`
	SubjectID int       `json:"subject_id" db:"subject_id"`
	// SubjectType discriminates the owner: "user" or "admin".
	SubjectType string    `json:"subject_type" db:"subject_type"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	Revoked     bool      `json:"revoked" db:"revoked"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Valid reports whether the token can still be redeemed at time now.
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

package types

import "time"

// Roles a regular account can hold. Admins are a separate identity class
// (see Admin) and never appear in the users table.
const (
	RoleUser = "user"
	RoleLead = "lead"
)

// User represents a regular account in the system.
// It contains identity, role, department membership and lifecycle flags.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's unique email address, used for login.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system,
	// either "user" or "lead".
	Role string `json:"role" db:"role"`

	// Department is the organizational unit the user belongs to. Leads may
	// only run projects inside their own department.
	Department string `json:"department" db:"department"`

	// Approved is set by an admin after reviewing a registration. Unapproved
	// users cannot log in.
	Approved bool `json:"approved" db:"approved"`

	// IsActive soft-disables the account without deleting its history.
	IsActive bool `json:"is_active" db:"is_active"`

	// DeviceToken is the push-notification address of the user's device.
	// Empty when the user never registered a device.
	DeviceToken string `json:"-" db:"device_token"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Admin is a separate identity class from User. There is one record per
// configured admin email; login is checked against configured credentials,
// the stored hash exists only for bookkeeping.
type Admin struct {
	ID           int       `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Principal types carried in access tokens.
const (
	PrincipalUser  = "user"
	PrincipalAdmin = "admin"
)

// Principal is the already-authenticated identity attached to a request.
// Handlers trust it completely and perform only authorization checks.
type Principal struct {
	ID         int
	Type       string // "user" or "admin"
	Role       string // "user", "lead" or "admin"
	Department string
}

// IsAdmin reports whether the principal is an admin identity.
func (p Principal) IsAdmin() bool {
	return p.Type == PrincipalAdmin
}

package identity

import (
	"errors"
	"time"
)

const (
	// StatusPending marks an account that verified its email but awaits approval.
	StatusPending = "pending"
	// StatusApproved marks an account allowed to log in.
	StatusApproved = "approved"
)

var (
	// ErrAccountExists is returned when registering an email that is already verified.
	ErrAccountExists = errors.New("an account with this email already exists")
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned for a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Account represents a registered portal user.
type Account struct {
	ID             string
	Email          string
	TaxID          string
	WhatsappNumber string
	PasswordHash   []byte
	EmailVerified  bool
	Status         string
	CreatedAt      time.Time
}

// Registration is the sign-up request accepted by the service.
type Registration struct {
	Email          string
	TaxID          string
	WhatsappNumber string
	Password       string
}

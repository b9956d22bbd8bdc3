package company

import (
	"errors"
	"time"
)

const (
	// StatusApproved companies are offered to registering users.
	StatusApproved = "approved"
	// StatusPending companies await review and are hidden from the directory.
	StatusPending = "pending"
)

var (
	ErrNotFound          = errors.New("company not found")
	ErrNotApproved       = errors.New("company is not approved")
	ErrAlreadyAssociated = errors.New("company already associated with this account")
)

// Company is an entry of the company directory.
type Company struct {
	ID        string
	Name      string
	TaxID     string
	Email     string
	Status    string
	CreatedAt time.Time
}

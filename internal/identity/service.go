package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var taxIDPattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[A-Z0-9]{3}$`)

// Service manages the account lifecycle.
type Service struct {
	repo        Repository
	autoApprove bool
}

// NewService creates a new identity service. With autoApprove, accounts become approved as
// soon as their email is verified; otherwise they wait for Approve.
func NewService(repo Repository, autoApprove bool) *Service {
	return &Service{repo: repo, autoApprove: autoApprove}
}

// Register creates an unverified account. Registering again with an email that was never
// verified replaces the pending details instead of failing.
func (s *Service) Register(ctx context.Context, reg Registration) (Account, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	taxID := strings.ToUpper(strings.TrimSpace(reg.TaxID))
	if email == "" || reg.WhatsappNumber == "" {
		return Account{}, errors.New("email and whatsapp number are required")
	}
	if !taxIDPattern.MatchString(taxID) {
		return Account{}, errors.New("tax id must be 4 letters, 6 digits and 3 letters or digits")
	}
	if len(reg.Password) < 6 {
		return Account{}, errors.New("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.EmailVerified:
		return Account{}, ErrAccountExists
	case err == nil:
		existing.TaxID = taxID
		existing.WhatsappNumber = reg.WhatsappNumber
		existing.PasswordHash = hash
		if err := s.repo.Update(ctx, existing); err != nil {
			return Account{}, err
		}
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return Account{}, err
	}

	account := Account{
		ID:             uuid.New().String(),
		Email:          email,
		TaxID:          taxID,
		WhatsappNumber: reg.WhatsappNumber,
		PasswordHash:   hash,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Authenticate verifies credentials. It does not look at verification or approval state;
// callers decide how to answer those.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// MarkVerified records a successful email verification.
func (s *Service) MarkVerified(ctx context.Context, email string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	account.EmailVerified = true
	if s.autoApprove {
		account.Status = StatusApproved
	}
	if err := s.repo.Update(ctx, account); err != nil {
		return Account{}, fmt.Errorf("mark verified: %w", err)
	}
	return account, nil
}

// Approve moves a pending account to approved.
func (s *Service) Approve(ctx context.Context, email string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	account.Status = StatusApproved
	if err := s.repo.Update(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// Lookup returns an account by email.
func (s *Service) Lookup(ctx context.Context, email string) (Account, error) {
	return s.repo.FindByEmail(ctx, email)
}

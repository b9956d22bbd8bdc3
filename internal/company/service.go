package company

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service exposes the company directory and account associations.
type Service struct {
	repo Repository
}

// NewService builds a company service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Seed inserts the given companies, skipping tax ids that already exist.
func (s *Service) Seed(ctx context.Context, entries []SeedEntry) error {
	for _, e := range entries {
		status := e.Status
		if status == "" {
			status = StatusApproved
		}
		c := Company{
			ID:        uuid.New().String(),
			Name:      e.Name,
			TaxID:     strings.ToUpper(e.TaxID),
			Email:     e.Email,
			Status:    status,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.Create(ctx, c); err != nil {
			return fmt.Errorf("seed company %s: %w", e.Name, err)
		}
	}
	return nil
}

// Approved lists the companies a registering user may associate with.
func (s *Service) Approved(ctx context.Context) ([]Company, error) {
	return s.repo.ListByStatus(ctx, StatusApproved)
}

// FindByTaxID returns the approved or pending company registered under taxID.
func (s *Service) FindByTaxID(ctx context.Context, taxID string) (Company, error) {
	for _, status := range []string{StatusApproved, StatusPending} {
		cs, err := s.repo.ListByStatus(ctx, status)
		if err != nil {
			return Company{}, err
		}
		for _, c := range cs {
			if strings.EqualFold(c.TaxID, taxID) {
				return c, nil
			}
		}
	}
	return Company{}, ErrNotFound
}

// Associate links an account with an approved company.
func (s *Service) Associate(ctx context.Context, accountID, companyID string) (Company, error) {
	c, err := s.repo.Get(ctx, companyID)
	if err != nil {
		return Company{}, err
	}
	if c.Status != StatusApproved {
		return Company{}, ErrNotApproved
	}
	if err := s.repo.Associate(ctx, accountID, companyID); err != nil {
		if errors.Is(err, ErrAlreadyAssociated) {
			return c, err
		}
		return Company{}, fmt.Errorf("associate company: %w", err)
	}
	return c, nil
}

// ForAccount lists the companies linked to the account.
func (s *Service) ForAccount(ctx context.Context, accountID string) ([]Company, error) {
	return s.repo.ListForAccount(ctx, accountID)
}

package company

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func seeded(t *testing.T) *Service {
	t.Helper()
	svc := NewService(NewMemoryRepository())
	if err := svc.Seed(context.Background(), DefaultSeed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc
}

func TestApprovedHidesPendingCompanies(t *testing.T) {
	svc := seeded(t)
	approved, err := svc.Approved(context.Background())
	if err != nil {
		t.Fatalf("approved: %v", err)
	}
	if len(approved) != 2 {
		t.Fatalf("expected 2 approved companies, got %d", len(approved))
	}
	if approved[0].Name != "Acme Logistics" {
		t.Fatalf("expected name ordering, got %s first", approved[0].Name)
	}
}

func TestSeedIsRepeatable(t *testing.T) {
	svc := seeded(t)
	if err := svc.Seed(context.Background(), DefaultSeed); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	approved, _ := svc.Approved(context.Background())
	if len(approved) != 2 {
		t.Fatalf("expected duplicates to be skipped, got %d", len(approved))
	}
}

func TestAssociate(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()
	approved, _ := svc.Approved(ctx)
	accountID := uuid.NewString()

	if _, err := svc.Associate(ctx, accountID, approved[0].ID); err != nil {
		t.Fatalf("associate: %v", err)
	}
	if _, err := svc.Associate(ctx, accountID, approved[0].ID); !errors.Is(err, ErrAlreadyAssociated) {
		t.Fatalf("expected already associated, got %v", err)
	}

	pending, err := svc.FindByTaxID(ctx, "coba850505zz3")
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if _, err := svc.Associate(ctx, accountID, pending.ID); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected not approved, got %v", err)
	}

	mine, err := svc.ForAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("for account: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != approved[0].ID {
		t.Fatalf("unexpected associations: %+v", mine)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := "- name: Delta\n  tax_id: DELT010101AA1\n  email: d@delta.example\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 || entries[0].TaxID != "DELT010101AA1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

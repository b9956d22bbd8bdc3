package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/docuhub/portal/internal/logging"
)

func TestServiceLifecycle(t *testing.T) {
	svc := NewService(NewMemoryStore(), NewLoggerNotifier(logging.Discard()))
	ctx := context.Background()

	if err := svc.Notify(ctx, "acc-1", "a@b.co", KindWelcome, "Welcome", "first"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := svc.Notify(ctx, "acc-1", "a@b.co", KindCompanyLinked, "Linked", "second"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := svc.Notify(ctx, "acc-2", "c@d.co", KindWelcome, "Welcome", "other"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	items, err := svc.List(ctx, "acc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(items))
	}

	if err := svc.MarkRead(ctx, "acc-1", items[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, "acc-2", items[1].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other account to be isolated, got %v", err)
	}
	if err := svc.Delete(ctx, "acc-1", items[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	items, _ = svc.List(ctx, "acc-1")
	if len(items) != 1 || !items[0].Read {
		t.Fatalf("unexpected items after delete: %+v", items)
	}

	if err := svc.Clear(ctx, "acc-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, _ = svc.List(ctx, "acc-1")
	if len(items) != 0 {
		t.Fatalf("expected empty list, got %d", len(items))
	}
	others, _ := svc.List(ctx, "acc-2")
	if len(others) != 1 {
		t.Fatalf("clear must not touch other accounts, got %d", len(others))
	}
}

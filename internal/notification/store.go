package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a notification does not belong to the account.
var ErrNotFound = errors.New("notification not found")

// Notification is an in-app notice shown in the portal's notification panel.
type Notification struct {
	ID        string
	AccountID string
	Kind      string
	Title     string
	Message   string
	Read      bool
	CreatedAt time.Time
}

// Store persists per-account notifications.
type Store interface {
	Add(ctx context.Context, n Notification) error
	List(ctx context.Context, accountID string) ([]Notification, error)
	MarkRead(ctx context.Context, accountID, id string) error
	Delete(ctx context.Context, accountID, id string) error
	DeleteAll(ctx context.Context, accountID string) error
}

// Service records in-app notifications and mirrors them through a Notifier.
type Service struct {
	store    Store
	notifier Notifier
}

// NewService builds a notification service; notifier may be nil.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Notify stores a notification for the account and forwards it to the notifier.
func (s *Service) Notify(ctx context.Context, accountID, destination, kind, title, message string) error {
	n := Notification{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Add(ctx, n); err != nil {
		return err
	}
	if s.notifier != nil {
		return s.notifier.Send(ctx, Message{Kind: kind, Destination: destination, Body: message})
	}
	return nil
}

// List returns the account's notifications, newest first.
func (s *Service) List(ctx context.Context, accountID string) ([]Notification, error) {
	return s.store.List(ctx, accountID)
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, accountID, id string) error {
	return s.store.MarkRead(ctx, accountID, id)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, accountID, id string) error {
	return s.store.Delete(ctx, accountID, id)
}

// Clear removes every notification of the account.
func (s *Service) Clear(ctx context.Context, accountID string) error {
	return s.store.DeleteAll(ctx, accountID)
}

type memoryStore struct {
	mu    sync.RWMutex
	items map[string][]Notification
}

// NewMemoryStore builds an in-memory notification store.
func NewMemoryStore() Store {
	return &memoryStore{items: make(map[string][]Notification)}
}

func (m *memoryStore) Add(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[n.AccountID] = append(m.items[n.AccountID], n)
	return nil
}

func (m *memoryStore) List(_ context.Context, accountID string) ([]Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Notification(nil), m.items[accountID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) MarkRead(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items[accountID] {
		if m.items[accountID][i].ID == id {
			m.items[accountID][i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) Delete(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items[accountID]
	for i := range items {
		if items[i].ID == id {
			m.items[accountID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) DeleteAll(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, accountID)
	return nil
}

// PostgresStore keeps notifications in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed notification store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a notification.
func (p *PostgresStore) Add(ctx context.Context, n Notification) error {
	id, err := uuid.Parse(n.ID)
	if err != nil {
		return err
	}
	accountID, err := uuid.Parse(n.AccountID)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `INSERT INTO notifications (id, account_id, kind, title, message, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`, id, accountID, n.Kind, n.Title, n.Message, n.Read, n.CreatedAt.UTC())
	return err
}

// List returns the account's notifications, newest first.
func (p *PostgresStore) List(ctx context.Context, accountID string) ([]Notification, error) {
	aid, err := uuid.Parse(accountID)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, `SELECT id, kind, title, message, read, created_at FROM notifications
        WHERE account_id = $1 ORDER BY created_at DESC`, aid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n         Notification
			id        uuid.UUID
			createdAt time.Time
		)
		if err := rows.Scan(&id, &n.Kind, &n.Title, &n.Message, &n.Read, &createdAt); err != nil {
			return nil, err
		}
		n.ID = id.String()
		n.AccountID = accountID
		n.CreatedAt = createdAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one notification as read.
func (p *PostgresStore) MarkRead(ctx context.Context, accountID, id string) error {
	return p.exec(ctx, `UPDATE notifications SET read = TRUE WHERE account_id = $1 AND id = $2`, accountID, id)
}

// Delete removes one notification.
func (p *PostgresStore) Delete(ctx context.Context, accountID, id string) error {
	return p.exec(ctx, `DELETE FROM notifications WHERE account_id = $1 AND id = $2`, accountID, id)
}

// DeleteAll removes every notification of the account.
func (p *PostgresStore) DeleteAll(ctx context.Context, accountID string) error {
	aid, err := uuid.Parse(accountID)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(ctx, `DELETE FROM notifications WHERE account_id = $1`, aid)
	return err
}

func (p *PostgresStore) exec(ctx context.Context, query, accountID, id string) error {
	aid, err := uuid.Parse(accountID)
	if err != nil {
		return err
	}
	nid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := p.db.Exec(ctx, query, aid, nid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

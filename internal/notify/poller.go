// Package notify keeps the notification panel fresh by polling the API in the background.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/logging"
)

// DefaultInterval is the time between two fetches.
const DefaultInterval = 10 * time.Second

// ErrRunning is returned by Start on a poller that is already running.
var ErrRunning = errors.New("notify: poller already running")

// Source is the notification API.
type Source interface {
	Notifications(ctx context.Context) ([]api.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Poller holds the last fetched notifications and refreshes them on a ticker.
type Poller struct {
	mu      sync.Mutex
	items   []api.Notification
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}

	src      Source
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	onChange func(items []api.Notification, unread int)
}

// Option customises a Poller.
type Option func(*Poller)

// WithClock drives the ticker from c.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// OnChange registers fn to run after every change of the local list.
func OnChange(fn func(items []api.Notification, unread int)) Option {
	return func(p *Poller) { p.onChange = fn }
}

// New builds a stopped poller.
func New(src Source, opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start fetches right away and then once per interval until Stop, cancellation of ctx,
// or an unauthorized answer.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		select {
		case <-p.done:
			p.cancel()
		default:
			return ErrRunning
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := p.clock.NewTicker(p.interval)
	p.cancel, p.done = cancel, done
	go p.run(ctx, ticker, done)
	return nil
}

// Stop cancels polling and waits for the loop to exit; no fetch starts after it returns.
// Stopping a stopped poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Halt cancels polling without waiting for the loop to exit, so it is safe to call from
// code running on the poll goroutine, such as a session-clear observer fired by a 401.
// No fetch starts after Halt returns; one already in flight sees a cancelled context.
func (p *Poller) Halt() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	if !p.poll(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil || !p.poll(ctx) {
				return
			}
		}
	}
}

// poll fetches once and reports whether polling should go on.
func (p *Poller) poll(ctx context.Context) bool {
	err := p.Refresh(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, api.ErrUnauthorized):
		p.logger.Info("notification polling stopped: session no longer valid")
		return false
	case ctx.Err() != nil:
		return false
	default:
		p.logger.Warn("notification fetch failed", slog.Any("error", err))
		return true
	}
}

// Refresh fetches the list once.
func (p *Poller) Refresh(ctx context.Context) error {
	items, err := p.src.Notifications(ctx)
	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.items = items
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.changed()
	return nil
}

// Items returns a copy of the local list.
func (p *Poller) Items() []api.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.Notification(nil), p.items...)
}

// Unread counts the items not read yet.
func (p *Poller) Unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return unread(p.items)
}

// Err is the error of the last fetch, if it failed.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// MarkRead flips the local flag first and then confirms with the API. A failed
// confirmation restores the flag only if this call was the one that flipped it.
func (p *Poller) MarkRead(ctx context.Context, id string) error {
	p.mu.Lock()
	flipped := false
	if idx := p.index(id); idx >= 0 && !p.items[idx].Read {
		p.items[idx].Read = true
		flipped = true
	}
	p.mu.Unlock()
	if flipped {
		p.changed()
	}

	if err := p.src.MarkNotificationRead(ctx, id); err != nil {
		if flipped {
			p.mu.Lock()
			if i := p.index(id); i >= 0 {
				p.items[i].Read = false
			}
			p.mu.Unlock()
			p.changed()
		}
		return err
	}
	return nil
}

// ClearAll empties the local list and then confirms with the API. On failure the next
// fetch brings the items back.
func (p *Poller) ClearAll(ctx context.Context) error {
	p.mu.Lock()
	p.items = nil
	p.mu.Unlock()
	p.changed()
	return p.src.ClearNotifications(ctx)
}

// Remove drops one item locally and then confirms with the API.
func (p *Poller) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	if i := p.index(id); i >= 0 {
		p.items = append(p.items[:i:i], p.items[i+1:]...)
	}
	p.mu.Unlock()
	p.changed()
	return p.src.DeleteNotification(ctx, id)
}

func (p *Poller) changed() {
	if p.onChange == nil {
		return
	}
	p.mu.Lock()
	items := append([]api.Notification(nil), p.items...)
	p.mu.Unlock()
	p.onChange(items, unread(items))
}

// index must be called with mu held.
func (p *Poller) index(id string) int {
	for i, n := range p.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func unread(items []api.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

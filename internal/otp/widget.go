// Package otp implements the one-time-passcode entry widget: six single-digit cells with
// focus movement, paste distribution, automatic submission and a resend cooldown. Network
// work is delegated to the injected verify and resend operations.
package otp

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
)

// Length is the number of cells.
const Length = 6

// DefaultCooldown is how long Resend stays disabled after a code was resent.
const DefaultCooldown = 60 * time.Second

var (
	// ErrIncomplete is returned by Submit when a cell is empty.
	ErrIncomplete = errors.New("enter all 6 digits")
	// ErrBusy is returned while a verification or resend is in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrCoolingDown is returned by Resend before the cooldown elapsed.
	ErrCoolingDown = errors.New("please wait before requesting a new code")
	// ErrVerified is returned once the code was accepted.
	ErrVerified = errors.New("code already verified")
)

// VerifyFunc checks a complete code.
type VerifyFunc func(ctx context.Context, code string) error

// ResendFunc requests a fresh code.
type ResendFunc func(ctx context.Context) error

// View is a snapshot of what the widget displays.
type View struct {
	Cells    [Length]string
	Focus    int
	Pending  bool
	Verified bool
	Error    string
	// Cooldown is the number of whole seconds until Resend is enabled again.
	Cooldown int
}

// Disabled reports whether the cells accept input.
func (v View) Disabled() bool { return v.Pending || v.Verified }

// Widget holds the OTP buffer.
type Widget struct {
	mu            sync.Mutex
	cells         [Length]string
	focus         int
	pending       bool
	resending     bool
	verified      bool
	errMsg        string
	cooldownUntil time.Time

	verify   VerifyFunc
	resend   ResendFunc
	clock    clockwork.Clock
	cooldown time.Duration
	message  func(error) string
}

// Option customises a Widget.
type Option func(*Widget)

// WithClock drives the cooldown from c.
func WithClock(c clockwork.Clock) Option {
	return func(w *Widget) { w.clock = c }
}

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(w *Widget) { w.cooldown = d }
}

// WithMessage sets how failures of the injected operations are shown.
func WithMessage(fn func(error) string) Option {
	return func(w *Widget) { w.message = fn }
}

// New builds an empty widget focused on the first cell.
func New(verify VerifyFunc, resend ResendFunc, opts ...Option) *Widget {
	w := &Widget{
		verify:   verify,
		resend:   resend,
		clock:    clockwork.NewRealClock(),
		cooldown: DefaultCooldown,
		message:  func(err error) string { return err.Error() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// View returns the current display state.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return View{
		Cells:    w.cells,
		Focus:    w.focus,
		Pending:  w.pending,
		Verified: w.verified,
		Error:    w.errMsg,
		Cooldown: w.remaining(),
	}
}

// Code returns the joined cells.
func (w *Widget) Code() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.code()
}

// Input handles text typed into cell i; only its last character counts. A digit in the
// last cell that completes the buffer submits it, and the verification result is returned.
func (w *Widget) Input(ctx context.Context, i int, text string) error {
	w.mu.Lock()
	if i < 0 || i >= Length || w.pending || w.verified || text == "" {
		w.mu.Unlock()
		return nil
	}
	r, _ := utf8.DecodeLastRuneInString(text)
	if !isDigit(r) {
		w.mu.Unlock()
		return nil
	}
	w.cells[i] = string(r)
	w.errMsg = ""
	if i < Length-1 {
		w.focus = i + 1
		w.mu.Unlock()
		return nil
	}
	w.focus = i
	complete := w.complete()
	w.mu.Unlock()
	if complete {
		return w.Submit(ctx)
	}
	return nil
}

// Backspace handles the key in cell i. An empty cell moves focus back without touching
// the previous cell; a filled cell is cleared in place.
func (w *Widget) Backspace(i int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= Length || w.pending || w.verified {
		return
	}
	if w.cells[i] != "" {
		w.cells[i] = ""
		w.focus = i
		return
	}
	if i > 0 {
		w.focus = i - 1
	}
}

// Paste distributes up to six digits of text over the cells from the first one,
// discarding other characters. Six digits submit the code.
func (w *Widget) Paste(ctx context.Context, text string) error {
	w.mu.Lock()
	if w.pending || w.verified {
		w.mu.Unlock()
		return nil
	}
	digits := make([]string, 0, Length)
	for _, r := range text {
		if isDigit(r) {
			digits = append(digits, string(r))
			if len(digits) == Length {
				break
			}
		}
	}
	if len(digits) == 0 {
		w.mu.Unlock()
		return nil
	}
	w.cells = [Length]string{}
	copy(w.cells[:], digits)
	w.focus = len(digits) - 1
	w.errMsg = ""
	full := len(digits) == Length
	w.mu.Unlock()
	if full {
		return w.Submit(ctx)
	}
	return nil
}

// Submit verifies the joined code. Cells are disabled while the call is pending; a failure
// clears them, focuses the first one and shows the message.
func (w *Widget) Submit(ctx context.Context) error {
	w.mu.Lock()
	switch {
	case w.verified:
		w.mu.Unlock()
		return ErrVerified
	case w.pending || w.resending:
		w.mu.Unlock()
		return ErrBusy
	case !w.complete():
		w.errMsg = ErrIncomplete.Error()
		w.mu.Unlock()
		return ErrIncomplete
	}
	w.pending = true
	code := w.code()
	w.mu.Unlock()

	err := w.verify(ctx, code)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = false
	if err != nil {
		w.reset()
		w.errMsg = w.message(err)
		return err
	}
	w.verified = true
	w.errMsg = ""
	return nil
}

// Resend requests a new code and starts the cooldown. A failed request leaves the cells
// alone and starts no cooldown.
func (w *Widget) Resend(ctx context.Context) error {
	w.mu.Lock()
	switch {
	case w.verified:
		w.mu.Unlock()
		return ErrVerified
	case w.pending || w.resending:
		w.mu.Unlock()
		return ErrBusy
	case w.remaining() > 0:
		w.mu.Unlock()
		return ErrCoolingDown
	}
	w.resending = true
	w.mu.Unlock()

	err := w.resend(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.resending = false
	if err != nil {
		w.errMsg = w.message(err)
		return err
	}
	w.reset()
	w.errMsg = ""
	w.cooldownUntil = w.clock.Now().Add(w.cooldown)
	return nil
}

func (w *Widget) reset() {
	w.cells = [Length]string{}
	w.focus = 0
}

func (w *Widget) complete() bool {
	for _, c := range w.cells {
		if c == "" {
			return false
		}
	}
	return true
}

func (w *Widget) code() string {
	var b [Length]byte
	n := 0
	for _, c := range w.cells {
		if c != "" {
			b[n] = c[0]
			n++
		}
	}
	return string(b[:n])
}

// remaining rounds up, so the counter reads 60 right after a resend and 0 only once the
// full cooldown passed.
func (w *Widget) remaining() int {
	if w.cooldownUntil.IsZero() {
		return 0
	}
	left := w.cooldownUntil.Sub(w.clock.Now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

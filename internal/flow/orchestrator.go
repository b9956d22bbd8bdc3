// Package flow sequences sign-up, company selection, OTP verification and login as one
// state machine. Backend calls run without the lock held; a response that arrives after
// the flow moved on is dropped with ErrStale.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/registration"
	"github.com/docuhub/portal/internal/selection"
)

var (
	// ErrStale is returned when a response arrived after the flow left the step that sent
	// the request. The response is not applied.
	ErrStale = errors.New("flow: response arrived after the step changed")
	// ErrBusy is returned while another request of the flow is in flight.
	ErrBusy = errors.New("flow: a request is already in progress")
	// ErrWrongState is returned when an event does not apply to the active step.
	ErrWrongState = errors.New("flow: event does not apply to the current step")
)

const (
	noticeVerifiedLogin  = "Email verified. Please log in."
	noticeSessionExpired = "Your session has expired. Please log in again."
	noticeLoggedOut      = "You have been logged out."
)

// Backend is the part of the API client the flow drives.
type Backend interface {
	Login(ctx context.Context, email, password string) (api.LoginOutcome, error)
	Register(ctx context.Context, reg api.Registration) (api.RegisterOutcome, error)
	VerifyOTP(ctx context.Context, email, code string) (string, error)
	VerifyLoginOTP(ctx context.Context, email, code string) (string, error)
	ResendOTP(ctx context.Context, email string) error
	ApprovedCompanies(ctx context.Context) ([]api.Company, error)
	AssociateCompany(ctx context.Context, companyID string) error
}

// TokenStore is the session the flow writes on login and clears on logout.
type TokenStore interface {
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Orchestrator is the flow state machine.
type Orchestrator struct {
	mu     sync.Mutex
	state  State
	gen    uint64
	busy   bool
	errMsg string
	step   *selection.Step

	backend Backend
	session TokenStore
	form    *registration.Controller
	logger  *slog.Logger
}

// New starts a flow on the given entry mode.
func New(backend Backend, session TokenStore, mode Mode, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		state:   Registering{Mode: mode},
		backend: backend,
		session: session,
		form:    registration.NewController(backend.Register),
		logger:  logger,
	}
}

// State returns the active step.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Error is the message shown on the active step, if any.
func (o *Orchestrator) Error() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMsg
}

// Busy reports whether a request is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Selection is the company selection step while SelectingCompanies is active.
func (o *Orchestrator) Selection() *selection.Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// Register validates and submits a sign-up draft. Validation failures never reach the
// backend and leave the state unchanged, as do server rejections.
func (o *Orchestrator) Register(ctx context.Context, draft registration.Draft) error {
	gen, _, err := o.begin(func(s State) bool { _, ok := s.(Registering); return ok })
	if err != nil {
		return err
	}
	outcome, err := o.form.Submit(ctx, draft)
	if err != nil {
		return o.fail(gen, err)
	}
	email := draft.Normalized().Email

	switch out := outcome.(type) {
	case api.RegistrationOTPRequired:
		return o.finish(gen, VerifyingOtp{Email: pick(out.Email, email), Purpose: PurposeRegistration})
	case api.CompanySelectionRequired:
		return o.offerCompanies(ctx, gen, pick(out.Email, email))
	case api.Registered:
		if out.Token != "" {
			if err := o.persist(ctx, gen, out.Token); err != nil {
				return err
			}
		}
		return o.finish(gen, Done{})
	default:
		return o.fail(gen, fmt.Errorf("unexpected registration outcome %T", outcome))
	}
}

// offerCompanies fetches the candidates. The code has already been sent at this point,
// so a failed or empty fetch skips the selection instead of blocking the sign-up.
func (o *Orchestrator) offerCompanies(ctx context.Context, gen uint64, email string) error {
	companies, err := o.backend.ApprovedCompanies(ctx)
	if err != nil || len(companies) == 0 {
		if err != nil {
			o.logger.Warn("fetch approved companies failed, skipping selection", slog.String("email", email), slog.Any("error", err))
		}
		return o.finish(gen, VerifyingOtp{Email: email, Purpose: PurposeRegistration})
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return ErrStale
	}
	o.step = selection.New(companies)
	o.transition(SelectingCompanies{Email: email, Candidates: companies})
	return nil
}

// Login submits credentials and follows the classified answer.
func (o *Orchestrator) Login(ctx context.Context, email, password string) error {
	gen, _, err := o.begin(func(s State) bool { _, ok := s.(Registering); return ok })
	if err != nil {
		return err
	}
	outcome, err := o.backend.Login(ctx, email, password)
	if err != nil {
		return o.fail(gen, err)
	}

	switch out := outcome.(type) {
	case api.LoggedIn:
		if err := o.persist(ctx, gen, out.Token); err != nil {
			return err
		}
		return o.finish(gen, Done{})
	case api.LoginOTPRequired:
		return o.finish(gen, VerifyingOtp{Email: pick(out.Email, email), Purpose: PurposeLogin})
	case api.EmailVerificationRequired:
		return o.finish(gen, VerifyingOtp{Email: pick(out.Email, email), Purpose: PurposeRegistration})
	case api.PendingApproval:
		return o.finish(gen, Registering{Mode: ModeLogin, Notice: pendingNotice(out)})
	default:
		return o.fail(gen, fmt.Errorf("unexpected login outcome %T", outcome))
	}
}

// ConfirmSelection moves on to the code entry with the selected companies pending.
func (o *Orchestrator) ConfirmSelection() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.state.(SelectingCompanies)
	if !ok || o.step == nil {
		return ErrWrongState
	}
	ids, err := o.step.Continue()
	if err != nil {
		o.errMsg = err.Error()
		return err
	}
	o.transition(VerifyingOtp{Email: s.Email, Purpose: PurposeRegistration, PendingCompanyIDs: ids})
	return nil
}

// CancelSelection discards the candidates and returns to the sign-up form.
func (o *Orchestrator) CancelSelection() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.state.(SelectingCompanies); !ok {
		return ErrWrongState
	}
	o.step.Cancel()
	o.transition(Registering{Mode: ModeRegister})
	return nil
}

// Back leaves code entry or company selection for the entry form. Any request still in
// flight for the old step is discarded when it returns.
func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch s := o.state.(type) {
	case VerifyingOtp:
		mode := ModeRegister
		if s.Purpose == PurposeLogin {
			mode = ModeLogin
		}
		o.transition(Registering{Mode: mode})
	case SelectingCompanies:
		o.transition(Registering{Mode: ModeRegister})
	default:
		return ErrWrongState
	}
	return nil
}

// Verify checks a code for the active VerifyingOtp step. Its signature matches the OTP
// widget's verify operation.
func (o *Orchestrator) Verify(ctx context.Context, code string) error {
	gen, st, err := o.begin(func(s State) bool { _, ok := s.(VerifyingOtp); return ok })
	if err != nil {
		return err
	}
	v := st.(VerifyingOtp)

	if v.Purpose == PurposeLogin {
		token, err := o.backend.VerifyLoginOTP(ctx, v.Email, code)
		if err != nil {
			return o.fail(gen, err)
		}
		if err := o.persist(ctx, gen, token); err != nil {
			return err
		}
		return o.finish(gen, Done{})
	}

	token, err := o.backend.VerifyOTP(ctx, v.Email, code)
	if err != nil {
		return o.fail(gen, err)
	}
	if token == "" {
		return o.finish(gen, Registering{Mode: ModeLogin, Notice: noticeVerifiedLogin})
	}
	if err := o.persist(ctx, gen, token); err != nil {
		return err
	}
	partial, err := o.associate(ctx, gen, v.PendingCompanyIDs)
	if err != nil {
		return err
	}
	done := Done{}
	if partial != nil {
		done = Done{Warning: partial.Warning(), Partial: partial}
	}
	return o.finish(gen, done)
}

// associate links every pending company one call at a time. Failures are logged and
// counted; they neither stop the loop nor undo earlier links. Leaving the step stops the
// loop before the next call and reports ErrStale.
func (o *Orchestrator) associate(ctx context.Context, gen uint64, ids []string) (*PartialFailure, error) {
	failed := map[string]error{}
	for i, id := range ids {
		o.mu.Lock()
		stale := gen != o.gen
		o.mu.Unlock()
		if stale {
			o.logger.Info("company associations abandoned", slog.Int("sent", i), slog.Int("total", len(ids)))
			return nil, ErrStale
		}
		if err := o.backend.AssociateCompany(ctx, id); err != nil {
			o.logger.Warn("company association failed", slog.String("company_id", id), slog.Any("error", err))
			failed[id] = err
		}
	}
	if len(failed) == 0 {
		return nil, nil
	}
	partial := &PartialFailure{Total: len(ids), Failed: failed}
	o.logger.Warn("company associations partially failed", slog.Int("failed", len(failed)), slog.Int("total", len(ids)))
	return partial, nil
}

// Resend asks for a new code for the active VerifyingOtp step. Its signature matches the
// OTP widget's resend operation.
func (o *Orchestrator) Resend(ctx context.Context) error {
	gen, st, err := o.begin(func(s State) bool { _, ok := s.(VerifyingOtp); return ok })
	if err != nil {
		return err
	}
	if err := o.backend.ResendOTP(ctx, st.(VerifyingOtp).Email); err != nil {
		return o.fail(gen, err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return ErrStale
	}
	o.busy = false
	o.errMsg = ""
	return nil
}

// Logout clears the session and returns to the login form.
func (o *Orchestrator) Logout(ctx context.Context) error {
	err := o.session.Clear(ctx)
	o.mu.Lock()
	o.transition(Registering{Mode: ModeLogin, Notice: noticeLoggedOut})
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// HandleUnauthorized returns to the login form after the API client dropped a rejected
// session. It is meant to be the client's unauthorized hook.
func (o *Orchestrator) HandleUnauthorized() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transition(Registering{Mode: ModeLogin, Notice: noticeSessionExpired})
}

// begin claims the flow for one request if the active step satisfies allowed.
func (o *Orchestrator) begin(allowed func(State) bool) (uint64, State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return 0, nil, ErrBusy
	}
	if !allowed(o.state) {
		return 0, nil, ErrWrongState
	}
	o.busy = true
	o.errMsg = ""
	return o.gen, o.state, nil
}

// finish applies the transition unless the flow moved on since gen.
func (o *Orchestrator) finish(gen uint64, next State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return ErrStale
	}
	o.transition(next)
	return nil
}

// fail surfaces err on the current step without changing it.
func (o *Orchestrator) fail(gen uint64, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen {
		return ErrStale
	}
	o.busy = false
	o.errMsg = api.Message(err)
	return err
}

func (o *Orchestrator) persist(ctx context.Context, gen uint64, token string) error {
	o.mu.Lock()
	stale := gen != o.gen
	o.mu.Unlock()
	if stale {
		return ErrStale
	}
	if err := o.session.Set(ctx, token); err != nil {
		return o.fail(gen, fmt.Errorf("save session: %w", err))
	}
	return nil
}

// transition must be called with mu held.
func (o *Orchestrator) transition(next State) {
	o.gen++
	o.busy = false
	o.errMsg = ""
	if _, ok := next.(SelectingCompanies); !ok {
		o.step = nil
	}
	o.state = next
}

func pendingNotice(p api.PendingApproval) string {
	if p.CompanyName == "" {
		return "Your account is pending approval."
	}
	return fmt.Sprintf("Your account is pending approval by %s.", p.CompanyName)
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

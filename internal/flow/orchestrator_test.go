package flow

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/logging"
	"github.com/docuhub/portal/internal/registration"
	"github.com/docuhub/portal/internal/selection"
	"github.com/docuhub/portal/internal/session"
)

// fakeBackend answers with scripted results; nil funcs fail the test when called.
type fakeBackend struct {
	t         *testing.T
	login     func(email, password string) (api.LoginOutcome, error)
	register  func(api.Registration) (api.RegisterOutcome, error)
	verify    func(email, code string) (string, error)
	verifyLog func(email, code string) (string, error)
	resend    func(email string) error
	companies func() ([]api.Company, error)
	associate func(id string) error
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (api.LoginOutcome, error) {
	require.NotNil(f.t, f.login, "unexpected Login")
	return f.login(email, password)
}

func (f *fakeBackend) Register(_ context.Context, reg api.Registration) (api.RegisterOutcome, error) {
	require.NotNil(f.t, f.register, "unexpected Register")
	return f.register(reg)
}

func (f *fakeBackend) VerifyOTP(_ context.Context, email, code string) (string, error) {
	require.NotNil(f.t, f.verify, "unexpected VerifyOTP")
	return f.verify(email, code)
}

func (f *fakeBackend) VerifyLoginOTP(_ context.Context, email, code string) (string, error) {
	require.NotNil(f.t, f.verifyLog, "unexpected VerifyLoginOTP")
	return f.verifyLog(email, code)
}

func (f *fakeBackend) ResendOTP(_ context.Context, email string) error {
	require.NotNil(f.t, f.resend, "unexpected ResendOTP")
	return f.resend(email)
}

func (f *fakeBackend) ApprovedCompanies(context.Context) ([]api.Company, error) {
	require.NotNil(f.t, f.companies, "unexpected ApprovedCompanies")
	return f.companies()
}

func (f *fakeBackend) AssociateCompany(_ context.Context, id string) error {
	require.NotNil(f.t, f.associate, "unexpected AssociateCompany")
	return f.associate(id)
}

func newFlow(t *testing.T, b *fakeBackend, mode Mode) (*Orchestrator, *session.Session) {
	t.Helper()
	b.t = t
	sess, err := session.Open(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
	return New(b, sess, mode, logging.Discard()), sess
}

var validDraft = registration.Draft{
	Email:           "ana@example.com",
	TaxID:           "ACME010101AB1",
	WhatsappNumber:  "+5215550000000",
	Password:        "secret1",
	ConfirmPassword: "secret1",
}

func TestValidationErrorNeverReachesBackend(t *testing.T) {
	o, _ := newFlow(t, &fakeBackend{}, ModeRegister)
	d := validDraft
	d.ConfirmPassword = "secret2"

	err := o.Register(context.Background(), d)
	var verr *registration.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, Registering{Mode: ModeRegister}, o.State())
	assert.Equal(t, "passwords do not match", o.Error())
	assert.False(t, o.Busy())
}

func TestRegisteredDirectlyPersistsToken(t *testing.T) {
	o, sess := newFlow(t, &fakeBackend{
		register: func(api.Registration) (api.RegisterOutcome, error) { return api.Registered{Token: "T"}, nil },
	}, ModeRegister)
	require.NoError(t, o.Register(context.Background(), validDraft))
	assert.Equal(t, Done{}, o.State())
	assert.Equal(t, "T", sess.Token())
}

func TestServerRejectionKeepsStep(t *testing.T) {
	o, _ := newFlow(t, &fakeBackend{
		register: func(api.Registration) (api.RegisterOutcome, error) {
			return nil, &api.ServerRejection{Status: http.StatusConflict, Message: "an account with this email already exists"}
		},
	}, ModeRegister)
	require.Error(t, o.Register(context.Background(), validDraft))
	assert.Equal(t, Registering{Mode: ModeRegister}, o.State())
	assert.Equal(t, "an account with this email already exists", o.Error())
}

func TestFailedCompanyFetchSkipsSelection(t *testing.T) {
	o, _ := newFlow(t, &fakeBackend{
		register: func(api.Registration) (api.RegisterOutcome, error) {
			return api.CompanySelectionRequired{Email: "ana@example.com"}, nil
		},
		companies: func() ([]api.Company, error) { return nil, errors.New("timeout") },
	}, ModeRegister)
	require.NoError(t, o.Register(context.Background(), validDraft))
	assert.Equal(t, VerifyingOtp{Email: "ana@example.com", Purpose: PurposeRegistration}, o.State())
}

func TestSelectionCancelAndBack(t *testing.T) {
	o, _ := newFlow(t, &fakeBackend{
		register: func(api.Registration) (api.RegisterOutcome, error) {
			return api.CompanySelectionRequired{}, nil
		},
		companies: func() ([]api.Company, error) { return []api.Company{{ID: "c1"}}, nil },
	}, ModeRegister)
	ctx := context.Background()

	require.NoError(t, o.Register(ctx, validDraft))
	assert.Equal(t, SelectingCompanies{Email: "ana@example.com", Candidates: []api.Company{{ID: "c1"}}}, o.State())
	require.ErrorIs(t, o.ConfirmSelection(), selection.ErrEmpty)
	assert.Equal(t, "must select at least one company", o.Error())

	require.NoError(t, o.CancelSelection())
	assert.Equal(t, Registering{Mode: ModeRegister}, o.State())
	assert.Nil(t, o.Selection())

	require.NoError(t, o.Register(ctx, validDraft))
	o.Selection().Toggle("c1")
	require.NoError(t, o.ConfirmSelection())
	require.NoError(t, o.Back())
	assert.Equal(t, Registering{Mode: ModeRegister}, o.State())
	require.ErrorIs(t, o.Back(), ErrWrongState)
}

func TestLoginOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		outcome api.LoginOutcome
		want    State
		token   string
	}{
		{"logged in", api.LoggedIn{Token: "T"}, Done{}, "T"},
		{"login otp", api.LoginOTPRequired{Email: "ana@example.com"}, VerifyingOtp{Email: "ana@example.com", Purpose: PurposeLogin}, ""},
		{"unverified", api.EmailVerificationRequired{}, VerifyingOtp{Email: "ana@example.com", Purpose: PurposeRegistration}, ""},
		{"pending", api.PendingApproval{CompanyName: "Acme Logistics"}, Registering{Mode: ModeLogin, Notice: "Your account is pending approval by Acme Logistics."}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, sess := newFlow(t, &fakeBackend{
				login: func(string, string) (api.LoginOutcome, error) { return tc.outcome, nil },
			}, ModeLogin)
			require.NoError(t, o.Login(context.Background(), "ana@example.com", "secret1"))
			assert.Equal(t, tc.want, o.State())
			assert.Equal(t, tc.token, sess.Token())
		})
	}
}

func TestVerifiedWithoutTokenAsksForLogin(t *testing.T) {
	o, sess := newFlow(t, &fakeBackend{
		register: func(api.Registration) (api.RegisterOutcome, error) {
			return api.RegistrationOTPRequired{Email: "ana@example.com"}, nil
		},
		verify: func(string, string) (string, error) { return "", nil },
	}, ModeRegister)
	ctx := context.Background()
	require.NoError(t, o.Register(ctx, validDraft))
	require.NoError(t, o.Verify(ctx, "123456"))
	assert.Equal(t, Registering{Mode: ModeLogin, Notice: "Email verified. Please log in."}, o.State())
	assert.Empty(t, sess.Token())
}

func TestLoginVerificationPersistsToken(t *testing.T) {
	o, sess := newFlow(t, &fakeBackend{
		login: func(string, string) (api.LoginOutcome, error) {
			return api.LoginOTPRequired{Email: "ana@example.com"}, nil
		},
		verifyLog: func(email, code string) (string, error) {
			assert.Equal(t, "ana@example.com", email)
			assert.Equal(t, "654321", code)
			return "T", nil
		},
	}, ModeLogin)
	ctx := context.Background()
	require.NoError(t, o.Login(ctx, "ana@example.com", "secret1"))
	require.NoError(t, o.Verify(ctx, "654321"))
	assert.Equal(t, Done{}, o.State())
	assert.Equal(t, "T", sess.Token())
}

func TestStaleVerificationIsDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	o, sess := newFlow(t, &fakeBackend{
		login: func(string, string) (api.LoginOutcome, error) {
			return api.LoginOTPRequired{Email: "ana@example.com"}, nil
		},
		verifyLog: func(string, string) (string, error) {
			close(entered)
			<-release
			return "T", nil
		},
	}, ModeLogin)
	ctx := context.Background()
	require.NoError(t, o.Login(ctx, "ana@example.com", "secret1"))

	done := make(chan error, 1)
	go func() { done <- o.Verify(ctx, "123456") }()
	<-entered
	assert.True(t, o.Busy())
	require.ErrorIs(t, o.Verify(ctx, "123456"), ErrBusy)
	require.NoError(t, o.Back())
	close(release)

	require.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, Registering{Mode: ModeLogin}, o.State())
	assert.Empty(t, sess.Token())
	assert.False(t, o.Busy())
}

func registerWithCompanies(t *testing.T, b *fakeBackend, ids ...string) (*Orchestrator, *session.Session) {
	t.Helper()
	candidates := make([]api.Company, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, api.Company{ID: id})
	}
	b.register = func(api.Registration) (api.RegisterOutcome, error) {
		return api.CompanySelectionRequired{Email: "ana@example.com"}, nil
	}
	b.companies = func() ([]api.Company, error) { return candidates, nil }
	b.verify = func(string, string) (string, error) { return "T", nil }
	o, sess := newFlow(t, b, ModeRegister)
	require.NoError(t, o.Register(context.Background(), validDraft))
	for _, id := range ids {
		o.Selection().Toggle(id)
	}
	require.NoError(t, o.ConfirmSelection())
	return o, sess
}

func TestBackDuringAssociationStopsRemainingCalls(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls []string
	b := &fakeBackend{associate: func(id string) error {
		calls = append(calls, id)
		if id == "c1" {
			close(entered)
			<-release
		}
		return nil
	}}
	o, sess := registerWithCompanies(t, b, "c1", "c2", "c3")

	done := make(chan error, 1)
	go func() { done <- o.Verify(context.Background(), "123456") }()
	<-entered
	require.NoError(t, o.Back())
	close(release)

	require.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, []string{"c1"}, calls)
	assert.Equal(t, Registering{Mode: ModeRegister}, o.State())
	assert.Equal(t, "T", sess.Token(), "the verified session is kept")
}

func TestPartialFailureListsCompaniesInOrder(t *testing.T) {
	b := &fakeBackend{associate: func(id string) error {
		if id == "c2" {
			return nil
		}
		return errors.New("boom")
	}}
	o, _ := registerWithCompanies(t, b, "c3", "c2", "c1", "c4")
	require.NoError(t, o.Verify(context.Background(), "123456"))

	done, ok := o.State().(Done)
	require.True(t, ok)
	require.NotNil(t, done.Partial)
	assert.Equal(t, "3 of 4 company associations failed (c1, c3, c4)", done.Partial.Error())
	assert.Equal(t, "3 of 4 company associations failed; you can retry them from your companies page.", done.Warning)
}

func TestUnauthorizedAndLogoutReturnToLogin(t *testing.T) {
	o, sess := newFlow(t, &fakeBackend{
		login: func(string, string) (api.LoginOutcome, error) { return api.LoggedIn{Token: "T"}, nil },
	}, ModeLogin)
	ctx := context.Background()
	require.NoError(t, o.Login(ctx, "ana@example.com", "secret1"))

	o.HandleUnauthorized()
	assert.Equal(t, Registering{Mode: ModeLogin, Notice: "Your session has expired. Please log in again."}, o.State())

	require.NoError(t, o.Login(ctx, "ana@example.com", "secret1"))
	require.NoError(t, o.Logout(ctx))
	assert.Equal(t, Registering{Mode: ModeLogin, Notice: "You have been logged out."}, o.State())
	assert.Empty(t, sess.Token())
}

func TestResendFailureKeepsStep(t *testing.T) {
	o, _ := newFlow(t, &fakeBackend{
		login: func(string, string) (api.LoginOutcome, error) {
			return api.LoginOTPRequired{Email: "ana@example.com"}, nil
		},
		resend: func(string) error {
			return &api.ServerRejection{Status: http.StatusBadGateway, Message: "could not deliver verification code"}
		},
	}, ModeLogin)
	ctx := context.Background()
	require.NoError(t, o.Login(ctx, "ana@example.com", "secret1"))
	require.Error(t, o.Resend(ctx))
	assert.IsType(t, VerifyingOtp{}, o.State())
	assert.Equal(t, "could not deliver verification code", o.Error())
	assert.False(t, o.Busy())
}

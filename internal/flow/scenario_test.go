package flow_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/flow"
	"github.com/docuhub/portal/internal/logging"
	"github.com/docuhub/portal/internal/registration"
	"github.com/docuhub/portal/internal/session"
	"github.com/docuhub/portal/internal/stubtest"
)

var draft = registration.Draft{
	Email:           "ana@example.com",
	TaxID:           "ACME010101AB1",
	WhatsappNumber:  "+5215550000000",
	Password:        "secret1",
	ConfirmPassword: "secret1",
}

type associateCall struct {
	auth      string
	companyID string
}

// scriptedAPI answers the collaborator endpoints with canned bodies and records the
// company association calls.
type scriptedAPI struct {
	register string

	mu       sync.Mutex
	calls    []associateCall
	inFlight int32
	overlap  bool
}

func (s *scriptedAPI) roundTrip(r *http.Request) (*http.Response, error) {
	respond := func(status int, body string) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    r,
		}, nil
	}
	switch r.URL.Path {
	case "/api/auth/register":
		return respond(http.StatusCreated, s.register)
	case "/api/companies/approved":
		return respond(http.StatusOK, `[{"id":"c1","name":"Acme Logistics"},{"id":"c2","name":"Borealis Foods"}]`)
	case "/api/auth/verify-otp":
		return respond(http.StatusOK, `{"token":"T","message":"email verified"}`)
	case "/api/companies/my-companies":
		if atomic.AddInt32(&s.inFlight, 1) > 1 {
			s.overlap = true
		}
		defer atomic.AddInt32(&s.inFlight, -1)
		var body struct {
			CompanyID string `json:"companyId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.calls = append(s.calls, associateCall{auth: r.Header.Get("Authorization"), companyID: body.CompanyID})
		first := len(s.calls) == 1
		s.mu.Unlock()
		if first {
			return respond(http.StatusInternalServerError, `{"message":"database unavailable"}`)
		}
		return respond(http.StatusCreated, `{"message":"company associated"}`)
	}
	return respond(http.StatusNotFound, `{"message":"not found"}`)
}

func newScripted(t *testing.T, register string) (*flow.Orchestrator, *scriptedAPI, *session.Session) {
	t.Helper()
	script := &scriptedAPI{register: register}
	sess, err := session.Open(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
	client := api.New(stubtest.BaseURL, sess, api.WithHTTPClient(&http.Client{Transport: stubtest.RoundTripFunc(script.roundTrip)}))
	return flow.New(client, sess, flow.ModeRegister, logging.Discard()), script, sess
}

func TestVerifiedRegistrationAssociatesSequentiallyDespiteFailures(t *testing.T) {
	ctx := context.Background()
	o, script, sess := newScripted(t, `{"requiresEmailVerification":true,"requiresCompanySelection":true,"email":"ana@example.com"}`)

	require.NoError(t, o.Register(ctx, draft))
	require.IsType(t, flow.SelectingCompanies{}, o.State())
	o.Selection().Toggle("c1")
	o.Selection().Toggle("c2")
	require.NoError(t, o.ConfirmSelection())
	assert.Equal(t, flow.VerifyingOtp{Email: "ana@example.com", Purpose: flow.PurposeRegistration, PendingCompanyIDs: []string{"c1", "c2"}}, o.State())

	require.NoError(t, o.Verify(ctx, "123456"))

	assert.Equal(t, []associateCall{
		{auth: "Bearer T", companyID: "c1"},
		{auth: "Bearer T", companyID: "c2"},
	}, script.calls)
	assert.False(t, script.overlap, "associations must not run concurrently")

	done, ok := o.State().(flow.Done)
	require.True(t, ok, "got %#v", o.State())
	require.NotNil(t, done.Partial)
	assert.Equal(t, 2, done.Partial.Total)
	assert.Contains(t, done.Partial.Failed, "c1")
	assert.Equal(t, "1 of 2 company associations failed; you can retry them from your companies page.", done.Warning)
	assert.Equal(t, "T", sess.Token())
}

func TestEmailVerificationOnlyGoesStraightToCode(t *testing.T) {
	ctx := context.Background()
	o, script, sess := newScripted(t, `{"requiresEmailVerification":true,"email":"ana@example.com"}`)

	require.NoError(t, o.Register(ctx, draft))
	assert.Equal(t, flow.VerifyingOtp{Email: "ana@example.com", Purpose: flow.PurposeRegistration}, o.State())

	require.NoError(t, o.Verify(ctx, "123456"))
	assert.Equal(t, flow.Done{}, o.State())
	assert.Empty(t, script.calls)
	assert.Equal(t, "T", sess.Token())
}

func TestRegistrationAgainstStub(t *testing.T) {
	ctx := context.Background()
	stub := stubtest.New(t, nil)
	sess, err := session.Open(ctx, session.NewMemoryStore())
	require.NoError(t, err)
	client := api.New(stubtest.BaseURL, sess, api.WithHTTPClient(stub.HTTPClient()))
	o := flow.New(client, sess, flow.ModeRegister, logging.Discard())

	require.NoError(t, o.Register(ctx, draft))
	st, ok := o.State().(flow.SelectingCompanies)
	require.True(t, ok, "got %#v", o.State())
	require.Len(t, st.Candidates, 2)

	_, err = o.Selection().Continue()
	require.Error(t, err)
	for _, c := range st.Candidates {
		o.Selection().Toggle(c.ID)
	}
	require.NoError(t, o.ConfirmSelection())

	require.Error(t, o.Verify(ctx, "000000x"))
	assert.IsType(t, flow.VerifyingOtp{}, o.State())
	assert.NotEmpty(t, o.Error())

	require.NoError(t, o.Verify(ctx, stub.Code(draft.Email)))
	assert.Equal(t, flow.Done{}, o.State())

	mine, err := client.MyCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestLoginWithSecondFactorAgainstStub(t *testing.T) {
	ctx := context.Background()
	stub := stubtest.New(t, nil, stubtest.WithLoginOTP())
	sess, err := session.Open(ctx, session.NewMemoryStore())
	require.NoError(t, err)
	client := api.New(stubtest.BaseURL, sess, api.WithHTTPClient(stub.HTTPClient()))

	signup := flow.New(client, sess, flow.ModeRegister, logging.Discard())
	require.NoError(t, signup.Register(ctx, draft))
	require.NoError(t, signup.CancelSelection())
	require.NoError(t, sess.Clear(ctx))

	o := flow.New(client, sess, flow.ModeLogin, logging.Discard())
	require.NoError(t, o.Login(ctx, draft.Email, draft.Password))
	assert.Equal(t, flow.VerifyingOtp{Email: draft.Email, Purpose: flow.PurposeRegistration}, o.State())
	require.NoError(t, o.Verify(ctx, stub.Code(draft.Email)))
	assert.IsType(t, flow.Done{}, o.State())
	require.NoError(t, o.Logout(ctx))
	assert.Empty(t, sess.Token())

	require.NoError(t, o.Login(ctx, draft.Email, draft.Password))
	assert.Equal(t, flow.VerifyingOtp{Email: draft.Email, Purpose: flow.PurposeLogin}, o.State())
	require.NoError(t, o.Resend(ctx))
	require.NoError(t, o.Verify(ctx, stub.Code(draft.Email)))
	assert.IsType(t, flow.Done{}, o.State())
	assert.NotEmpty(t, sess.Token())
}

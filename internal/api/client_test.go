package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/session"
	"github.com/docuhub/portal/internal/stubtest"
)

const email = "ana@example.com"

var registration = api.Registration{
	Email:          email,
	TaxID:          "ACME010101AB1",
	WhatsappNumber: "+5215550000000",
	Password:       "secret1",
}

func newClient(t *testing.T, stub *stubtest.Stub, opts ...api.Option) (*api.Client, *session.Session) {
	t.Helper()
	sess, err := session.Open(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
	opts = append([]api.Option{api.WithHTTPClient(stub.HTTPClient())}, opts...)
	return api.New(stubtest.BaseURL, sess, opts...), sess
}

func TestRegisterVerifyAssociateAndNotifications(t *testing.T) {
	ctx := context.Background()
	stub := stubtest.New(t, nil)
	client, sess := newClient(t, stub)

	outcome, err := client.Register(ctx, registration)
	require.NoError(t, err)
	assert.Equal(t, api.CompanySelectionRequired{Email: email}, outcome)

	companies, err := client.ApprovedCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 2)

	_, err = client.VerifyOTP(ctx, email, "000000x")
	var rejection *api.ServerRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusBadRequest, rejection.Status)

	token, err := client.VerifyOTP(ctx, email, stub.Code(email))
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NoError(t, sess.Set(ctx, token))

	require.NoError(t, client.AssociateCompany(ctx, companies[0].ID))
	err = client.AssociateCompany(ctx, companies[0].ID)
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusConflict, rejection.Status)

	mine, err := client.MyCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, companies[0].ID, mine[0].ID)

	items, err := client.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, n := range items {
		assert.False(t, n.Read)
	}

	require.NoError(t, client.MarkNotificationRead(ctx, items[0].ID))
	require.NoError(t, client.DeleteNotification(ctx, items[1].ID))
	items, err = client.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Read)

	require.NoError(t, client.ClearNotifications(ctx))
	items, err = client.Notifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoginPendingApprovalIsClassifiedNotGlobal(t *testing.T) {
	ctx := context.Background()
	stub := stubtest.New(t, nil, stubtest.WithManualApproval())
	hooks := 0
	client, sess := newClient(t, stub, api.OnUnauthorized(func() { hooks++ }))
	require.NoError(t, sess.Set(ctx, "previous-token"))

	_, err := client.Register(ctx, registration)
	require.NoError(t, err)

	outcome, err := client.Login(ctx, email, "secret1")
	require.NoError(t, err)
	assert.Equal(t, api.EmailVerificationRequired{Email: email}, outcome)

	token, err := client.VerifyOTP(ctx, email, stub.Code(email))
	require.NoError(t, err)
	assert.Empty(t, token)

	outcome, err = client.Login(ctx, email, "secret1")
	require.NoError(t, err)
	pending, ok := outcome.(api.PendingApproval)
	require.True(t, ok, "got %#v", outcome)
	assert.Equal(t, "Acme Logistics", pending.CompanyName)

	_, err = client.Login(ctx, email, "wrong-password")
	var rejection *api.ServerRejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusUnauthorized, rejection.Status)
	assert.Equal(t, "invalid email or password", api.Message(err))

	assert.Equal(t, 0, hooks)
	assert.Equal(t, "previous-token", sess.Token())

	stub.Approve(t, email)
	outcome, err = client.Login(ctx, email, "secret1")
	require.NoError(t, err)
	assert.IsType(t, api.LoggedIn{}, outcome)
}

func TestLoginOTPAndIdempotentAssociation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	ctx := context.Background()
	stub := stubtest.New(t, cache, stubtest.WithLoginOTP())
	client, sess := newClient(t, stub)

	_, err = client.Register(ctx, registration)
	require.NoError(t, err)
	_, err = client.VerifyOTP(ctx, email, stub.Code(email))
	require.NoError(t, err)

	outcome, err := client.Login(ctx, email, "secret1")
	require.NoError(t, err)
	assert.Equal(t, api.LoginOTPRequired{Email: email}, outcome)

	require.NoError(t, client.ResendOTP(ctx, email))
	token, err := client.VerifyLoginOTP(ctx, email, stub.Code(email))
	require.NoError(t, err)
	require.NoError(t, sess.Set(ctx, token))

	companies, err := client.ApprovedCompanies(ctx)
	require.NoError(t, err)
	// The stub requires an Idempotency-Key when Redis is configured.
	require.NoError(t, client.AssociateCompany(ctx, companies[1].ID))
}

func TestUnauthorizedClearsSessionOnce(t *testing.T) {
	ctx := context.Background()
	stub := stubtest.New(t, nil)
	hooks := 0
	client, sess := newClient(t, stub, api.OnUnauthorized(func() { hooks++ }))
	cleared := 0
	sess.OnClear(func() { cleared++ })
	require.NoError(t, sess.Set(ctx, "forged"))

	_, err := client.Notifications(ctx)
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Empty(t, sess.Token())
	assert.Equal(t, 1, hooks)
	assert.Equal(t, 1, cleared)

	_, err = client.Notifications(ctx)
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, 1, hooks, "requests without a token never reach the server")
}

func TestTransportFailureIsRequestError(t *testing.T) {
	sess, err := session.Open(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
	down := &http.Client{Transport: stubtest.RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	client := api.New(stubtest.BaseURL, sess, api.WithHTTPClient(down))

	_, err = client.ApprovedCompanies(context.Background())
	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Could not reach the server. Check your connection and try again.", api.Message(err))
}

// Package api is the client of the collaborator REST API. It attaches the session's bearer
// token to authenticated calls, classifies auth responses into explicit outcomes and
// handles 401 answers once for every caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/docuhub/portal/internal/logging"
)

// Session is the token holder the client reads from and clears on 401.
type Session interface {
	Token() string
	Clear(ctx context.Context) error
}

// Client talks to the collaborator API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        Session
	logger         *slog.Logger
	onUnauthorized func()
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// OnUnauthorized registers the hook run after a 401 cleared the session, typically a
// return to the login entry point.
func OnUnauthorized(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New builds a client for the API mounted at baseURL (e.g. http://localhost:8080/api).
func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    session,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method  string
	path    string
	body    any
	auth    bool
	headers map[string]string
}

// send performs the call and returns the status and raw body. Only authenticated calls
// answered with 401 are turned into an error here; every other status is left to the
// caller.
func (c *Client) send(ctx context.Context, r request) (int, []byte, error) {
	var reader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return 0, nil, &RequestError{Op: "create request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		httpReq.Header.Set(k, v)
	}
	if r.auth {
		token := c.session.Token()
		if token == "" {
			return 0, nil, ErrUnauthorized
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &RequestError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &RequestError{Op: "read response", Err: err}
	}
	c.logger.Debug("api call", slog.String("method", r.method), slog.String("path", r.path), slog.Int("status", resp.StatusCode))

	if r.auth && resp.StatusCode == http.StatusUnauthorized {
		c.unauthorized(ctx, r.path)
		return resp.StatusCode, body, ErrUnauthorized
	}
	return resp.StatusCode, body, nil
}

// unauthorized clears the session and runs the hook. Context cancellation of the failed
// call must not keep the stale token around, hence the detached context.
func (c *Client) unauthorized(ctx context.Context, path string) {
	c.logger.Warn("session rejected by server", slog.String("path", path))
	if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("clear session failed", slog.Any("error", err))
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// do performs the call and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	status, body, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if !success(status) {
		return rejection(status, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RequestError{Op: "decode response", Err: fmt.Errorf("%w (body: %s)", err, string(body))}
	}
	return nil
}

// Login submits credentials and classifies the answer.
func (c *Client) Login(ctx context.Context, email, password string) (LoginOutcome, error) {
	status, body, err := c.send(ctx, request{method: http.MethodPost, path: "/auth/login", body: credentials{Email: email, Password: password}})
	if err != nil {
		return nil, err
	}
	return ClassifyLogin(status, body)
}

// Register submits a sign-up and classifies the answer.
func (c *Client) Register(ctx context.Context, reg Registration) (RegisterOutcome, error) {
	status, body, err := c.send(ctx, request{method: http.MethodPost, path: "/auth/register", body: reg})
	if err != nil {
		return nil, err
	}
	return ClassifyRegister(status, body)
}

// VerifyOTP confirms a registration code. The token is empty when the account cannot log
// in yet.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	var out authBody
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/verify-otp", body: otpBody{Email: email, OTPCode: code}}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// VerifyLoginOTP completes a two-factor login.
func (c *Client) VerifyLoginOTP(ctx context.Context, email, code string) (string, error) {
	var out authBody
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/verify-login-otp", body: otpBody{Email: email, OTPCode: code}}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &ServerRejection{Status: http.StatusOK, Message: "login verified but no token was issued"}
	}
	return out.Token, nil
}

// ResendOTP asks for a fresh code.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/resend-otp", body: emailBody{Email: email}}, nil)
}

// ApprovedCompanies lists the companies open for association.
func (c *Client) ApprovedCompanies(ctx context.Context) ([]Company, error) {
	var out []Company
	if err := c.do(ctx, request{method: http.MethodGet, path: "/companies/approved"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssociateCompany links the logged-in account with a company. Each call carries a fresh
// Idempotency-Key so a transport retry cannot link twice.
func (c *Client) AssociateCompany(ctx context.Context, companyID string) error {
	return c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/companies/my-companies",
		body:    associateBody{CompanyID: companyID},
		auth:    true,
		headers: map[string]string{"Idempotency-Key": uuid.NewString()},
	}, nil)
}

// MyCompanies lists the companies linked to the logged-in account.
func (c *Client) MyCompanies(ctx context.Context) ([]Company, error) {
	var out []Company
	if err := c.do(ctx, request{method: http.MethodGet, path: "/companies/my-companies", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Notifications fetches the account's notifications.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, request{method: http.MethodGet, path: "/notification", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/notification/" + url.PathEscape(id) + "/read", auth: true}, nil)
}

// ClearNotifications deletes every notification.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/notification", auth: true}, nil)
}

// DeleteNotification deletes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/notification/" + url.PathEscape(id), auth: true}, nil)
}

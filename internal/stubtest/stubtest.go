// Package stubtest runs the collaborator API stub in process for client tests. Requests
// never touch the network: the transport hands them to fiber's app.Test.
package stubtest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/docuhub/portal/internal/config"
	"github.com/docuhub/portal/internal/logging"
	"github.com/docuhub/portal/internal/notification"
	"github.com/docuhub/portal/internal/server"
)

// BaseURL is the API root the stub answers on.
const BaseURL = "http://stub.test/api"

// AdminKey unlocks the stub's admin routes.
const AdminKey = "stub-admin"

// Stub is a running collaborator API that records the OTP codes it sends.
type Stub struct {
	Server *server.Server

	mu    sync.Mutex
	codes map[string]string
	sent  map[string]int
}

// Option adjusts the stub configuration.
type Option func(*config.Server)

// WithLoginOTP makes approved accounts confirm every login with a code.
func WithLoginOTP() Option {
	return func(c *config.Server) { c.LoginOTP = true }
}

// WithManualApproval leaves new accounts pending until approved through the admin route.
func WithManualApproval() Option {
	return func(c *config.Server) { c.AutoApprove = false }
}

// New starts a stub. cache may be nil for in-memory code storage.
func New(t testing.TB, cache *redis.Client, opts ...Option) *Stub {
	t.Helper()
	cfg := config.Server{
		AppName:        "stubtest",
		AppEnv:         "test",
		JWTSecret:      "stubtest-secret",
		AdminKey:       AdminKey,
		AutoApprove:    true,
		TokenTTL:       time.Hour,
		OTPTTL:         time.Minute,
		IdempotencyTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Stub{codes: map[string]string{}, sent: map[string]int{}}
	srv, err := server.New(cfg, nil, cache, logging.Discard(), server.WithNotifier(s))
	if err != nil {
		t.Fatalf("start stub: %v", err)
	}
	s.Server = srv
	return s
}

// Send records the code carried by the last word of an OTP message.
func (s *Stub) Send(_ context.Context, m notification.Message) error {
	fields := strings.Fields(m.Body)
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[m.Destination] = fields[len(fields)-1]
	s.sent[m.Destination]++
	return nil
}

// Code returns the last code sent to email.
func (s *Stub) Code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

// Sent counts the codes sent to email.
func (s *Stub) Sent(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[email]
}

// HTTPClient returns a client whose requests are served by the stub.
func (s *Stub) HTTPClient() *http.Client {
	return &http.Client{Transport: Transport(s.Server.App())}
}

// Approve approves a pending account.
func (s *Stub) Approve(t testing.TB, email string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email})
	req, _ := http.NewRequest(http.MethodPost, BaseURL+"/admin/accounts/approve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", AdminKey)
	resp, err := s.Server.App().Test(req, -1)
	if err != nil {
		t.Fatalf("approve %s: %v", email, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve %s: status %d", email, resp.StatusCode)
	}
}

// RoundTripFunc adapts a function to http.RoundTripper.
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Transport serves requests with app in process.
func Transport(app *fiber.App) http.RoundTripper {
	return RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := app.Test(r, -1)
		if err != nil {
			return nil, err
		}
		resp.Request = r
		return resp, nil
	})
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the stub API's Prometheus collectors on a private registry, so several
// servers can coexist in one test binary.
type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	logins       *prometheus.CounterVec
	otpIssued    *prometheus.CounterVec
	otpVerified  *prometheus.CounterVec
	associations *prometheus.CounterVec
}

// New registers the stub collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuhub_stub",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuhub_stub",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuhub_stub",
			Name:      "otp_issued_total",
			Help:      "One-time passcodes issued, by purpose.",
		}, []string{"purpose"}),
		otpVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuhub_stub",
			Name:      "otp_verifications_total",
			Help:      "One-time passcode checks, by purpose and result.",
		}, []string{"purpose", "result"}),
		associations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docuhub_stub",
			Name:      "company_associations_total",
			Help:      "Account to company association requests, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.requests, m.logins, m.otpIssued, m.otpVerified, m.associations)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Request counts one served request.
func (m *Metrics) Request(method, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, status).Inc()
}

// Login counts a login attempt outcome.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// OTPIssued counts an issued passcode.
func (m *Metrics) OTPIssued(purpose string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(purpose).Inc()
}

// OTPVerified counts a passcode check.
func (m *Metrics) OTPVerified(purpose string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.otpVerified.WithLabelValues(purpose, result).Inc()
}

// Association counts an association request result.
func (m *Metrics) Association(result string) {
	if m == nil {
		return
	}
	m.associations.WithLabelValues(result).Inc()
}

// Command portal is the terminal client of the DocuHub portal: sign-up with company
// selection and OTP verification, login, notifications and company exports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/config"
	"github.com/docuhub/portal/internal/infra"
	"github.com/docuhub/portal/internal/logging"
	"github.com/docuhub/portal/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd(os.Stdin, os.Stdout, nil).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg     config.Client
	logger  *slog.Logger
	session *session.Session
	client  *api.Client
	cache   *redis.Client
	in      io.Reader
	out     io.Writer

	// unauthorized runs after the client dropped a rejected session.
	unauthorized func()
}

func newApp(ctx context.Context, cfg config.Client, in io.Reader, out io.Writer, transport http.RoundTripper) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.NewWriter(os.Stderr, cfg.LogLevel).With("service", "portal"),
		in:     in,
		out:    out,
	}

	var store session.Store
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, infra.WithPoolSize(2))
		if err != nil {
			return nil, err
		}
		a.cache = cache
		store = session.NewRedisStore(cache, sessionScope())
	case config.TokenStoreMemory:
		store = session.NewMemoryStore()
	default:
		store = session.NewFileStore(cfg.TokenFile)
	}
	sess, err := session.Open(ctx, store)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = sess

	a.client = api.New(cfg.APIBaseURL, sess,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout, Transport: transport}),
		api.WithLogger(a.logger),
		api.OnUnauthorized(func() {
			if a.unauthorized != nil {
				a.unauthorized()
			}
		}),
	)
	return a, nil
}

// Close releases the Redis connection, if any.
func (a *app) Close() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("close redis", "error", err)
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func sessionScope() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "default"
}

// rootCmd builds the command tree. transport may be nil for the default HTTP transport.
func rootCmd(in io.Reader, out io.Writer, transport http.RoundTripper) *cobra.Command {
	var (
		apiURL string
		a      *app
	)

	cmd := &cobra.Command{
		Use:   "portal",
		Short: "DocuHub portal client",
		Long: `Terminal client for the DocuHub portal.

Examples:
  portal register                      # Create an account, pick companies, verify the code
  portal login                         # Log in, with a second factor when required
  portal notifications --watch         # Follow notifications as they arrive
  portal companies export --out c.xlsx # Export the approved companies
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			if apiURL != "" {
				cfg.APIBaseURL = apiURL
			}
			a, err = newApp(cmd.Context(), cfg, in, out, transport)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides API_BASE_URL)")

	get := func() *app { return a }
	cmd.AddCommand(registerCmd(get), loginCmd(get), logoutCmd(get), notificationsCmd(get), companiesCmd(get))
	return cmd
}

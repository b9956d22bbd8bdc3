package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/export"
	"github.com/docuhub/portal/internal/flow"
	"github.com/docuhub/portal/internal/notify"
)

func (a *app) interactive(mode flow.Mode) *driver {
	o := flow.New(a.client, a.session, mode, a.logger)
	a.unauthorized = o.HandleUnauthorized
	return &driver{flow: o, ask: newLinePrompter(a.in, a.out), out: a.out, cooldown: a.cfg.ResendCooldown}
}

func registerCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account, select companies and verify your email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().interactive(flow.ModeRegister).run(cmd.Context())
		},
	}
}

func loginCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in, confirming a one-time code when required",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().interactive(flow.ModeLogin).run(cmd.Context())
		},
	}
}

func logoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			o := flow.New(a.client, a.session, flow.ModeLogin, a.logger)
			if err := o.Logout(cmd.Context()); err != nil {
				return err
			}
			if st, ok := o.State().(flow.Registering); ok {
				a.printf("%s\n", st.Notice)
			}
			return nil
		},
	}
}

// requireSession reports a friendly error before any authenticated call is attempted.
func (a *app) requireSession() error {
	if !a.session.Authenticated() {
		return errors.New("not logged in; run 'portal login' first")
	}
	return nil
}

// panel loads the notification list once so that the poller's local operations have
// something to act on.
func (a *app) panel(ctx context.Context) (*notify.Poller, error) {
	if err := a.requireSession(); err != nil {
		return nil, err
	}
	p := notify.New(a.client, notify.WithLogger(a.logger))
	if err := p.Refresh(ctx); err != nil {
		return nil, explain(err)
	}
	return p, nil
}

// explain turns API errors into the message a user should read.
func explain(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(api.Message(err))
}

func notificationsCmd(get func() *app) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			if interval <= 0 {
				interval = a.cfg.PollInterval
			}
			if !watch {
				p, err := a.panel(cmd.Context())
				if err != nil {
					return err
				}
				printNotifications(a.out, p.Items(), p.Unread())
				return nil
			}

			p := notify.New(a.client,
				notify.WithInterval(interval),
				notify.WithLogger(a.logger),
				notify.OnChange(func(items []api.Notification, unread int) {
					a.printf("\n%s\n", time.Now().Format(time.Kitchen))
					printNotifications(a.out, items, unread)
				}),
			)
			a.unauthorized = func() { a.printf("Session expired; run 'portal login' again.\n") }
			a.session.OnClear(p.Halt)
			if err := p.Start(cmd.Context()); err != nil {
				return err
			}
			defer p.Stop()
			a.printf("Watching notifications every %s, press Ctrl+C to stop.\n", interval)
			for p.Running() {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(200 * time.Millisecond):
				}
			}
			return explain(p.Err())
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling and print changes")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (defaults to NOTIFICATION_POLL_INTERVAL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "read ID",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			p, err := a.panel(cmd.Context())
			if err != nil {
				return err
			}
			if err := p.MarkRead(cmd.Context(), args[0]); err != nil {
				return explain(err)
			}
			a.printf("Marked %s as read, %d unread.\n", args[0], p.Unread())
			return nil
		},
	}, &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			p, err := a.panel(cmd.Context())
			if err != nil {
				return err
			}
			if err := p.Remove(cmd.Context(), args[0]); err != nil {
				return explain(err)
			}
			a.printf("Deleted %s, %d left.\n", args[0], len(p.Items()))
			return nil
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Delete every notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			p, err := a.panel(cmd.Context())
			if err != nil {
				return err
			}
			n := len(p.Items())
			if err := p.ClearAll(cmd.Context()); err != nil {
				return explain(err)
			}
			a.printf("Cleared %d notification(s).\n", n)
			return nil
		},
	}, exportCmd(get, "Export notifications to an .xlsx workbook", false, func(cmd *cobra.Command, a *app, w io.Writer, _ bool) error {
		if err := a.requireSession(); err != nil {
			return err
		}
		items, err := a.client.Notifications(cmd.Context())
		if err != nil {
			return explain(err)
		}
		return export.Notifications(w, items)
	}))
	return cmd
}

func companiesCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "companies",
		Short: "Browse the company directory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "approved",
		Short: "List companies open for association",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			cs, err := a.client.ApprovedCompanies(cmd.Context())
			if err != nil {
				return explain(err)
			}
			printCompanies(a.out, cs)
			return nil
		},
	}, &cobra.Command{
		Use:   "mine",
		Short: "List the companies linked to your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.requireSession(); err != nil {
				return err
			}
			cs, err := a.client.MyCompanies(cmd.Context())
			if err != nil {
				return explain(err)
			}
			printCompanies(a.out, cs)
			return nil
		},
	}, exportCmd(get, "Export companies to an .xlsx workbook", true, func(cmd *cobra.Command, a *app, w io.Writer, mine bool) error {
		var (
			cs  []api.Company
			err error
		)
		if mine {
			if err := a.requireSession(); err != nil {
				return err
			}
			cs, err = a.client.MyCompanies(cmd.Context())
		} else {
			cs, err = a.client.ApprovedCompanies(cmd.Context())
		}
		if err != nil {
			return explain(err)
		}
		return export.Companies(w, cs)
	}))
	return cmd
}

// exportCmd builds an "export --out FILE" subcommand around write.
func exportCmd(get func() *app, short string, withMine bool, write func(*cobra.Command, *app, io.Writer, bool) error) *cobra.Command {
	var (
		out  string
		mine bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := write(cmd, a, f, mine); err != nil {
				_ = f.Close()
				_ = os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			a.printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Destination .xlsx file")
	if withMine {
		cmd.Flags().BoolVar(&mine, "mine", false, "Export only the companies linked to your account")
	}
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func printCompanies(w io.Writer, cs []api.Company) {
	if len(cs) == 0 {
		fmt.Fprintln(w, "No companies.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTAX ID\tEMAIL")
	for _, c := range cs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.TaxID, c.Email)
	}
	_ = tw.Flush()
}

func printNotifications(w io.Writer, items []api.Notification, unread int) {
	fmt.Fprintf(w, "%d notification(s), %d unread\n", len(items), unread)
	if len(items) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, " \tID\tTITLE\tMESSAGE\tWHEN")
	for _, n := range items {
		mark := "*"
		if n.Read {
			mark = " "
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, n.ID, n.Title, n.Message, n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docuhub/portal/internal/api"
	"github.com/docuhub/portal/internal/flow"
	"github.com/docuhub/portal/internal/otp"
	"github.com/docuhub/portal/internal/registration"
)

// driver walks the flow step by step, reading answers from a prompter.
type driver struct {
	flow     *flow.Orchestrator
	ask      prompter
	out      io.Writer
	cooldown time.Duration
}

func (d *driver) say(format string, args ...any) {
	fmt.Fprintf(d.out, format+"\n", args...)
}

// run drives the flow until Done or until input ends.
func (d *driver) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch s := d.flow.State().(type) {
		case flow.Registering:
			if s.Notice != "" {
				d.say("%s", s.Notice)
			}
			if s.Mode == flow.ModeLogin {
				err = d.login(ctx)
			} else {
				err = d.register(ctx)
			}
		case flow.SelectingCompanies:
			err = d.selectCompanies(s)
		case flow.VerifyingOtp:
			err = d.enterCode(ctx, s)
		case flow.Done:
			d.say("You are logged in.")
			if s.Warning != "" {
				d.say("Warning: %s", s.Warning)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// register collects the sign-up form. Input errors are reported and the step repeats.
func (d *driver) register(ctx context.Context) error {
	var draft registration.Draft
	var err error
	if draft.Email, err = d.ask.Ask("Email"); err != nil {
		return err
	}
	if draft.TaxID, err = d.taxID(); err != nil {
		return err
	}
	if draft.WhatsappNumber, err = d.ask.Ask("WhatsApp number"); err != nil {
		return err
	}
	if draft.Password, err = d.ask.Ask("Password"); err != nil {
		return err
	}
	if draft.ConfirmPassword, err = d.ask.Ask("Confirm password"); err != nil {
		return err
	}
	if err := d.flow.Register(ctx, draft); err != nil {
		d.report(err)
	}
	return nil
}

// taxID re-asks until every typed character fits its position.
func (d *driver) taxID() (string, error) {
	for {
		v, err := d.ask.Ask("Tax ID (4 letters, 6 digits, 3 letters or digits)")
		if err != nil {
			return "", err
		}
		if verr := registration.CheckTaxIDPrefix(v); verr != nil {
			d.say("  %s", verr.Message)
			continue
		}
		return strings.ToUpper(v), nil
	}
}

func (d *driver) login(ctx context.Context) error {
	email, err := d.ask.Ask("Email")
	if err != nil {
		return err
	}
	password, err := d.ask.Ask("Password")
	if err != nil {
		return err
	}
	if err := d.flow.Login(ctx, email, password); err != nil {
		d.report(err)
	}
	return nil
}

func (d *driver) selectCompanies(s flow.SelectingCompanies) error {
	step := d.flow.Selection()
	d.say("Select the companies you work with:")
	for i, c := range s.Candidates {
		mark := " "
		if step.Selected(c.ID) {
			mark = "x"
		}
		d.say("  [%s] %d. %s (%s)", mark, i+1, c.Name, c.TaxID)
	}
	line, err := d.ask.Ask("Numbers to toggle, 'done' or 'cancel'")
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "done":
		if err := d.flow.ConfirmSelection(); err != nil {
			d.report(err)
		}
		return nil
	case "cancel":
		return d.flow.CancelSelection()
	}
	for _, f := range strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == ',' }) {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > len(s.Candidates) {
			d.say("  ignoring %q", f)
			continue
		}
		step.Toggle(s.Candidates[n-1].ID)
	}
	return nil
}

// enterCode feeds each answer to the OTP widget as a paste until the flow leaves the step.
func (d *driver) enterCode(ctx context.Context, s flow.VerifyingOtp) error {
	w := otp.New(d.flow.Verify, d.flow.Resend, otp.WithCooldown(d.cooldown), otp.WithMessage(api.Message))
	d.say("We sent a %d-digit %s code to %s.", otp.Length, s.Purpose, s.Email)
	for {
		line, err := d.ask.Ask("Code ('resend' or 'back')")
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "back":
			return d.flow.Back()
		case "resend":
			if err := w.Resend(ctx); err != nil {
				if errors.Is(err, otp.ErrCoolingDown) {
					d.say("  You can ask for a new code in %ds.", w.View().Cooldown)
				} else {
					d.say("  %s", w.View().Error)
				}
				continue
			}
			d.say("  A new code is on its way.")
			continue
		}

		if err := w.Paste(ctx, line); err != nil && !errors.Is(err, flow.ErrStale) {
			d.say("  %s", w.View().Error)
		}
		v := w.View()
		if v.Verified {
			return nil
		}
		if v.Cells[otp.Length-1] == "" && v.Error == "" {
			if err := w.Submit(ctx); errors.Is(err, otp.ErrIncomplete) {
				d.say("  %s", w.View().Error)
			}
		}
		if _, still := d.flow.State().(flow.VerifyingOtp); !still {
			return nil
		}
	}
}

func (d *driver) report(err error) {
	if msg := d.flow.Error(); msg != "" {
		d.say("  %s", msg)
		return
	}
	d.say("  %s", api.Message(err))
}

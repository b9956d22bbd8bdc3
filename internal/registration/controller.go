// Package registration validates sign-up drafts and submits them.
package registration

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/docuhub/portal/internal/api"
)

// Draft is the sign-up form.
type Draft struct {
	Email           string `validate:"required"`
	TaxID           string `validate:"required"`
	WhatsappNumber  string `validate:"required"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required"`
}

// Normalized trims the text fields and upper-cases the tax id. Passwords are kept as typed.
func (d Draft) Normalized() Draft {
	d.Email = strings.TrimSpace(d.Email)
	d.TaxID = strings.ToUpper(strings.TrimSpace(d.TaxID))
	d.WhatsappNumber = strings.TrimSpace(d.WhatsappNumber)
	return d
}

// SubmitFunc sends a validated draft and classifies the answer.
type SubmitFunc func(ctx context.Context, reg api.Registration) (api.RegisterOutcome, error)

// Controller validates drafts before submitting them. It does not navigate: the caller
// decides what a classified outcome leads to.
type Controller struct {
	submit   SubmitFunc
	validate *validator.Validate
}

// NewController builds a controller around submit.
func NewController(submit SubmitFunc) *Controller {
	return &Controller{submit: submit, validate: newValidator()}
}

// Validate returns the first failing check as a *ValidationError.
func (c *Controller) Validate(d Draft) error {
	return validate(c.validate, d.Normalized())
}

// Submit validates the draft and, only if it passes, submits it. A rejection by the
// server comes back as an *api.ServerRejection.
func (c *Controller) Submit(ctx context.Context, d Draft) (api.RegisterOutcome, error) {
	d = d.Normalized()
	if err := validate(c.validate, d); err != nil {
		return nil, err
	}
	return c.submit(ctx, api.Registration{
		Email:          d.Email,
		TaxID:          d.TaxID,
		WhatsappNumber: d.WhatsappNumber,
		Password:       d.Password,
	})
}

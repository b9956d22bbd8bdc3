package registration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuhub/portal/internal/api"
)

func validDraft() Draft {
	return Draft{
		Email:           "ana@example.com",
		TaxID:           "ACME010101AB1",
		WhatsappNumber:  "+5215550000000",
		Password:        "abcdef",
		ConfirmPassword: "abcdef",
	}
}

func TestCheckTaxIDPrefix(t *testing.T) {
	assert.Nil(t, CheckTaxIDPrefix("AAAA123456ABC"))
	assert.Nil(t, CheckTaxIDPrefix("aaaa12"))
	assert.Nil(t, CheckTaxIDPrefix(""))

	cases := []struct {
		input    string
		position int
		message  string
	}{
		{"1AAA123456ABC", 1, "tax ID position 1: letters only"},
		{"AAA", 0, ""},
		{"AAAAB", 5, "tax ID position 5: digits only"},
		{"AAAA123456-", 11, "tax ID position 11: letters or digits only"},
		{"AAAA123456ABCD", 14, "tax ID has at most 13 characters"},
	}
	for _, tc := range cases {
		err := CheckTaxIDPrefix(tc.input)
		if tc.position == 0 {
			assert.Nil(t, err, tc.input)
			continue
		}
		require.NotNil(t, err, tc.input)
		assert.Equal(t, tc.position, err.Position, tc.input)
		assert.Equal(t, tc.message, err.Message, tc.input)
	}
}

func TestValidationOrder(t *testing.T) {
	c := NewController(nil)
	cases := []struct {
		name  string
		edit  func(*Draft)
		field string
		msg   string
	}{
		{"missing whatsapp", func(d *Draft) { d.WhatsappNumber = ""; d.TaxID = "bad" }, "WhatsappNumber", "WhatsApp number is required"},
		{"short tax id", func(d *Draft) { d.TaxID = "ACME0101"; d.Email = "nope" }, "TaxID", "tax ID must be exactly 13 characters (4 letters, 6 digits, 3 letters or digits)"},
		{"tax id position", func(d *Draft) { d.TaxID = "1AAA123456ABC" }, "TaxID", "tax ID position 1: letters only"},
		{"email shape", func(d *Draft) { d.Email = "ana@example"; d.ConfirmPassword = "x" }, "Email", "email must look like name@domain.tld"},
		{"mismatch", func(d *Draft) { d.Password = "abc"; d.ConfirmPassword = "abd" }, "ConfirmPassword", "passwords do not match"},
		{"short password", func(d *Draft) { d.Password = "abc"; d.ConfirmPassword = "abc" }, "Password", "password must be at least 6 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.edit(&d)
			err := c.Validate(d)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.msg, verr.Message)
		})
	}
	assert.NoError(t, c.Validate(validDraft()))
}

func TestMismatchBlocksSubmit(t *testing.T) {
	calls := 0
	c := NewController(func(context.Context, api.Registration) (api.RegisterOutcome, error) {
		calls++
		return api.Registered{}, nil
	})
	d := validDraft()
	d.Password, d.ConfirmPassword = "abcdef", "abcdeg"

	_, err := c.Submit(context.Background(), d)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "passwords do not match", verr.Message)
	assert.Equal(t, 0, calls)
}

func TestSubmitNormalizesAndPassesOutcomeThrough(t *testing.T) {
	var got api.Registration
	c := NewController(func(_ context.Context, reg api.Registration) (api.RegisterOutcome, error) {
		got = reg
		return api.RegistrationOTPRequired{Email: reg.Email}, nil
	})
	d := validDraft()
	d.Email = "  ana@example.com "
	d.TaxID = "acme010101ab1"

	outcome, err := c.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, api.RegistrationOTPRequired{Email: "ana@example.com"}, outcome)
	assert.Equal(t, api.Registration{Email: "ana@example.com", TaxID: "ACME010101AB1", WhatsappNumber: "+5215550000000", Password: "abcdef"}, got)
}

func TestSubmitSurfacesRejection(t *testing.T) {
	rejected := &api.ServerRejection{Status: 409, Message: "an account with this email already exists"}
	c := NewController(func(context.Context, api.Registration) (api.RegisterOutcome, error) {
		return nil, rejected
	})
	_, err := c.Submit(context.Background(), validDraft())
	assert.True(t, errors.Is(err, rejected))
	assert.Equal(t, "an account with this email already exists", api.Message(err))
}

package registration

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TaxIDLength is the fixed length of a tax id.
const TaxIDLength = 13

var (
	taxIDPattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[A-Z0-9]{3}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidationError is a local failure that blocks the submit. Position is the 1-based
// offending tax id character, or 0.
type ValidationError struct {
	Field    string
	Position int
	Message  string
}

func (e *ValidationError) Error() string { return e.Message }

var fieldLabels = map[string]string{
	"Email":           "email",
	"TaxID":           "tax ID",
	"WhatsappNumber":  "WhatsApp number",
	"Password":        "password",
	"ConfirmPassword": "password confirmation",
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("taxid", func(fl validator.FieldLevel) bool {
		return taxIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("basic_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// validate runs the checks in order and reports the first failure.
func validate(v *validator.Validate, d Draft) error {
	if err := v.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			f := fieldErrs[0]
			return &ValidationError{Field: f.Field(), Message: fieldLabels[f.Field()] + " is required"}
		}
		return err
	}
	if err := CheckTaxIDPrefix(d.TaxID); err != nil {
		return err
	}
	if v.Var(d.TaxID, "len=13,taxid") != nil {
		return &ValidationError{Field: "TaxID", Message: fmt.Sprintf("tax ID must be exactly %d characters (4 letters, 6 digits, 3 letters or digits)", TaxIDLength)}
	}
	if v.Var(d.Email, "basic_email") != nil {
		return &ValidationError{Field: "Email", Message: "email must look like name@domain.tld"}
	}
	if v.VarWithValue(d.ConfirmPassword, d.Password, "eqfield") != nil {
		return &ValidationError{Field: "ConfirmPassword", Message: "passwords do not match"}
	}
	if v.Var(d.Password, "min=6") != nil {
		return &ValidationError{Field: "Password", Message: "password must be at least 6 characters"}
	}
	return nil
}

// CheckTaxIDPrefix validates a tax id while it is being typed: each character must fit
// its position (1-4 letters, 5-10 digits, 11-13 letters or digits). Length is not checked
// until submit, apart from rejecting extra characters.
func CheckTaxIDPrefix(input string) *ValidationError {
	s := strings.ToUpper(input)
	for i, r := range s {
		pos := i + 1
		switch {
		case pos > TaxIDLength:
			return &ValidationError{Field: "TaxID", Position: pos, Message: fmt.Sprintf("tax ID has at most %d characters", TaxIDLength)}
		case pos <= 4 && !isLetter(r):
			return &ValidationError{Field: "TaxID", Position: pos, Message: fmt.Sprintf("tax ID position %d: letters only", pos)}
		case pos > 4 && pos <= 10 && !isDigit(r):
			return &ValidationError{Field: "TaxID", Position: pos, Message: fmt.Sprintf("tax ID position %d: digits only", pos)}
		case pos > 10 && !isLetter(r) && !isDigit(r):
			return &ValidationError{Field: "TaxID", Position: pos, Message: fmt.Sprintf("tax ID position %d: letters or digits only", pos)}
		}
	}
	return nil
}

func isLetter(r rune) bool { return r >= 'A' && r <= 'Z' }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

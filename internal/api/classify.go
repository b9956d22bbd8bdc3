package api

import (
	"encoding/json"
	"net/http"
)

// LoginOutcome is the classified answer of a credential submit. It is one of LoggedIn,
// LoginOTPRequired, EmailVerificationRequired or PendingApproval.
type LoginOutcome interface {
	loginOutcome()
}

// LoggedIn carries the session token of a completed login.
type LoggedIn struct {
	Token string
}

// LoginOTPRequired means a second factor was sent to Email.
type LoginOTPRequired struct {
	Email string
}

// EmailVerificationRequired means the account's email was never confirmed; a fresh
// registration code was sent to Email.
type EmailVerificationRequired struct {
	Email string
}

// PendingApproval means the credentials are valid but the account awaits approval.
type PendingApproval struct {
	CompanyName string
	Message     string
}

func (LoggedIn) loginOutcome()                  {}
func (LoginOTPRequired) loginOutcome()          {}
func (EmailVerificationRequired) loginOutcome() {}
func (PendingApproval) loginOutcome()           {}

// RegisterOutcome is the classified answer of a sign-up. It is one of
// CompanySelectionRequired, RegistrationOTPRequired or Registered.
type RegisterOutcome interface {
	registerOutcome()
}

// CompanySelectionRequired means the server offers companies to associate with before the
// registration code is entered.
type CompanySelectionRequired struct {
	Email string
}

// RegistrationOTPRequired means a registration code was sent to Email.
type RegistrationOTPRequired struct {
	Email string
}

// Registered means the account is usable right away. Token may be empty.
type Registered struct {
	Token string
}

func (CompanySelectionRequired) registerOutcome() {}
func (RegistrationOTPRequired) registerOutcome()  {}
func (Registered) registerOutcome()               {}

// ClassifyLogin maps a login response to an outcome. Anything unrecognized is a
// *ServerRejection.
func ClassifyLogin(status int, body []byte) (LoginOutcome, error) {
	var b authBody
	decodeErr := json.Unmarshal(body, &b)

	if status == http.StatusUnauthorized && decodeErr == nil && b.IsPending {
		return PendingApproval{CompanyName: b.CompanyName, Message: b.Message}, nil
	}
	if !success(status) {
		return nil, rejection(status, body)
	}
	if decodeErr != nil {
		return nil, &ServerRejection{Status: status, Message: "unexpected login response"}
	}
	switch {
	case b.Token != "":
		return LoggedIn{Token: b.Token}, nil
	case b.RequiresLoginOTP:
		return LoginOTPRequired{Email: b.Email}, nil
	case b.RequiresEmailVerification:
		return EmailVerificationRequired{Email: b.Email}, nil
	default:
		return nil, &ServerRejection{Status: status, Message: "unexpected login response"}
	}
}

// ClassifyRegister maps a sign-up response to an outcome. Company selection wins over
// email verification since the code is entered after the selection.
func ClassifyRegister(status int, body []byte) (RegisterOutcome, error) {
	if !success(status) {
		return nil, rejection(status, body)
	}
	var b authBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, &ServerRejection{Status: status, Message: "unexpected registration response"}
		}
	}
	switch {
	case b.RequiresCompanySelection:
		return CompanySelectionRequired{Email: b.Email}, nil
	case b.RequiresEmailVerification:
		return RegistrationOTPRequired{Email: b.Email}, nil
	default:
		return Registered{Token: b.Token}, nil
	}
}

// rejection reads the {"message"} error body every endpoint answers with.
func rejection(status int, body []byte) *ServerRejection {
	var b struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &b)
	return &ServerRejection{Status: status, Message: b.Message}
}

func success(status int) bool {
	return status >= 200 && status < 300
}

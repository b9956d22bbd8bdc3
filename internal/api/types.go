package api

import "time"

// Company is an entry of the company directory.
type Company struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"taxId"`
	Email string `json:"email"`
}

// Notification is one item of the account's notification panel.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registration is the body of a sign-up request.
type Registration struct {
	Email          string `json:"email"`
	TaxID          string `json:"taxId"`
	WhatsappNumber string `json:"whatsappNumber"`
	Password       string `json:"password"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpBody struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
}

type emailBody struct {
	Email string `json:"email"`
}

type associateBody struct {
	CompanyID string `json:"companyId"`
}

// authBody is the union of every shape the auth endpoints answer with.
type authBody struct {
	Token                     string `json:"token"`
	Message                   string `json:"message"`
	Email                     string `json:"email"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
	RequiresCompanySelection  bool   `json:"requiresCompanySelection"`
	RequiresLoginOTP          bool   `json:"requiresLoginOTP"`
	IsPending                 bool   `json:"isPending"`
	CompanyName               string `json:"companyName"`
}

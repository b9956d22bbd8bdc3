package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/company"
	"github.com/docuhub/portal/internal/identity"
	"github.com/docuhub/portal/internal/metrics"
	"github.com/docuhub/portal/internal/notification"
)

// HandlerDeps aggregates what the auth endpoints need.
type HandlerDeps struct {
	Accounts  *identity.Service
	Tokens    *Service
	Codes     CodeStore
	Companies *company.Service
	Notices   *notification.Service
	Notifier  notification.Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	LoginOTP  bool
}

// Handler exposes registration, login and OTP endpoints.
type Handler struct {
	HandlerDeps
}

// NewHandler builds the auth HTTP handler.
func NewHandler(d HandlerDeps) *Handler {
	return &Handler{HandlerDeps: d}
}

type registerRequest struct {
	Email          string `json:"email"`
	TaxID          string `json:"taxId"`
	WhatsappNumber string `json:"whatsappNumber"`
	Password       string `json:"password"`
}

type registerResponse struct {
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
	RequiresCompanySelection  bool   `json:"requiresCompanySelection,omitempty"`
	Email                     string `json:"email"`
	Message                   string `json:"message"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token                     string       `json:"token,omitempty"`
	User                      *accountView `json:"user,omitempty"`
	RequiresEmailVerification bool         `json:"requiresEmailVerification,omitempty"`
	RequiresLoginOTP          bool         `json:"requiresLoginOTP,omitempty"`
	Email                     string       `json:"email,omitempty"`
	Message                   string       `json:"message,omitempty"`
}

type pendingResponse struct {
	Message     string `json:"message"`
	IsPending   bool   `json:"isPending"`
	CompanyName string `json:"companyName"`
}

type otpRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
}

type accountView struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// Register creates an unverified account and sends the email verification code.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	account, err := h.Accounts.Register(c.UserContext(), identity.Registration{
		Email:          req.Email,
		TaxID:          req.TaxID,
		WhatsappNumber: req.WhatsappNumber,
		Password:       req.Password,
	})
	if errors.Is(err, identity.ErrAccountExists) {
		return fiber.NewError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.sendCode(c.UserContext(), PurposeRegistration, account.Email); err != nil {
		return err
	}

	approved, err := h.Companies.Approved(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	h.Logger.Info("auth.register completed", slog.String("account_id", account.ID), slog.Int("companies_offered", len(approved)))
	return c.Status(http.StatusCreated).JSON(registerResponse{
		RequiresEmailVerification: true,
		RequiresCompanySelection:  len(approved) > 0,
		Email:                     account.Email,
		Message:                   "verification code sent",
	})
}

// Login checks credentials and answers with a token or the next step the client must take.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ctx := c.UserContext()
	account, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.Metrics.Login("invalid")
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	if !account.EmailVerified {
		h.Metrics.Login("email_unverified")
		if err := h.sendCode(ctx, PurposeRegistration, account.Email); err != nil {
			return err
		}
		return c.JSON(loginResponse{RequiresEmailVerification: true, Email: account.Email, Message: "verify your email to continue"})
	}
	if account.Status != identity.StatusApproved {
		h.Metrics.Login("pending")
		return c.Status(http.StatusUnauthorized).JSON(pendingResponse{
			Message:     "account pending approval",
			IsPending:   true,
			CompanyName: h.companyName(ctx, account),
		})
	}
	if h.LoginOTP {
		h.Metrics.Login("otp_required")
		if err := h.sendCode(ctx, PurposeLogin, account.Email); err != nil {
			return err
		}
		return c.JSON(loginResponse{RequiresLoginOTP: true, Email: account.Email, Message: "login code sent"})
	}

	h.Metrics.Login("success")
	return h.issue(c, account, "")
}

// VerifyOTP confirms a registration code. Approved accounts receive a token; accounts still
// pending approval are told to log in later.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ctx := c.UserContext()
	email := normalizeEmail(req.Email)
	if err := h.checkCode(ctx, PurposeRegistration, email, req.OTPCode); err != nil {
		return err
	}
	account, err := h.Accounts.MarkVerified(ctx, email)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if account.Status != identity.StatusApproved {
		return c.JSON(loginResponse{Message: "email verified; your account is pending approval"})
	}
	if err := h.Notices.Notify(ctx, account.ID, account.Email, notification.KindWelcome, "Welcome", "Your email has been verified."); err != nil {
		h.Logger.Warn("welcome notification failed", slog.String("account_id", account.ID), slog.Any("error", err))
	}
	return h.issue(c, account, "email verified")
}

// VerifyLoginOTP completes a two-factor login.
func (h *Handler) VerifyLoginOTP(c *fiber.Ctx) error {
	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ctx := c.UserContext()
	email := normalizeEmail(req.Email)
	if err := h.checkCode(ctx, PurposeLogin, email, req.OTPCode); err != nil {
		return err
	}
	account, err := h.Accounts.Lookup(ctx, email)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if account.Status != identity.StatusApproved {
		return fiber.NewError(http.StatusUnauthorized, "account pending approval")
	}
	return h.issue(c, account, "")
}

// ResendOTP issues a fresh code for whichever verification the account is waiting on.
func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	account, err := h.Accounts.Lookup(c.UserContext(), normalizeEmail(req.Email))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	purpose := PurposeLogin
	if !account.EmailVerified {
		purpose = PurposeRegistration
	}
	if err := h.sendCode(c.UserContext(), purpose, account.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "a new code has been sent"})
}

func (h *Handler) issue(c *fiber.Ctx, account identity.Account, message string) error {
	token, err := h.Tokens.Issue(account)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(loginResponse{
		Token:   token,
		User:    &accountView{ID: account.ID, Email: account.Email, Status: account.Status},
		Message: message,
	})
}

func (h *Handler) sendCode(ctx context.Context, purpose, email string) error {
	code, err := h.Codes.Issue(ctx, purpose, email)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	h.Metrics.OTPIssued(purpose)
	msg := notification.Message{
		Kind:        notification.KindOTP,
		Destination: email,
		Body:        fmt.Sprintf("Your %s code is %s", purpose, code),
	}
	if err := h.Notifier.Send(ctx, msg); err != nil {
		return fiber.NewError(http.StatusBadGateway, "could not deliver verification code")
	}
	return nil
}

func (h *Handler) checkCode(ctx context.Context, purpose, email, code string) error {
	err := h.Codes.Verify(ctx, purpose, email, strings.TrimSpace(code))
	h.Metrics.OTPVerified(purpose, err == nil)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrTooManyAttempts):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// companyName names the company registered under the account's tax id, if any.
func (h *Handler) companyName(ctx context.Context, account identity.Account) string {
	c, err := h.Companies.FindByTaxID(ctx, account.TaxID)
	if err != nil {
		return ""
	}
	return c.Name
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

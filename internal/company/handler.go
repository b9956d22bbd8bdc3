package company

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/metrics"
	"github.com/docuhub/portal/internal/middleware"
	"github.com/docuhub/portal/internal/notification"
)

// Handler exposes company directory endpoints.
type Handler struct {
	service *Service
	notices *notification.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler builds a company HTTP handler.
func NewHandler(service *Service, notices *notification.Service, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{service: service, notices: notices, metrics: m, logger: logger}
}

type companyView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"taxId"`
	Email string `json:"email"`
}

func views(cs []Company) []companyView {
	out := make([]companyView, 0, len(cs))
	for _, c := range cs {
		out = append(out, companyView{ID: c.ID, Name: c.Name, TaxID: c.TaxID, Email: c.Email})
	}
	return out
}

// Approved lists the companies open for association.
func (h *Handler) Approved(c *fiber.Ctx) error {
	cs, err := h.service.Approved(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(views(cs))
}

// Mine lists the companies linked to the authenticated account.
func (h *Handler) Mine(c *fiber.Ctx) error {
	cs, err := h.service.ForAccount(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(views(cs))
}

// Associate links the authenticated account with a company.
func (h *Handler) Associate(c *fiber.Ctx) error {
	var req struct {
		CompanyID string `json:"companyId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.CompanyID == "" {
		return fiber.NewError(http.StatusBadRequest, "companyId is required")
	}
	accountID := middleware.AccountID(c)
	company, err := h.service.Associate(c.UserContext(), accountID, req.CompanyID)
	switch {
	case errors.Is(err, ErrNotFound):
		h.metrics.Association("not_found")
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotApproved):
		h.metrics.Association("not_approved")
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrAlreadyAssociated):
		h.metrics.Association("duplicate")
		return fiber.NewError(http.StatusConflict, err.Error())
	case err != nil:
		h.metrics.Association("error")
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	h.metrics.Association("ok")

	email, _ := c.Locals(middleware.LocalAccountEmail).(string)
	if err := h.notices.Notify(c.UserContext(), accountID, email, notification.KindCompanyLinked,
		"Company linked", "You are now associated with "+company.Name+"."); err != nil {
		h.logger.Warn("association notification failed", slog.String("account_id", accountID), slog.Any("error", err))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "company associated",
		"company": companyView{ID: company.ID, Name: company.Name, TaxID: company.TaxID, Email: company.Email},
	})
}

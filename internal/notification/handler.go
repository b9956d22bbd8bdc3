package notification

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/middleware"
)

// Handler exposes the notification panel endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a notification HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type notificationView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// List returns the caller's notifications, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, notificationView{ID: n.ID, Title: n.Title, Message: n.Message, Read: n.Read, CreatedAt: n.CreatedAt})
	}
	return c.JSON(out)
}

// MarkRead flags one notification as read.
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	if err := h.service.MarkRead(c.UserContext(), middleware.AccountID(c), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"message": "notification marked as read"})
}

// Delete removes one notification.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), middleware.AccountID(c), c.Params("id")); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"message": "notification deleted"})
}

// Clear removes every notification of the caller.
func (h *Handler) Clear(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext(), middleware.AccountID(c)); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"message": "notifications cleared"})
}

func mapError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/identity"
)

const (
	// LocalAccountID holds the authenticated account id.
	LocalAccountID = "account_id"
	// LocalAccountEmail holds the authenticated account email.
	LocalAccountEmail = "account_email"
)

// TokenVerifier resolves a bearer token to an account id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AccountFinder loads accounts by id.
type AccountFinder interface {
	Get(ctx context.Context, id string) (identity.Account, error)
}

// BearerAuth validates `Authorization: Bearer <token>` and requires an approved account.
func BearerAuth(tokens TokenVerifier, accounts AccountFinder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		accountID, err := tokens.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		account, err := accounts.Get(c.UserContext(), accountID)
		if err != nil || account.Status != identity.StatusApproved {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals(LocalAccountID, account.ID)
		c.Locals(LocalAccountEmail, account.Email)
		return c.Next()
	}
}

// AccountID returns the account authenticated by BearerAuth.
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalAccountID).(string)
	return id
}

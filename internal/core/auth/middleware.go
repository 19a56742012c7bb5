package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const userLocalsKey = "auth.user"

// Middleware authenticates "Authorization: Bearer <token>" and stores the user
// in the request locals. Requests without a valid token get 401.
func Middleware(parser *TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"message": "Missing bearer token",
			})
		}

		user, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid token",
			})
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// RequireManageOrders rejects callers that are neither admins nor employees.
func RequireManageOrders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication required",
			})
		}
		if err := user.AuthorizeManageOrders(); err != nil {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{
				"message": err.(*ForbiddenError).Reason,
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user of the request.
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	user, ok := c.Locals(userLocalsKey).(*User)
	return user, ok && user != nil
}

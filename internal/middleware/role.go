package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole returns a middleware that enforces the caller's role claim.
// This service knows two roles: "CLIENT" (a device at a table, possibly
// an anonymous invite guest) and "STAFF" (bar personnel).  Client routes
// accept both so a waiter can drive a table on a customer's behalf;
// staff routes accept STAFF only.  The role must have been stored in the
// context by JWTAuth; a missing or unknown role gets 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
			}
			return next(c)
		}
	}
}

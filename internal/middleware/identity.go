package middleware

// identity.go holds the fallback participant lookup shared by middleware
// that needs an identity on routes JWTAuth may not wrap (the invite
// claim endpoint, the health check).  It digs the opaque participant id
// out of a parsed token left in context by other JWT middleware, and
// reports "guest" for unauthenticated devices so they still get a
// stable rate-limit bucket.

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// participantFromToken extracts the participant id from a JWT stored in
// context under "user".  It returns "guest" when no token is present or
// the claims carry no usable subject.
func participantFromToken(c echo.Context) string {
	u := c.Get("user")
	if u == nil {
		return "guest"
	}
	if tok, ok := u.(*jwt.Token); ok {
		if cl, ok := tok.Claims.(jwt.MapClaims); ok {
			if v, ok := cl["sub"].(string); ok && v != "" {
				return v
			}
			if v, ok := cl["user_id"].(string); ok && v != "" {
				return v
			}
		}
	}
	return "guest"
}

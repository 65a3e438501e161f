package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"medibook/cmd/internal/utils/apierror"
)

const claimsKey = "auth.claims"

// Middleware rejects requests without a valid access token and stores
// the parsed claims on the echo context for handlers to pick up.
// WebSocket clients cannot set headers, so a `token` query parameter is
// accepted as a fallback.
func Middleware(a *Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request())
			if raw == "" {
				raw = c.QueryParam("token")
			}

			if raw == "" {
				return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
			}

			claims, err := a.ParseAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsFromCtx returns the claims stored by Middleware.
func ClaimsFromCtx(c echo.Context) (*Claims, error) {
	claims, ok := c.Get(claimsKey).(*Claims)
	if !ok || claims == nil {
		return nil, ErrBadToken
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

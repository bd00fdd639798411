package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, identityKey{}, email)
}

func IdentityFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityKey{}).(string)
	return v, ok && v != ""
}

// AdminAuth trusts the identity header set by the fronting auth proxy.
// A missing header is 401; an identity outside a non-empty allowlist is 403.
func AdminAuth(header string, allow []string, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(allow))
	for _, a := range allow {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			allowed[a] = struct{}{}
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who := strings.ToLower(strings.TrimSpace(c.Request().Header.Get(header)))
			if who == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if len(allowed) > 0 {
				if _, ok := allowed[who]; !ok {
					log.Warn("admin access denied", zap.String("identity", who), zap.String("path", c.Path()))
					return echo.NewHTTPError(http.StatusForbidden, "not an administrator")
				}
			}
			req := c.Request()
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), who)))
			c.Set("admin", who)
			return next(c)
		}
	}
}

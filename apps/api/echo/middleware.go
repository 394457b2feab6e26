package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// audienceMiddleware rejects tokens that were not issued for this API.
func audienceMiddleware(aud string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if aud != "" && !claims.VerifyAudience(aud, true) {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}

func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

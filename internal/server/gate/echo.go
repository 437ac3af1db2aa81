package gate

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Middleware adapts the gate to an echo middleware. Every rejection maps
// to 401 with the category message only; which check failed stays inside.
func Middleware(g *Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authz := c.Request().Header.Get(echo.HeaderAuthorization)
			p, err := g.Authenticate(c.Request().Context(), authz)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

// OptionalMiddleware attaches the principal when the credential checks out
// and proceeds anonymously otherwise.
func OptionalMiddleware(g *Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authz := c.Request().Header.Get(echo.HeaderAuthorization)
			if p := g.AuthenticateLenient(c.Request().Context(), authz); p != nil {
				c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			}
			return next(c)
		}
	}
}

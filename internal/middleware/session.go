package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/session"
)

// UserContextKey is the echo context key holding the signed-in SessionRecord.
const UserContextKey = "user"

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/portal/login"

// RequireSession protects routes that need a signed-in user. Requests without
// a session record in either scope are redirected to the login page.
func RequireSession(mgr *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			record, ok := mgr.For(c.Response(), c.Request()).Current()
			if !ok {
				return c.Redirect(http.StatusSeeOther, LoginPath)
			}
			c.Set(UserContextKey, record)
			return next(c)
		}
	}
}

// CurrentUser returns the record stored by RequireSession.
func CurrentUser(c echo.Context) (domain.SessionRecord, bool) {
	record, ok := c.Get(UserContextKey).(domain.SessionRecord)
	return record, ok
}

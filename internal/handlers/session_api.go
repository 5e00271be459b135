package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/profile"
	"github.com/ffland/portal/internal/session"
)

// SessionAPI exposes the signed-in session to the rest of the application.
type SessionAPI struct {
	sessions *session.Manager
}

// NewSessionAPI creates a new SessionAPI.
func NewSessionAPI(sessions *session.Manager) *SessionAPI {
	return &SessionAPI{sessions: sessions}
}

// Get returns the session record and cached profile (GET /api/session).
func (h *SessionAPI) Get(c echo.Context) error {
	rs := h.sessions.For(c.Response(), c.Request())
	record, ok := rs.Current()
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "unauthenticated",
			Message: "no active session",
		})
	}

	p, ok := rs.Profile()
	if !ok {
		p = domain.Profile{}
	}
	field, _ := profile.FirstIncomplete(p)
	return c.JSON(http.StatusOK, SessionResponse{
		User:              record,
		CalculatorStorage: p,
		Complete:          field == "",
		FirstIncomplete:   field,
	})
}

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ffland/portal/internal/middleware"
	"github.com/ffland/portal/internal/profile"
	"github.com/ffland/portal/internal/rendering"
	"github.com/ffland/portal/internal/session"
	"github.com/ffland/portal/internal/view"
	"github.com/ffland/portal/internal/view/dto/auth"
	"github.com/ffland/portal/internal/view/pages"
)

// PageHandler serves the pages a login can lead to.
type PageHandler struct {
	sessions *session.Manager
	renderer rendering.Renderer
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(sessions *session.Manager, renderer rendering.Renderer) *PageHandler {
	return &PageHandler{sessions: sessions, renderer: renderer}
}

// HomeGet renders the home page. It sits behind RequireSession.
func (h *PageHandler) HomeGet(c echo.Context) error {
	user, _ := middleware.CurrentUser(c)
	return h.renderer.RenderPage(c, http.StatusOK, view.Page("Home", pages.Home(user, csrfToken(c))))
}

// CalculatorGet renders the calculator placeholder, pointing at the first
// profile field still to fill in.
func (h *PageHandler) CalculatorGet(c echo.Context) error {
	user, _ := middleware.CurrentUser(c)
	var next string
	if p, ok := h.sessions.For(c.Response(), c.Request()).Profile(); ok {
		next, _ = profile.FirstIncomplete(p)
	}
	return h.renderer.RenderPage(c, http.StatusOK, view.Page("Calculator", pages.Calculator(user, next, csrfToken(c))))
}

// SignupGet renders the sign-up landing page.
func (h *PageHandler) SignupGet(c echo.Context) error {
	flashes := view.GetFlashData(c)
	return h.renderer.RenderPage(c, http.StatusOK, view.Page("Sign up", pages.Signup(auth.SignupData{Errors: flashes.Error})))
}

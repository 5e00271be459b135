package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	echosession "github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/identity/google"
	"github.com/ffland/portal/internal/login"
	"github.com/ffland/portal/internal/middleware"
	"github.com/ffland/portal/internal/rendering"
	"github.com/ffland/portal/internal/session"
	"github.com/ffland/portal/internal/view"
	"github.com/ffland/portal/internal/view/dto/auth"
	"github.com/ffland/portal/internal/view/pages"
)

const (
	oauthSessionName = "oauth-flow"
	oauthKeyState    = "state"
	oauthKeyVerifier = "verifier"
	oauthKeyStay     = "stay"

	// oauthFlowMaxAge bounds how long a user may sit on Google's consent page.
	oauthFlowMaxAge = 10 * 60
)

// User-facing messages.
const (
	msgInvalidCredentials = "Incorrect email or password, please try again!"
	msgInvalidForm        = "Please enter a valid email address and your password."
	msgUserDisabled       = "This account has been disabled."
	msgTooManyAttempts    = "Too many attempts. Please try again later."
	msgProviderConnection = "could not connect to Google"
	msgProfileUnavailable = "We couldn't load your profile. Please try again."
	msgSessionPersist     = "We couldn't keep you signed in on this device. Please try again."
	msgServiceUnavailable = "The login service is unavailable. Please try again later."
	msgLoggedOut          = "You have been logged out."
	msgSignupFormat       = `User "%s" doesn't exist, please sign up to FF Land using Google!`
)

// LoginService runs the login pipelines.
type LoginService interface {
	PasswordLogin(ctx context.Context, creds domain.Credentials, c session.Committer) (login.Result, error)
	FederatedLogin(ctx context.Context, tok domain.FederatedToken, stayLoggedIn bool, c session.Committer) (login.Result, error)
}

// GoogleFlow starts and completes the OAuth round trip to Google.
type GoogleFlow interface {
	AuthCodeURL(flow google.Flow) string
	Exchange(ctx context.Context, code string, flow google.Flow) (domain.FederatedToken, error)
}

// AuthHandler handles the login portal requests.
type AuthHandler struct {
	logins   LoginService
	sessions *session.Manager
	// google is nil when Google sign-in is not configured.
	google   GoogleFlow
	renderer rendering.Renderer
}

// NewAuthHandler creates a new AuthHandler. google may be nil.
func NewAuthHandler(logins LoginService, sessions *session.Manager, google GoogleFlow, renderer rendering.Renderer) *AuthHandler {
	return &AuthHandler{
		logins:   logins,
		sessions: sessions,
		google:   google,
		renderer: renderer,
	}
}

// LoginGet renders the login card (GET /portal/login). Signed-in users go home.
func (h *AuthHandler) LoginGet(c echo.Context) error {
	if _, ok := h.sessions.For(c.Response(), c.Request()).Current(); ok {
		return c.Redirect(http.StatusSeeOther, login.PathHome)
	}

	email := view.PopFormEmail(c)
	flashes := view.GetFlashData(c)
	data := auth.LoginData{
		Email:         email,
		CSRF:          csrfToken(c),
		GoogleEnabled: h.google != nil,
		Errors:        flashes.Error,
		Notices:       flashes.Success,
	}
	return h.renderer.RenderPage(c, http.StatusOK, view.Page("Log in", pages.Login(data)))
}

// LoginPost handles the credential form (POST /portal/login).
func (h *AuthHandler) LoginPost(c echo.Context) error {
	var creds domain.Credentials
	if err := c.Bind(&creds); err != nil {
		view.SetFlashError(c, msgInvalidForm)
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}
	if err := c.Validate(&creds); err != nil {
		view.SetFlashError(c, msgInvalidForm)
		view.SetFormEmail(c, creds.Email)
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}

	ctx := c.Request().Context()
	res, err := h.logins.PasswordLogin(ctx, creds, h.sessions.For(c.Response(), c.Request()))
	if err != nil {
		view.SetFlashError(c, loginErrorMessage(err))
		view.SetFormEmail(c, creds.Email)
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}

	return c.Redirect(http.StatusSeeOther, res.Destination())
}

// GoogleStart sends the browser to Google's consent page
// (POST /portal/login/google).
func (h *AuthHandler) GoogleStart(c echo.Context) error {
	if h.google == nil {
		return echo.ErrNotFound
	}

	flow := google.NewFlow(uuid.NewString())
	sess, _ := echosession.Get(oauthSessionName, c)
	sess.Options = flowCookieOptions(c, oauthFlowMaxAge)
	sess.Values[oauthKeyState] = flow.State
	sess.Values[oauthKeyVerifier] = flow.Verifier
	sess.Values[oauthKeyStay] = isChecked(c.FormValue("stay_logged_in"))
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to save oauth flow", "error", err)
		view.SetFlashError(c, msgProviderConnection)
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}

	return c.Redirect(http.StatusSeeOther, h.google.AuthCodeURL(flow))
}

// GoogleCallback completes the Google sign-in
// (GET /portal/login/google/callback).
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if h.google == nil {
		return echo.ErrNotFound
	}
	ctx := c.Request().Context()
	logger := middleware.FromContext(ctx)

	// The flow is single use whatever happens next.
	sess, _ := echosession.Get(oauthSessionName, c)
	state, _ := sess.Values[oauthKeyState].(string)
	verifier, _ := sess.Values[oauthKeyVerifier].(string)
	stay, _ := sess.Values[oauthKeyStay].(bool)
	sess.Values = map[interface{}]interface{}{}
	sess.Options = flowCookieOptions(c, -1)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		logger.Error("Failed to clear oauth flow", "event", "oauth_flow_clear_failed", "error", err)
	}

	if reason := c.QueryParam("error"); reason != "" {
		logger.Warn("Google sign-in aborted", "event", "google_callback_error", "reason", reason)
		view.SetFlashError(c, msgProviderConnection)
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}
	if state == "" || verifier == "" || c.QueryParam("state") != state {
		logger.Warn("Google callback state mismatch", "event", "google_state_mismatch")
		view.SetFlashError(c, msgProviderConnection)
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}

	tok, err := h.google.Exchange(ctx, c.QueryParam("code"), google.Flow{State: state, Verifier: verifier})
	if err != nil {
		logger.Warn("Google code exchange failed", "event", "google_exchange_failed", "error", err)
		view.SetFlashError(c, loginErrorMessage(err))
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}

	res, err := h.logins.FederatedLogin(ctx, tok, stay, h.sessions.For(c.Response(), c.Request()))
	if err != nil {
		view.SetFlashError(c, loginErrorMessage(err))
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}
	if res.Outcome == login.OutcomeNeedsSignup {
		view.SetFlashError(c, fmt.Sprintf(msgSignupFormat, res.Identity.Email))
	}
	return c.Redirect(http.StatusSeeOther, res.Destination())
}

// Logout clears both session scopes (POST /portal/logout).
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.sessions.For(c.Response(), c.Request()).Clear(); err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to clear session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not log out")
	}
	view.SetFlashSuccess(c, msgLoggedOut)
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// loginErrorMessage maps a login failure to what the user is shown.
// Collaborator failures never read as bad credentials.
func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, domain.ErrUserDisabled):
		return msgUserDisabled
	case errors.Is(err, domain.ErrTooManyAttempts):
		return msgTooManyAttempts
	case errors.Is(err, domain.ErrProviderConnection):
		return msgProviderConnection
	case errors.Is(err, domain.ErrProfileUnavailable):
		return msgProfileUnavailable
	case errors.Is(err, domain.ErrSessionPersist):
		return msgSessionPersist
	}
	return msgServiceUnavailable
}

func flowCookieOptions(c echo.Context, maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/portal/login/google",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.IsTLS(),
		// Lax so the cookie rides along on Google's top-level redirect back.
		SameSite: http.SameSiteLaxMode,
	}
}

func isChecked(v string) bool {
	switch v {
	case "true", "on", "1":
		return true
	}
	return false
}

// csrfToken returns the token set by echo's CSRF middleware, if enabled.
func csrfToken(c echo.Context) string {
	tok, _ := c.Get("csrf").(string)
	return tok
}

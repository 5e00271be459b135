// Package server assembles the portal: container, echo instance, routes and
// lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	echosession "github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/samber/do/v2"

	"github.com/ffland/portal/internal/config"
	"github.com/ffland/portal/internal/events"
	"github.com/ffland/portal/internal/handlers"
	"github.com/ffland/portal/internal/metrics"
	"github.com/ffland/portal/internal/middleware"
	"github.com/ffland/portal/internal/session"
)

// Server holds the echo instance and the services behind it.
type Server struct {
	E   *echo.Echo
	Cfg *config.Config

	injector do.Injector
}

// New builds a Server from cfg. It connects to the directory backend, so it
// fails fast on bad settings.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	i := NewContainer(ctx, cfg)
	s := &Server{Cfg: cfg, injector: i}

	authHandler, err := do.Invoke[*handlers.AuthHandler](i)
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("build auth handler: %w", err)
	}
	pageHandler := do.MustInvoke[*handlers.PageHandler](i)
	sessionAPI := do.MustInvoke[*handlers.SessionAPI](i)
	manager := do.MustInvoke[*session.Manager](i)
	store := do.MustInvoke[sessions.Store](i)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	setupErrorHandling(e)

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())
	e.Use(metrics.HTTPMiddleware())
	e.Use(echosession.Middleware(store))

	csrf := echomw.CSRFWithConfig(echomw.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.SecureCookies(),
		CookieSameSite: http.SameSiteLaxMode,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	})
	e.Use(csrf)

	s.E = e
	s.registerRoutes(authHandler, pageHandler, sessionAPI, middleware.RequireSession(manager))
	return s, nil
}

// StartEventLog subscribes the audit logger to login events.
func (s *Server) StartEventLog(ctx context.Context) error {
	bus, err := do.Invoke[*events.Bus](s.injector)
	if err != nil {
		return err
	}
	return events.LogLoginEvents(ctx, bus, middleware.FromContext(ctx))
}

// Close releases connections opened for the server, newest first.
func (s *Server) Close(ctx context.Context) error {
	cl, err := do.Invoke[*closers](s.injector)
	if err != nil {
		return err
	}
	var errs []error
	for idx := len(cl.fns) - 1; idx >= 0; idx-- {
		if err := cl.fns[idx](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package server

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"

	"github.com/ffland/portal/internal/handlers"
	"github.com/ffland/portal/internal/middleware"
)

// registerRoutes sets up all the application routes.
func (s *Server) registerRoutes(auth *handlers.AuthHandler, pages *handlers.PageHandler, api *handlers.SessionAPI, requireSession echo.MiddlewareFunc) {
	rateLimiter := middleware.RateLimiter(s.Cfg.LoginRatePerMin)

	portal := s.E.Group("/portal")
	portal.GET("/login", auth.LoginGet)
	portal.POST("/login", auth.LoginPost, rateLimiter)
	portal.POST("/login/google", auth.GoogleStart, rateLimiter)
	portal.GET("/login/google/callback", auth.GoogleCallback, rateLimiter)
	portal.POST("/logout", auth.Logout)
	portal.GET("/signup", pages.SignupGet)

	s.E.GET("/", pages.HomeGet, requireSession)
	s.E.GET("/calculator", pages.CalculatorGet, requireSession)
	s.E.GET("/api/session", api.Get)

	s.E.GET("/metrics", echoprometheus.NewHandler())
	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/sessions"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"

	"github.com/ffland/portal/internal/config"
	"github.com/ffland/portal/internal/directory/file"
	"github.com/ffland/portal/internal/directory/httpapi"
	"github.com/ffland/portal/internal/directory/postgres"
	"github.com/ffland/portal/internal/directory/surreal"
	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/events"
	"github.com/ffland/portal/internal/handlers"
	"github.com/ffland/portal/internal/identity/firebase"
	"github.com/ffland/portal/internal/identity/google"
	"github.com/ffland/portal/internal/login"
	"github.com/ffland/portal/internal/rendering"
	"github.com/ffland/portal/internal/session"
	"github.com/ffland/portal/internal/tracing"
)

// Version is reported on traces. Set at build time with -ldflags.
var Version = "dev"

// closer releases a resource acquired while building the container.
type closer func(ctx context.Context) error

// closers collects shutdown hooks in acquisition order.
type closers struct {
	fns []closer
}

func (c *closers) add(fn closer) { c.fns = append(c.fns, fn) }

// NewContainer registers every service the portal needs. Services are built
// lazily on first invoke.
func NewContainer(ctx context.Context, cfg *config.Config) do.Injector {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.ProvideValue(i, &closers{})

	do.Provide(i, func(i do.Injector) (sessions.Store, error) {
		return session.NewStore([]byte(cfg.SessionSecret), cfg.SessionDir, int(cfg.SessionDurableTTL.Seconds())), nil
	})

	do.Provide(i, func(i do.Injector) (*session.Manager, error) {
		store := do.MustInvoke[sessions.Store](i)
		return session.NewManager(store, session.Options{
			DurableMaxAge: int(cfg.SessionDurableTTL.Seconds()),
			Secure:        cfg.SecureCookies(),
		}), nil
	})

	do.Provide(i, func(i do.Injector) (domain.IdentityProvider, error) {
		opts := []firebase.Option{firebase.WithTimeout(cfg.IdentityTimeout)}
		if cfg.FirebaseBaseURL != "" {
			opts = append(opts, firebase.WithBaseURL(cfg.FirebaseBaseURL))
		}
		return firebase.NewClient(cfg.FirebaseAPIKey, cfg.AppBaseURL, opts...), nil
	})

	do.Provide(i, func(i do.Injector) (domain.Directory, error) {
		return newDirectory(ctx, cfg, do.MustInvoke[*closers](i))
	})

	// Nil when Google sign-in is not configured.
	do.Provide(i, func(i do.Injector) (*google.Provider, error) {
		if !cfg.GoogleEnabled() {
			return nil, nil
		}
		return google.New(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL(),
			Timeout:      cfg.IdentityTimeout,
		}), nil
	})

	do.Provide(i, func(i do.Injector) (trace.TracerProvider, error) {
		tp, shutdown, err := tracing.Setup(ctx, tracing.Config{
			Enabled:     cfg.TracingEnabled,
			ServiceName: cfg.ServiceName,
			ZipkinURL:   cfg.ZipkinURL,
			Version:     Version,
		})
		if err != nil {
			return nil, err
		}
		do.MustInvoke[*closers](i).add(shutdown)
		return tp, nil
	})

	do.Provide(i, func(i do.Injector) (*events.Bus, error) {
		tp := do.MustInvoke[trace.TracerProvider](i)
		bus := events.NewBus(events.WithTracer(tp.Tracer("github.com/ffland/portal/internal/events")))
		do.MustInvoke[*closers](i).add(func(context.Context) error { return bus.Close() })
		return bus, nil
	})

	do.Provide(i, func(i do.Injector) (*login.Service, error) {
		tp := do.MustInvoke[trace.TracerProvider](i)
		opts := []login.Option{
			login.WithEvents(events.NewLoginPublisher(do.MustInvoke[*events.Bus](i))),
			login.WithTracer(tp.Tracer("github.com/ffland/portal/internal/login")),
		}
		if g := do.MustInvoke[*google.Provider](i); g != nil {
			opts = append(opts, login.WithRevoker(g))
		}
		return login.NewService(
			do.MustInvoke[domain.IdentityProvider](i),
			do.MustInvoke[domain.Directory](i),
			opts...,
		), nil
	})

	do.Provide(i, func(i do.Injector) (rendering.Renderer, error) {
		return rendering.NewUniversalRenderer(), nil
	})

	do.Provide(i, func(i do.Injector) (*handlers.AuthHandler, error) {
		var flow handlers.GoogleFlow
		if g := do.MustInvoke[*google.Provider](i); g != nil {
			flow = g
		}
		return handlers.NewAuthHandler(
			do.MustInvoke[*login.Service](i),
			do.MustInvoke[*session.Manager](i),
			flow,
			do.MustInvoke[rendering.Renderer](i),
		), nil
	})

	do.Provide(i, func(i do.Injector) (*handlers.PageHandler, error) {
		return handlers.NewPageHandler(do.MustInvoke[*session.Manager](i), do.MustInvoke[rendering.Renderer](i)), nil
	})

	do.Provide(i, func(i do.Injector) (*handlers.SessionAPI, error) {
		return handlers.NewSessionAPI(do.MustInvoke[*session.Manager](i)), nil
	})

	return i
}

// newDirectory opens the directory backend selected by cfg.
func newDirectory(ctx context.Context, cfg *config.Config, cl *closers) (domain.Directory, error) {
	slog.Info("Opening user directory", "backend", cfg.DirectoryBackend)

	switch cfg.DirectoryBackend {
	case config.BackendHTTP:
		return httpapi.NewClient(cfg.DirectoryURL, []byte(cfg.DirectorySecret), cfg.DirectoryTimeout), nil

	case config.BackendSurreal:
		db, err := surreal.Connect(ctx, surreal.ConnConfig{
			URL:       cfg.SurrealURL,
			User:      cfg.SurrealUser,
			Pass:      cfg.SurrealPass,
			Namespace: cfg.SurrealNS,
			Database:  cfg.SurrealDB,
		})
		if err != nil {
			return nil, err
		}
		cl.add(func(ctx context.Context) error { return db.Close(ctx) })
		return surreal.NewStore(db), nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		cl.add(func(context.Context) error { return db.Close() })
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		return postgres.NewStore(db), nil

	case config.BackendFile:
		return file.NewStore(afero.NewOsFs(), cfg.DirectoryRoot), nil
	}
	return nil, fmt.Errorf("unknown directory backend %q", cfg.DirectoryBackend)
}

// Package login runs the sign-in pipelines: authenticate, fetch the profile,
// persist the session and decide where the user goes next.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/events"
	"github.com/ffland/portal/internal/metrics"
	"github.com/ffland/portal/internal/profile"
	"github.com/ffland/portal/internal/session"
)

// Login methods, used for events, metrics and logs.
const (
	MethodPassword = "password"
	MethodGoogle   = "google"
)

// Revoker invalidates a federated token.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// EventPublisher receives the outcome of every login attempt.
type EventPublisher interface {
	PublishLogin(ctx context.Context, ev events.LoginEvent) error
}

// Service runs both login pipelines over the same collaborators.
type Service struct {
	identity  domain.IdentityProvider
	directory domain.Directory
	revoker   Revoker
	events    EventPublisher
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRevoker sets the revoker used to undo a federated sign-in that could
// not be finished.
func WithRevoker(r Revoker) Option {
	return func(s *Service) { s.revoker = r }
}

// WithEvents sets where login events are published.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithTracer records a span per login attempt.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService creates a Service.
func NewService(idp domain.IdentityProvider, dir domain.Directory, opts ...Option) *Service {
	s := &Service{
		identity:  idp,
		directory: dir,
		tracer:    noop.NewTracerProvider().Tracer("login"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PasswordLogin signs in with email and password and persists the session in
// the scope chosen by creds.StayLoggedIn.
func (s *Service) PasswordLogin(ctx context.Context, creds domain.Credentials, c session.Committer) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "login.password")
	defer span.End()
	start := s.now()

	id, err := s.identity.SignInWithPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		return s.fail(ctx, MethodPassword, start, StageAuthenticating, err)
	}
	if id.UID == "" {
		return s.fail(ctx, MethodPassword, start, StageAuthenticating,
			fmt.Errorf("%w: identity without uid", domain.ErrMalformedResponse))
	}
	if id.Email == "" {
		id.Email = creds.Email
	}

	return s.finalize(ctx, MethodPassword, start, id, domain.ScopeFor(creds.StayLoggedIn), "", c)
}

// FederatedLogin signs in with a Google token. A user unknown to the
// directory gets OutcomeNeedsSignup and nothing is persisted.
func (s *Service) FederatedLogin(ctx context.Context, tok domain.FederatedToken, stayLoggedIn bool, c session.Committer) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "login.google")
	defer span.End()
	start := s.now()

	id, cred, err := s.identity.SignInWithIdp(ctx, tok.IDToken)
	if err != nil {
		s.revoke(ctx, tok.AccessToken)
		return s.fail(ctx, MethodGoogle, start, StageAuthenticating, err)
	}
	if !cred.Valid() || id.UID == "" {
		s.revoke(ctx, tok.AccessToken)
		return s.fail(ctx, MethodGoogle, start, StageAuthenticating, domain.ErrProviderConnection)
	}

	exists, err := s.directory.UserExists(ctx, id.UID)
	if err != nil {
		s.revoke(ctx, tok.AccessToken)
		return s.fail(ctx, MethodGoogle, start, StageProfileFetching,
			fmt.Errorf("%w: %w", domain.ErrProfileUnavailable, err))
	}
	if !exists {
		slog.InfoContext(ctx, "Federated user not in directory", "event", "login_signup_required", "uid", id.UID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("login.outcome", metrics.OutcomeSignupRequired))
		metrics.ObserveLogin(MethodGoogle, metrics.OutcomeSignupRequired, s.now().Sub(start))
		s.publish(ctx, events.LoginEvent{
			Topic:  events.TopicLoginSignupRequired,
			Method: MethodGoogle,
			UID:    id.UID,
			Email:  id.Email,
		})
		return Result{Outcome: OutcomeNeedsSignup, Identity: id}, nil
	}

	return s.finalize(ctx, MethodGoogle, start, id, domain.ScopeFor(stayLoggedIn), tok.AccessToken, c)
}

// finalize is the tail both pipelines share once the user is authenticated.
// On failure nothing is committed and revokeToken, if set, is revoked.
func (s *Service) finalize(ctx context.Context, method string, start time.Time, id domain.Identity, scope domain.Scope, revokeToken string, c session.Committer) (Result, error) {
	p, err := s.directory.GetProfile(ctx, id.UID)
	if err != nil {
		s.revoke(ctx, revokeToken)
		return s.fail(ctx, method, start, StageProfileFetching,
			fmt.Errorf("%w: %w", domain.ErrProfileUnavailable, err))
	}

	record := domain.SessionRecord{Email: id.Email, UID: id.UID}
	if err := c.Commit(record, p, scope); err != nil {
		if !errors.Is(err, domain.ErrSessionPersist) {
			err = fmt.Errorf("%w: %w", domain.ErrSessionPersist, err)
		}
		s.revoke(ctx, revokeToken)
		return s.fail(ctx, method, start, StageSessionPersisting, err)
	}

	res := Result{
		Outcome:  OutcomeAuthenticated,
		Identity: id,
		Profile:  p,
		Complete: profile.IsComplete(p),
		Scope:    scope,
	}

	outcome := metrics.OutcomeIncomplete
	if res.Complete {
		outcome = metrics.OutcomeComplete
	} else if field, ok := profile.FirstIncomplete(p); ok {
		slog.DebugContext(ctx, "Profile incomplete", "uid", id.UID, "field", field)
	}
	metrics.ObserveLogin(method, outcome, s.now().Sub(start))
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("login.outcome", outcome),
		attribute.String("login.scope", scope.String()),
	)

	slog.InfoContext(ctx, "Login succeeded", "event", "login_succeeded",
		"method", method, "uid", id.UID, "scope", scope.String(), "complete", res.Complete)
	s.publish(ctx, events.LoginEvent{
		Topic:    events.TopicLoginSucceeded,
		Method:   method,
		UID:      id.UID,
		Email:    id.Email,
		Complete: res.Complete,
	})
	return res, nil
}

func (s *Service) fail(ctx context.Context, method string, start time.Time, stage Stage, err error) (Result, error) {
	if isUserError(err) {
		slog.WarnContext(ctx, "Login rejected", "event", "login_failed", "method", method, "stage", stage.String(), "error", err)
	} else {
		slog.ErrorContext(ctx, "Login failed", "event", "login_failed", "method", method, "stage", stage.String(), "error", err)
	}
	metrics.ObserveLogin(method, metrics.OutcomeFailed, s.now().Sub(start))
	metrics.ObserveFailure(method, stage.String())

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("login.outcome", metrics.OutcomeFailed),
		attribute.String("login.stage", stage.String()),
		attribute.String("login.reason", Reason(err)),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, stage.String())
	s.publish(ctx, events.LoginEvent{
		Topic:  events.TopicLoginFailed,
		Method: method,
		Stage:  stage.String(),
		Reason: Reason(err),
	})
	return Result{}, &StageError{Stage: stage, Err: err}
}

// revoke is best effort; the login has already failed.
func (s *Service) revoke(ctx context.Context, token string) {
	if s.revoker == nil || token == "" {
		return
	}
	if err := s.revoker.Revoke(ctx, token); err != nil {
		metrics.TokenRevocationsTotal.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "Failed to revoke federated token", "event", "token_revoke_failed", "error", err)
		return
	}
	metrics.TokenRevocationsTotal.WithLabelValues("ok").Inc()
}

func (s *Service) publish(ctx context.Context, ev events.LoginEvent) {
	if s.events == nil {
		return
	}
	ev.At = s.now()
	if err := s.events.PublishLogin(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish login event", "topic", ev.Topic, "error", err)
	}
}

// isUserError reports whether err was caused by what the user submitted
// rather than by a collaborator.
func isUserError(err error) bool {
	return errors.Is(err, domain.ErrInvalidCredentials) ||
		errors.Is(err, domain.ErrUserDisabled) ||
		errors.Is(err, domain.ErrTooManyAttempts)
}

// Reason names the failure kind of err without leaking its details.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrUserDisabled):
		return "user_disabled"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, domain.ErrProviderConnection):
		return "provider_connection"
	case errors.Is(err, domain.ErrProfileUnavailable):
		return "profile_unavailable"
	case errors.Is(err, domain.ErrSessionPersist):
		return "session_persist"
	case errors.Is(err, domain.ErrIdentityUnavailable):
		return "identity_unavailable"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed_response"
	}
	return "unknown"
}

package login_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ffland/portal/internal/directory"
	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/events"
	"github.com/ffland/portal/internal/login"
)

type fakeIdentity struct {
	passwordID  domain.Identity
	passwordErr error
	idpID       domain.Identity
	idpCred     *domain.Credential
	idpErr      error
}

func (f *fakeIdentity) SignInWithPassword(ctx context.Context, email, password string) (domain.Identity, error) {
	return f.passwordID, f.passwordErr
}

func (f *fakeIdentity) SignInWithIdp(ctx context.Context, providerIDToken string) (domain.Identity, *domain.Credential, error) {
	return f.idpID, f.idpCred, f.idpErr
}

type fakeDirectory struct {
	profiles  map[string]domain.Profile
	existsErr error
	getErr    error
}

func (f *fakeDirectory) UserExists(ctx context.Context, uid string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.profiles[uid]
	return ok, nil
}

func (f *fakeDirectory) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[uid]
	if !ok {
		return nil, directory.NotFound("fake", "get profile", uid)
	}
	return p, nil
}

type commit struct {
	record  domain.SessionRecord
	profile domain.Profile
	scope   domain.Scope
}

// fakeCommitter keeps the last commit, like a browser keeping the last cookie.
type fakeCommitter struct {
	mu      sync.Mutex
	commits []commit
	err     error
}

func (f *fakeCommitter) Commit(record domain.SessionRecord, p domain.Profile, scope domain.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.commits = append(f.commits, commit{record, p, scope})
	return nil
}

func (f *fakeCommitter) last() (commit, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commits) == 0 {
		return commit{}, false
	}
	return f.commits[len(f.commits)-1], true
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (f *fakeRevoker) Revoke(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LoginEvent
}

func (r *recordingPublisher) PublishLogin(ctx context.Context, ev events.LoginEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Topic)
	}
	return out
}

var (
	completeProfile   = domain.Profile{"income": 52000, "name": "Ada", "totalSaved": 0}
	incompleteProfile = domain.Profile{"income": 52000, "name": ""}

	ada        = domain.Identity{UID: "uid-ada", Email: "ada@example.com", IDToken: "fb-id-token"}
	googleCred = &domain.Credential{ProviderID: "google.com", IDToken: "g-id-token"}
	googleTok  = domain.FederatedToken{IDToken: "g-id-token", AccessToken: "g-access-token"}
)

func requireStage(t *testing.T, err error, stage login.Stage) {
	t.Helper()
	var se *login.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stage, se.Stage)
}

func TestPasswordLogin(t *testing.T) {
	t.Run("complete profile goes home", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := login.NewService(
			&fakeIdentity{passwordID: ada},
			&fakeDirectory{profiles: map[string]domain.Profile{ada.UID: completeProfile}},
			login.WithEvents(pub),
		)
		c := &fakeCommitter{}

		res, err := svc.PasswordLogin(context.Background(), domain.Credentials{
			Email: "ada@example.com", Password: "pw", StayLoggedIn: true,
		}, c)
		require.NoError(t, err)

		assert.Equal(t, login.OutcomeAuthenticated, res.Outcome)
		assert.True(t, res.Complete)
		assert.Equal(t, login.StageComplete, res.Stage())
		assert.Equal(t, login.PathHome, res.Destination())

		got, ok := c.last()
		require.True(t, ok)
		assert.Equal(t, domain.SessionRecord{Email: "ada@example.com", UID: "uid-ada"}, got.record)
		assert.Equal(t, domain.ScopeDurable, got.scope)
		assert.Equal(t, completeProfile, got.profile)

		assert.Equal(t, []string{events.TopicLoginSucceeded}, pub.topics())
	})

	t.Run("incomplete profile goes to calculator", func(t *testing.T) {
		svc := login.NewService(
			&fakeIdentity{passwordID: ada},
			&fakeDirectory{profiles: map[string]domain.Profile{ada.UID: incompleteProfile}},
		)
		c := &fakeCommitter{}

		res, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "pw"}, c)
		require.NoError(t, err)
		assert.False(t, res.Complete)
		assert.Equal(t, login.StageIncomplete, res.Stage())
		assert.Equal(t, login.PathCalculator, res.Destination())

		got, _ := c.last()
		assert.Equal(t, domain.ScopeEphemeral, got.scope)
	})

	t.Run("email falls back to the submitted one", func(t *testing.T) {
		svc := login.NewService(
			&fakeIdentity{passwordID: domain.Identity{UID: ada.UID}},
			&fakeDirectory{profiles: map[string]domain.Profile{ada.UID: completeProfile}},
		)
		c := &fakeCommitter{}

		_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: "typed@example.com", Password: "pw"}, c)
		require.NoError(t, err)
		got, _ := c.last()
		assert.Equal(t, "typed@example.com", got.record.Email)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc := login.NewService(
			&fakeIdentity{passwordErr: domain.ErrInvalidCredentials},
			&fakeDirectory{},
			login.WithEvents(pub),
		)
		c := &fakeCommitter{}

		_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "bad"}, c)
		requireStage(t, err, login.StageAuthenticating)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		_, committed := c.last()
		assert.False(t, committed)
		assert.Equal(t, []string{events.TopicLoginFailed}, pub.topics())
	})

	t.Run("network failure is not bad credentials", func(t *testing.T) {
		svc := login.NewService(
			&fakeIdentity{passwordErr: domain.ErrIdentityUnavailable},
			&fakeDirectory{},
		)
		_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "pw"}, &fakeCommitter{})
		assert.ErrorIs(t, err, domain.ErrIdentityUnavailable)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("identity without uid is malformed", func(t *testing.T) {
		svc := login.NewService(&fakeIdentity{passwordID: domain.Identity{Email: ada.Email}}, &fakeDirectory{})
		_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "pw"}, &fakeCommitter{})
		requireStage(t, err, login.StageAuthenticating)
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	})

	t.Run("profile fetch failure commits nothing", func(t *testing.T) {
		svc := login.NewService(
			&fakeIdentity{passwordID: ada},
			&fakeDirectory{getErr: errors.New("directory down")},
		)
		c := &fakeCommitter{}

		_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "pw"}, c)
		requireStage(t, err, login.StageProfileFetching)
		assert.ErrorIs(t, err, domain.ErrProfileUnavailable)
		_, committed := c.last()
		assert.False(t, committed)
	})

	t.Run("commit failure", func(t *testing.T) {
		svc := login.NewService(
			&fakeIdentity{passwordID: ada},
			&fakeDirectory{profiles: map[string]domain.Profile{ada.UID: completeProfile}},
		)
		_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "pw"},
			&fakeCommitter{err: errors.New("cookie too large")})
		requireStage(t, err, login.StageSessionPersisting)
		assert.ErrorIs(t, err, domain.ErrSessionPersist)
	})
}

func TestFederatedLogin(t *testing.T) {
	t.Run("known user", func(t *testing.T) {
		rev := &fakeRevoker{}
		svc := login.NewService(
			&fakeIdentity{idpID: ada, idpCred: googleCred},
			&fakeDirectory{profiles: map[string]domain.Profile{ada.UID: incompleteProfile}},
			login.WithRevoker(rev),
		)
		c := &fakeCommitter{}

		res, err := svc.FederatedLogin(context.Background(), googleTok, true, c)
		require.NoError(t, err)
		assert.Equal(t, login.OutcomeAuthenticated, res.Outcome)
		assert.Equal(t, login.PathCalculator, res.Destination())

		got, ok := c.last()
		require.True(t, ok)
		assert.Equal(t, ada.UID, got.record.UID)
		assert.Equal(t, domain.ScopeDurable, got.scope)
		assert.Empty(t, rev.revoked)
	})

	t.Run("unknown user needs signup and persists nothing", func(t *testing.T) {
		pub := &recordingPublisher{}
		rev := &fakeRevoker{}
		svc := login.NewService(
			&fakeIdentity{idpID: ada, idpCred: googleCred},
			&fakeDirectory{profiles: map[string]domain.Profile{}},
			login.WithRevoker(rev),
			login.WithEvents(pub),
		)
		c := &fakeCommitter{}

		res, err := svc.FederatedLogin(context.Background(), googleTok, false, c)
		require.NoError(t, err)
		assert.Equal(t, login.OutcomeNeedsSignup, res.Outcome)
		assert.Equal(t, login.PathSignup, res.Destination())
		assert.Equal(t, ada.Email, res.Identity.Email)

		_, committed := c.last()
		assert.False(t, committed)
		assert.Empty(t, rev.revoked)
		assert.Equal(t, []string{events.TopicLoginSignupRequired}, pub.topics())
	})

	t.Run("missing credential is a provider connection failure", func(t *testing.T) {
		rev := &fakeRevoker{}
		svc := login.NewService(
			&fakeIdentity{idpID: ada, idpCred: nil},
			&fakeDirectory{profiles: map[string]domain.Profile{ada.UID: completeProfile}},
			login.WithRevoker(rev),
		)
		c := &fakeCommitter{}

		_, err := svc.FederatedLogin(context.Background(), googleTok, false, c)
		requireStage(t, err, login.StageAuthenticating)
		assert.ErrorIs(t, err, domain.ErrProviderConnection)
		_, committed := c.last()
		assert.False(t, committed)
		assert.Equal(t, []string{"g-access-token"}, rev.revoked)
	})

	t.Run("existence check failure revokes", func(t *testing.T) {
		rev := &fakeRevoker{}
		svc := login.NewService(
			&fakeIdentity{idpID: ada, idpCred: googleCred},
			&fakeDirectory{existsErr: errors.New("timeout")},
			login.WithRevoker(rev),
		)

		_, err := svc.FederatedLogin(context.Background(), googleTok, false, &fakeCommitter{})
		requireStage(t, err, login.StageProfileFetching)
		assert.ErrorIs(t, err, domain.ErrProfileUnavailable)
		assert.Equal(t, []string{"g-access-token"}, rev.revoked)
	})

	t.Run("profile fetch failure after sign-in revokes", func(t *testing.T) {
		rev := &fakeRevoker{}
		dir := &fakeDirectory{
			profiles: map[string]domain.Profile{ada.UID: completeProfile},
			getErr:   errors.New("directory down"),
		}
		svc := login.NewService(&fakeIdentity{idpID: ada, idpCred: googleCred}, dir, login.WithRevoker(rev))
		c := &fakeCommitter{}

		_, err := svc.FederatedLogin(context.Background(), googleTok, false, c)
		requireStage(t, err, login.StageProfileFetching)
		_, committed := c.last()
		assert.False(t, committed)
		assert.Equal(t, []string{"g-access-token"}, rev.revoked)
	})
}

func TestConcurrentLogins_LastWriterWins(t *testing.T) {
	grace := domain.Identity{UID: "uid-grace", Email: "grace@example.com"}
	dir := &fakeDirectory{profiles: map[string]domain.Profile{
		ada.UID:   completeProfile,
		grace.UID: incompleteProfile,
	}}
	svc := login.NewService(&fakeIdentity{passwordID: ada, idpID: grace, idpCred: googleCred}, dir)
	c := &fakeCommitter{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "pw"}, c)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.FederatedLogin(context.Background(), googleTok, false, c)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, ok := c.last()
	require.True(t, ok)
	assert.Contains(t, []string{ada.UID, grace.UID}, got.record.UID)
	assert.Len(t, c.commits, 40)
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key(key) {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestLoginSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	dir := &fakeDirectory{profiles: map[string]domain.Profile{ada.UID: incompleteProfile}}
	svc := login.NewService(
		&fakeIdentity{passwordID: ada, idpID: ada},
		dir,
		login.WithTracer(tp.Tracer("login-test")),
	)

	_, err := svc.PasswordLogin(context.Background(), domain.Credentials{Email: ada.Email, Password: "pw"}, &fakeCommitter{})
	require.NoError(t, err)
	_, err = svc.FederatedLogin(context.Background(), googleTok, false, &fakeCommitter{})
	requireStage(t, err, login.StageAuthenticating)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	password, google := spans[0], spans[1]
	assert.Equal(t, "login.password", password.Name())
	assert.Equal(t, "incomplete", spanAttr(password, "login.outcome"))
	assert.Equal(t, "ephemeral", spanAttr(password, "login.scope"))

	assert.Equal(t, "login.google", google.Name())
	assert.Equal(t, codes.Error, google.Status().Code)
	assert.Equal(t, "authenticating", spanAttr(google, "login.stage"))
	assert.Equal(t, "provider_connection", spanAttr(google, "login.reason"))
}

func TestResultDestination(t *testing.T) {
	assert.Equal(t, login.PathSignup, login.Result{Outcome: login.OutcomeNeedsSignup, Complete: true}.Destination())
	assert.Equal(t, login.PathHome, login.Result{Complete: true}.Destination())
	assert.Equal(t, login.PathCalculator, login.Result{}.Destination())
}

func TestReason(t *testing.T) {
	assert.Equal(t, "invalid_credentials", login.Reason(&login.StageError{Stage: login.StageAuthenticating, Err: domain.ErrInvalidCredentials}))
	wrapped := errors.Join(domain.ErrProfileUnavailable, domain.ErrMalformedResponse)
	assert.Equal(t, "profile_unavailable", login.Reason(wrapped))
	assert.Equal(t, "unknown", login.Reason(errors.New("x")))
	assert.Equal(t, "", login.Reason(nil))
}

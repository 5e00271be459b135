// Package session owns the two session scopes the portal writes: a durable
// cookie that survives browser restarts and an ephemeral one that does not.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/ffland/portal/internal/domain"
)

const (
	// DurableSessionName is the cookie holding a "stay logged in" record.
	DurableSessionName = "ffland_durable"
	// EphemeralSessionName is the browser-session cookie.
	EphemeralSessionName = "ffland_session"

	keyGlobalUser        = "globalUser"
	keyCalculatorStorage = "calculatorStorage"

	// DefaultDurableMaxAge is 30 days.
	DefaultDurableMaxAge = 30 * 24 * 60 * 60
)

// Committer persists the outcome of a successful login.
type Committer interface {
	Commit(record domain.SessionRecord, profile domain.Profile, scope domain.Scope) error
}

// Options configures the cookies written by a Manager.
type Options struct {
	DurableMaxAge int
	Secure        bool
}

// Manager is the single owner of session writes.
type Manager struct {
	store sessions.Store
	opts  Options
}

// NewManager creates a Manager on store. A zero DurableMaxAge means
// DefaultDurableMaxAge.
func NewManager(store sessions.Store, opts Options) *Manager {
	if opts.DurableMaxAge <= 0 {
		opts.DurableMaxAge = DefaultDurableMaxAge
	}
	return &Manager{store: store, opts: opts}
}

// For binds the manager to one request/response pair.
func (m *Manager) For(w http.ResponseWriter, r *http.Request) *RequestSession {
	return &RequestSession{m: m, w: w, r: r}
}

// RequestSession reads and writes the session scopes of one request.
type RequestSession struct {
	m *Manager
	w http.ResponseWriter
	r *http.Request
}

var _ Committer = (*RequestSession)(nil)

// Commit writes record into scope, clears it from the other scope and caches
// profile in the ephemeral scope. Either every cookie is written or none is.
func (s *RequestSession) Commit(record domain.SessionRecord, profile domain.Profile, scope domain.Scope) error {
	userJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode session record: %w", domain.ErrSessionPersist, err)
	}
	if profile == nil {
		profile = domain.Profile{}
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("%w: encode profile: %w", domain.ErrSessionPersist, err)
	}

	durable := s.get(DurableSessionName)
	ephemeral := s.get(EphemeralSessionName)

	if scope == domain.ScopeDurable {
		durable.Values[keyGlobalUser] = string(userJSON)
		delete(ephemeral.Values, keyGlobalUser)
	} else {
		ephemeral.Values[keyGlobalUser] = string(userJSON)
		delete(durable.Values, keyGlobalUser)
	}
	ephemeral.Values[keyCalculatorStorage] = string(profileJSON)

	s.applyOptions(durable, ephemeral)
	return s.save(durable, ephemeral)
}

// Current returns the signed-in user, whichever scope holds it.
func (s *RequestSession) Current() (domain.SessionRecord, bool) {
	for _, name := range []string{DurableSessionName, EphemeralSessionName} {
		raw, ok := s.get(name).Values[keyGlobalUser].(string)
		if !ok || raw == "" {
			continue
		}
		var rec domain.SessionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.UID == "" {
			continue
		}
		return rec, true
	}
	return domain.SessionRecord{}, false
}

// Profile returns the cached calculator storage, if any.
func (s *RequestSession) Profile() (domain.Profile, bool) {
	raw, ok := s.get(EphemeralSessionName).Values[keyCalculatorStorage].(string)
	if !ok {
		return nil, false
	}
	p, err := domain.DecodeProfile([]byte(raw))
	if err != nil {
		return nil, false
	}
	return p, true
}

// Clear removes the session record and profile cache from both scopes.
func (s *RequestSession) Clear() error {
	durable := s.get(DurableSessionName)
	ephemeral := s.get(EphemeralSessionName)
	for _, sess := range []*sessions.Session{durable, ephemeral} {
		delete(sess.Values, keyGlobalUser)
		delete(sess.Values, keyCalculatorStorage)
	}
	s.applyOptions(durable, ephemeral)
	return s.save(durable, ephemeral)
}

// get returns the named session. A cookie that no longer decodes (rotated
// secret, tampering) yields a fresh session.
func (s *RequestSession) get(name string) *sessions.Session {
	sess, err := s.m.store.Get(s.r, name)
	if err != nil || sess == nil {
		sess = sessions.NewSession(s.m.store, name)
	}
	return sess
}

func (s *RequestSession) applyOptions(durable, ephemeral *sessions.Session) {
	base := sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   s.m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	d := base
	d.MaxAge = s.m.opts.DurableMaxAge
	if len(durable.Values) == 0 {
		d.MaxAge = -1
	}
	durable.Options = &d

	// Stores treat MaxAge <= 0 as "delete", so the ephemeral scope is saved
	// with the durable lifetime and its cookie is stripped of expiry in save.
	e := base
	e.MaxAge = s.m.opts.DurableMaxAge
	if len(ephemeral.Values) == 0 {
		e.MaxAge = -1
	}
	ephemeral.Options = &e
}

// save encodes both scopes into scratch header sets and copies the resulting
// Set-Cookie headers onto the response only when every save succeeded. The
// ephemeral cookie goes out without Max-Age or Expires so the browser drops
// it at the end of the session.
func (s *RequestSession) save(durable, ephemeral *sessions.Session) error {
	durableHeaders := &headerRecorder{header: make(http.Header)}
	ephemeralHeaders := &headerRecorder{header: make(http.Header)}
	if err := s.m.store.Save(s.r, durableHeaders, durable); err != nil {
		return fmt.Errorf("%w: save %s: %w", domain.ErrSessionPersist, durable.Name(), err)
	}
	if err := s.m.store.Save(s.r, ephemeralHeaders, ephemeral); err != nil {
		return fmt.Errorf("%w: save %s: %w", domain.ErrSessionPersist, ephemeral.Name(), err)
	}

	for _, v := range durableHeaders.header.Values("Set-Cookie") {
		s.w.Header().Add("Set-Cookie", v)
	}
	for _, v := range ephemeralHeaders.header.Values("Set-Cookie") {
		if ephemeral.Options.MaxAge > 0 {
			v = browserSessionCookie(v)
		}
		s.w.Header().Add("Set-Cookie", v)
	}
	return nil
}

// browserSessionCookie drops Max-Age and Expires from a Set-Cookie value.
func browserSessionCookie(setCookie string) string {
	c, err := http.ParseSetCookie(setCookie)
	if err != nil {
		return setCookie
	}
	c.MaxAge = 0
	c.Expires = time.Time{}
	c.RawExpires = ""
	return c.String()
}

// headerRecorder is an http.ResponseWriter that only keeps headers.
type headerRecorder struct {
	header http.Header
}

func (h *headerRecorder) Header() http.Header { return h.header }

func (h *headerRecorder) Write(b []byte) (int, error) { return len(b), nil }

func (h *headerRecorder) WriteHeader(int) {}

package session

import (
	"github.com/gorilla/sessions"
)

// NewStore returns the gorilla store backing every session the portal uses.
// With dir set, session values live in files under dir and only the session
// id travels in the cookie, which keeps large profile documents out of the
// 4KB cookie limit. maxAge bounds how old a cookie may be and still decode;
// it must cover the durable scope's lifetime.
func NewStore(secret []byte, dir string, maxAge int) sessions.Store {
	if maxAge <= 0 {
		maxAge = DefaultDurableMaxAge
	}
	if dir == "" {
		cs := sessions.NewCookieStore(secret)
		cs.MaxAge(maxAge)
		return cs
	}
	fs := sessions.NewFilesystemStore(dir, secret)
	fs.MaxAge(maxAge)
	// Values are bounded by the profile document, not by cookie size.
	fs.MaxLength(0)
	return fs
}

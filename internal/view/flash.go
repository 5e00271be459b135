package view

import (
	"log/slog"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	flashSessionName = "flash-session"
	flashKeySuccess  = "success"
	flashKeyError    = "error"
	flashKeyEmail    = "form_email"
)

// FlashData is the set of flash messages pending for a request.
type FlashData struct {
	Success []string
	Error   []string
}

// setFlash adds a flash message to the session.
func setFlash(c echo.Context, key, message string) {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Flash session unreadable, starting a new one", "error", err)
	}
	sess.AddFlash(message, key)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to save flash message", "error", err)
	}
}

// SetFlashSuccess sets a success flash message.
func SetFlashSuccess(c echo.Context, message string) {
	setFlash(c, flashKeySuccess, message)
}

// SetFlashError sets an error flash message.
func SetFlashError(c echo.Context, message string) {
	setFlash(c, flashKeyError, message)
}

// SetFormEmail remembers the submitted email for the next render of the
// login form.
func SetFormEmail(c echo.Context, email string) {
	if email == "" {
		return
	}
	setFlash(c, flashKeyEmail, email)
}

// GetFlashData retrieves and clears the success and error flash messages.
func GetFlashData(c echo.Context) FlashData {
	var data FlashData
	sess, _ := session.Get(flashSessionName, c)

	success := sess.Flashes(flashKeySuccess)
	errs := sess.Flashes(flashKeyError)
	if len(success) == 0 && len(errs) == 0 {
		return data
	}

	data.Success = toStrings(success)
	data.Error = toStrings(errs)
	_ = sess.Save(c.Request(), c.Response())
	return data
}

// PopFormEmail returns and clears the email stored by SetFormEmail.
func PopFormEmail(c echo.Context) string {
	sess, _ := session.Get(flashSessionName, c)
	emails := toStrings(sess.Flashes(flashKeyEmail))
	if len(emails) == 0 {
		return ""
	}
	_ = sess.Save(c.Request(), c.Response())
	return emails[len(emails)-1]
}

func toStrings(values []interface{}) []string {
	var out []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

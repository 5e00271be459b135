package handlers

import (
	"github.com/ffland/portal/internal/domain"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionResponse is what GET /api/session returns to the rest of the app.
type SessionResponse struct {
	User              domain.SessionRecord `json:"globalUser"`
	CalculatorStorage domain.Profile       `json:"calculatorStorage"`
	Complete          bool                 `json:"complete"`
	// FirstIncomplete names the first empty profile field, if any.
	FirstIncomplete string `json:"firstIncomplete,omitempty"`
}

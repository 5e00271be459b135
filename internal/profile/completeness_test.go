package profile_test

import (
	"encoding/json"
	"testing"

	"github.com/ffland/portal/internal/domain"
	"github.com/ffland/portal/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name      string
		profile   domain.Profile
		complete  bool
		wantField string
	}{
		{
			name:     "all fields filled",
			profile:  domain.Profile{"a": "x", "totalSaved": 5, "totalGained": 2, "totalTotal": 7},
			complete: true,
		},
		{
			name:     "aggregate totals may be zero",
			profile:  domain.Profile{"totalSaved": 0, "totalGained": 0, "totalTotal": 0, "other": "x"},
			complete: true,
		},
		{
			name:     "empty profile is complete",
			profile:  domain.Profile{},
			complete: true,
		},
		{
			name:      "blank string",
			profile:   domain.Profile{"income": "", "rent": 1200},
			wantField: "income",
		},
		{
			name:      "numeric zero",
			profile:   domain.Profile{"income": "50000", "rent": 0},
			wantField: "rent",
		},
		{
			name:      "float zero",
			profile:   domain.Profile{"rate": 0.0},
			wantField: "rate",
		},
		{
			name:      "structurally empty object",
			profile:   domain.Profile{"expenses": map[string]any{}, "income": "1"},
			wantField: "expenses",
		},
		{
			name:      "empty list",
			profile:   domain.Profile{"goals": []any{}},
			wantField: "goals",
		},
		{
			name:     "non-empty object",
			profile:  domain.Profile{"expenses": map[string]any{"food": 300}},
			complete: true,
		},
		{
			name:     "null and false are values",
			profile:  domain.Profile{"note": nil, "opted": false},
			complete: true,
		},
		{
			name:      "first incomplete field is reported in key order",
			profile:   domain.Profile{"zeta": "", "alpha": 0, "mid": "ok"},
			wantField: "alpha",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.complete, profile.IsComplete(tt.profile))

			field, found := profile.FirstIncomplete(tt.profile)
			assert.Equal(t, !tt.complete, found)
			assert.Equal(t, tt.wantField, field)
		})
	}
}

func TestIsComplete_DecodedJSON(t *testing.T) {
	p, err := domain.DecodeProfile([]byte(`{
		"income": 52000,
		"expenses": {},
		"totalSaved": 0,
		"totalGained": 0,
		"totalTotal": 0
	}`))
	require.NoError(t, err)

	assert.IsType(t, json.Number(""), p["income"])
	assert.False(t, profile.IsComplete(p))

	p["expenses"] = map[string]any{"rent": json.Number("900")}
	assert.True(t, profile.IsComplete(p))

	p["income"] = json.Number("0")
	field, found := profile.FirstIncomplete(p)
	assert.True(t, found)
	assert.Equal(t, "income", field)
}

func TestIsEmpty(t *testing.T) {
	var nilMap map[string]any
	zero := 0
	one := 1

	assert.True(t, profile.IsEmpty(""))
	assert.True(t, profile.IsEmpty(int64(0)))
	assert.True(t, profile.IsEmpty(uint8(0)))
	assert.True(t, profile.IsEmpty(float32(0)))
	assert.True(t, profile.IsEmpty(nilMap))
	assert.True(t, profile.IsEmpty(struct{}{}))
	assert.True(t, profile.IsEmpty(&zero))

	assert.False(t, profile.IsEmpty(" "))
	assert.False(t, profile.IsEmpty(-1))
	assert.False(t, profile.IsEmpty(json.Number("0.5")))
	assert.False(t, profile.IsEmpty(&one))
	assert.False(t, profile.IsEmpty(nil))
	assert.False(t, profile.IsEmpty(true))
}

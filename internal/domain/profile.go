package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Profile is the per-user calculator storage document. Field types vary:
// strings, numbers, nested objects.
type Profile map[string]any

// Aggregate-total fields. They are derived values and may legitimately be zero.
const (
	FieldTotalSaved  = "totalSaved"
	FieldTotalGained = "totalGained"
	FieldTotalTotal  = "totalTotal"
)

// IsAggregateField reports whether key names one of the aggregate totals.
func IsAggregateField(key string) bool {
	switch key {
	case FieldTotalSaved, FieldTotalGained, FieldTotalTotal:
		return true
	}
	return false
}

// DecodeProfile parses a JSON object into a Profile, keeping numbers as
// json.Number so integer values are not rounded through float64.
// A JSON null decodes to an empty Profile.
func DecodeProfile(data []byte) (Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p == nil {
		p = Profile{}
	}
	return p, nil
}

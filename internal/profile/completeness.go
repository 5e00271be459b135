// Package profile decides whether a calculator profile is finished.
package profile

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/ffland/portal/internal/domain"
)

// IsComplete reports whether every non-aggregate field of p holds a value.
func IsComplete(p domain.Profile) bool {
	_, found := FirstIncomplete(p)
	return !found
}

// FirstIncomplete returns the first non-aggregate field, in key order, whose
// value is empty. found is false when the profile is complete.
func FirstIncomplete(p domain.Profile) (field string, found bool) {
	keys := make([]string, 0, len(p))
	for k := range p {
		if domain.IsAggregateField(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if IsEmpty(p[k]) {
			return k, true
		}
	}
	return "", false
}

// IsEmpty reports whether v counts as unfilled: a blank string, a numeric
// zero, or an object or list with no entries. nil and booleans are never empty.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val == ""
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case bool:
		return false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Struct:
		return rv.NumField() == 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return IsEmpty(rv.Elem().Interface())
	}
	return false
}

// ABOUTME: Millisecond timestamp helpers for persisted documents
// ABOUTME: Accepts numbers, numeric strings and RFC3339 strings written by older clients
package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Millis converts t to Unix milliseconds
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}

// MillisFrom reads a stored timestamp. Returns nil when v holds no usable time.
func MillisFrom(v any) *int64 {
	switch t := v.(type) {
	case nil:
		return nil
	case int64:
		return &t
	case int:
		return Int64Ptr(int64(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return Int64Ptr(int64(t))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return &i
		}
		if f, err := t.Float64(); err == nil {
			return MillisFrom(f)
		}
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return Int64Ptr(Millis(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &i
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return Int64Ptr(Millis(parsed))
		}
	}
	return nil
}

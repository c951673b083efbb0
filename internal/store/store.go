package store

import (
	"context"
	"encoding/json"
)

// Well-known keys. The layout mirrors what the admin UI persisted: one
// entry per collection, plus one entry per attendance date.
const (
	KeyStudents          = "students"
	KeyAttendanceHistory = "attendanceHistory"
	KeyStudentFees       = "studentFees"
	KeyNotifications     = "adminNotifications"
	KeyEnrollments       = "enrollments"
)

// AttendanceKey returns the entry key for one calendar date (ISO form,
// e.g. "attendance_2026-01-10").
func AttendanceKey(date string) string {
	return "attendance_" + date
}

// KeyedStore is a durable string-to-JSON mapping. Get returns nil (not an
// error) for an absent key; callers decide what default to substitute.
// There is no transactionality across keys: two Set calls are two
// independent writes.
type KeyedStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// GetJSON loads and unmarshals one entry into dest. It reports false and
// leaves dest untouched when the key is absent.
func GetJSON(ctx context.Context, s KeyedStore, key string, dest any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, s KeyedStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw)
}

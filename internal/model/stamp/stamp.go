// Package stamp provides the timestamp type shared by persisted records.
package stamp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// legacyLayouts are naive local-time ISO formats written by earlier versions of the data files.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time is a time.Time that always encodes as RFC 3339 and also decodes legacy naive timestamps.
type Time struct {
	time.Time
}

// Now returns the current time truncated to microseconds.
func Now() Time {
	return Time{Time: time.Now().Truncate(time.Microsecond)}
}

// Of wraps t.
func Of(t time.Time) Time {
	return Time{Time: t}
}

// MarshalJSON encodes the time in RFC 3339 with sub-second precision.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339 and the legacy naive layouts.
func (t *Time) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}

	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Parse reads an RFC 3339 or legacy naive timestamp. Naive values are interpreted in local time.
func Parse(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}

	for _, layout := range legacyLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// IsCanonical reports whether raw is already in the RFC 3339 form MarshalJSON writes.
func IsCanonical(raw string) bool {
	_, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	return err == nil
}

// Package timex holds small time helpers shared by the agent: a JSON-friendly
// Duration, an injectable clock, and unix-millisecond conversions used for
// record timestamps (the wire and storage format for updatedAt).
package timex

import (
	"encoding/json"
	"fmt"
	"time"
)

// Clock returns the current time. Engines take a Clock so tests can pin "now".
type Clock func() time.Time

// SystemClock is the default Clock backed by time.Now.
func SystemClock() time.Time {
	return time.Now()
}

// UnixMillis converts t to milliseconds since the Unix epoch.
func UnixMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts milliseconds since the Unix epoch to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Duration wraps time.Duration so JSON config can specify intervals either as
// strings like "3s" or as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Timestamp is a scheduling offset within a sequence, normalized to seconds.
// On the wire it may be a plain number of seconds, a "mm:ss" / "hh:mm:ss"
// string, or an object with minutes/seconds fields; all forms normalize to
// a second offset at decode time.
type Timestamp float64

// Seconds returns the offset as a float64 second count.
func (t Timestamp) Seconds() float64 {
	return float64(t)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	secs, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = Timestamp(secs)
	return nil
}

// MarshalJSON implements json.Marshaler. Timestamps always serialize as
// plain seconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(t))
}

// ParseTimestamp normalizes a timestamp-like value to a second offset.
// Accepted forms: float64/int seconds, numeric strings, "mm:ss" and
// "hh:mm:ss" strings, and maps with "minutes"/"seconds" keys.
func ParseTimestamp(v any) (float64, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		return parseTimestampString(val)
	case map[string]any:
		var secs float64
		if m, ok := val["minutes"].(float64); ok {
			secs += m * 60
		}
		if s, ok := val["seconds"].(float64); ok {
			secs += s
		}
		return secs, nil
	default:
		return 0, fmt.Errorf("unsupported timestamp value %T", v)
	}
}

func parseTimestampString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	// Plain number first ("90", "12.5").
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}

	// Colon notation: mm:ss or hh:mm:ss.
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unparseable timestamp %q", s)
	}
	var secs float64
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable timestamp %q", s)
		}
		secs = secs*60 + f
	}
	return secs, nil
}

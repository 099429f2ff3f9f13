package stream

import "time"

// ParseTimestamp parses an ISO 8601 timestamp string. It tries RFC3339Nano,
// RFC3339, and a plain datetime format without timezone. Returns the zero
// time if the string is empty or cannot be parsed by any supported format.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			// Fallback for datetime strings without a timezone suffix.
			t, err = time.Parse("2006-01-02T15:04:05", s)
			if err != nil {
				return time.Time{}
			}
		}
	}
	return t
}

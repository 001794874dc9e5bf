package wire

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var datePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

// ParseDate parses the service's "/Date(<unix ms>)/" encoding. An empty
// string or a non-positive timestamp yields the zero time: the service
// emits those for unset or out-of-range dates.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("value must be formatted like '/Date(...)/', found %q", s)
	}

	msec, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if msec <= 0 {
		return time.Time{}, nil
	}

	return time.UnixMilli(msec).UTC(), nil
}

// FormatDate encodes t as "/Date(<unix ms>)/".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("/Date(%d)/", t.UnixMilli())
}

package timeparse

import (
	"fmt"
	"strings"
	"time"

	"energytrack/internal/apperr"
	"energytrack/internal/domain"
)

const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

var layouts = []string{
	DateTimeLayout,
	DateLayout,
	time.RFC3339,
}

// Parse accepts "yyyy-MM-dd HH:mm:ss", "yyyy-MM-dd" or RFC3339. Values without
// a zone are read in the server's local zone.
func Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", value, lastErr)
}

// Format renders t in the wire layout.
func Format(t time.Time) string {
	return t.In(time.Local).Format(DateTimeLayout)
}

// ParseRange parses an inclusive bound from two query strings. A missing side
// is CodeMissingTimeRange, unparsable input CodeInvalidReadingTime, and an
// inverted bound CodeInvalidTimeRange.
func ParseRange(start, end string) (domain.TimeRange, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return domain.TimeRange{}, apperr.New(apperr.CodeMissingTimeRange)
	}
	s, err := Parse(start)
	if err != nil {
		return domain.TimeRange{}, apperr.Wrap(apperr.CodeInvalidReadingTime, err)
	}
	e, err := Parse(end)
	if err != nil {
		return domain.TimeRange{}, apperr.Wrap(apperr.CodeInvalidReadingTime, err)
	}
	if s.After(e) {
		return domain.TimeRange{}, apperr.New(apperr.CodeInvalidTimeRange)
	}
	return domain.TimeRange{Start: s, End: e}, nil
}

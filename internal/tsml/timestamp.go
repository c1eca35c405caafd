package tsml

import (
	"fmt"
	"strings"
	"time"
)

// UpdatedLayout is the naive timestamp format the plugin expects.
const UpdatedLayout = "2006-01-02 15:04:05"

// DefaultZone is the civil zone the plugin assumes for "updated".
const DefaultZone = "America/Los_Angeles"

// InvalidTimestampError is returned for a date/time cell that does not parse.
type InvalidTimestampError struct {
	Field string
	Value string
}

func (e *InvalidTimestampError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid timestamp %q", e.Value)
	}
	return fmt.Sprintf("field %q: invalid timestamp %q", e.Field, e.Value)
}

// Layouts carrying their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// Layouts without an offset, read in the caller's location.
var localLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseTime parses an ISO-8601 date or date-time. Values without an offset
// (including bare dates) are interpreted in loc.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, &InvalidTimestampError{Value: value}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &InvalidTimestampError{Value: value}
}

// CanonicalTimestamp converts value into loc and formats it without zone
// information. Zone-less input is taken to already be local to loc.
func CanonicalTimestamp(value string, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := ParseTime(value, loc)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(UpdatedLayout), nil
}

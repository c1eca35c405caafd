package model

import (
	"fmt"
	"strconv"
)

// Row is one record as fetched from the meetings table. Fields are keyed by
// the column name shown in the store; a missing key or a nil value means the
// cell is empty.
type Row struct {
	ID     string
	Fields map[string]any
}

// FieldTypeError is returned when a cell holds a value of the wrong shape,
// e.g. a list where a single string is expected.
type FieldTypeError struct {
	Field string
	Want  string
	Got   any
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q: expected %s, got %T", e.Field, e.Want, e.Got)
}

// String reads a scalar cell. Numbers and booleans are rendered as text so
// that numeric IDs typed into the store still read as strings.
func (r Row) String(name string) (string, bool, error) {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	case int:
		return strconv.Itoa(t), true, nil
	case int64:
		return strconv.FormatInt(t, 10), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case fmt.Stringer:
		return t.String(), true, nil
	default:
		return "", false, &FieldTypeError{Field: name, Want: "string", Got: v}
	}
}

// Strings reads a multi-value cell. A single string is treated as a list of
// one.
func (r Row) Strings(name string) ([]string, bool, error) {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), true, nil
	case string:
		return []string{t}, true, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false, &FieldTypeError{Field: name, Want: "list of strings", Got: item}
			}
			out = append(out, s)
		}
		return out, true, nil
	default:
		return nil, false, &FieldTypeError{Field: name, Want: "list of strings", Got: v}
	}
}

// Tsml is one meeting in the export format read by the meeting-guide plugin.
//
// Fields without omitempty are always written, even when empty; the plugin
// has always received them that way.
type Tsml struct {
	Name               string   `json:"name"`
	Slug               string   `json:"slug"`
	Day                int      `json:"day"`  // 0 = Sunday
	Time               string   `json:"time"` // HH:MM, 24-hour
	EndTime            string   `json:"end_time"`
	Timezone           string   `json:"timezone"`
	Types              []string `json:"types"`
	Notes              string   `json:"notes"`
	ConferenceURL      string   `json:"conference_url"`
	ConferenceURLNotes string   `json:"conference_url_notes"`
	Location           string   `json:"location"`
	LocationNotes      string   `json:"location_notes"`
	Address            string   `json:"address"`
	City               string   `json:"city"`
	State              string   `json:"state"`
	PostalCode         string   `json:"postal_code,omitempty"`
	Country            string   `json:"country"`
	Group              string   `json:"group,omitempty"`
	GroupNotes         string   `json:"group_notes,omitempty"`
	Email              string   `json:"email"`
	Updated            string   `json:"updated"` // YYYY-MM-DD HH:MM:SS, Pacific
}

// Package vocab holds the closed vocabularies used by the TSML export.
//
// Each table is total over a hand-maintained set of labels. A label that is
// not in a table is an error: it means a new value was added upstream and has
// to be classified here before it can be exported.
package vocab

import (
	"fmt"
	"maps"
)

// Table maps a human-readable label to its canonical value.
type Table[T any] struct {
	name    string
	entries map[string]T
}

// Name identifies the table in errors.
func (t Table[T]) Name() string { return t.name }

// Len returns the number of labels in the table.
func (t Table[T]) Len() int { return len(t.entries) }

// Entries returns a copy of the table contents.
func (t Table[T]) Entries() map[string]T { return maps.Clone(t.entries) }

// UnknownValueError reports a label that has no mapping.
type UnknownValueError struct {
	Table string
	Key   string
}

func (e *UnknownValueError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Table, e.Key)
}

// Lookup returns the value for key. Matching is exact and case-sensitive.
func Lookup[T any](t Table[T], key string) (T, error) {
	v, ok := t.entries[key]
	if !ok {
		var zero T
		return zero, &UnknownValueError{Table: t.name, Key: key}
	}
	return v, nil
}

var Weekdays = Table[int]{
	name: "weekday",
	entries: map[string]int{
		"Sunday":    0,
		"Monday":    1,
		"Tuesday":   2,
		"Wednesday": 3,
		"Thursday":  4,
		"Friday":    5,
		"Saturday":  6,
	},
}

var Characteristics = Table[string]{
	name: "characteristic",
	entries: map[string]string{
		"Adult Children":                         "AC",
		"Al-Anon":                                "ALA",
		"Alateen":                                "Y",
		"Atheist / Agnostic":                     "A",
		"Asian":                                  "AS",
		"Child Care Available":                   "BA",
		"Beginners":                              "BE",
		"BIPOC":                                  "BIPOC",
		"Concurrent with AA Meeting":             "AA",
		"Concurrent with Alateen Meeting":        "AL",
		"English":                                "EN",
		"Families Friends and Observers Welcome": "O",
		"Families and Friends Only":              "C",
		"Fragrance Free":                         "FF",
		"Gay":                                    "G",
		"Lesbian":                                "L",
		"LGBTQIA+":                               "LGBTQIA",
		"Location Temporarily Closed":            "TC",
		"Men":                                    "M",
		MonthlyLabel:                             MonthlyCode,
		"Online Meeting":                         "ONL",
		"Parents":                                "POA",
		"People of Color":                        "POC",
		"Smoking Permitted":                      "SM",
		"Spanish":                                "S",
		"Speaker":                                "SP",
		"Step Meeting":                           "ST",
		"Transgender":                            "T",
		"Wheelchair Accessible":                  "X",
		"Women":                                  "W",
		"Women of Color":                         "WOC",
		"Young Adults":                           "YA",
	},
}

// MonthlyLabel is both a Schedule value and a characteristic label.
const (
	MonthlyLabel = "Monthly"
	MonthlyCode  = "MNTH"
)

var Timezones = Table[string]{
	name: "time zone",
	entries: map[string]string{
		"Pacific Time":     "America/Los_Angeles",
		"Arizona Time":     "America/Phoenix",
		"Mountain Time":    "America/Denver",
		"Central Time":     "America/Chicago",
		"Eastern Time":     "America/New_York",
		"Atlantic Time":    "America/Halifax",
		"Puerto Rico Time": "America/Puerto_Rico",
	},
}

// Weekday returns 0 (Sunday) through 6 (Saturday).
func Weekday(label string) (int, error) { return Lookup(Weekdays, label) }

// Characteristic returns the TSML type code for a characteristic label.
func Characteristic(label string) (string, error) { return Lookup(Characteristics, label) }

// Timezone returns the IANA zone name for a region label such as "Pacific Time".
func Timezone(label string) (string, error) { return Lookup(Timezones, label) }

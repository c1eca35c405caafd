// Package tsml converts meeting rows into TSML export records.
package tsml

import (
	"errors"
	"fmt"
	"time"

	"github.com/clickonetwo/airtable-tsml-feed/internal/model"
	"github.com/clickonetwo/airtable-tsml-feed/internal/vocab"
)

// Source column names.
const (
	FieldName                 = "Name"
	FieldSlug                 = "TSML Slug"
	FieldSchedule             = "Schedule"
	FieldDay                  = "Day of Week"
	FieldStartTime            = "Start Time"
	FieldEndTime              = "End Time"
	FieldTimeZone             = "Time Zone"
	FieldLanguage             = "Language"
	FieldCharacteristics      = "Characteristics"
	FieldWSOID                = "WSO ID"
	FieldFormat               = "Format"
	FieldAttendeeURL          = "Attendee URL"
	FieldMeetingID            = "Meeting ID"
	FieldMeetingPW            = "Meeting PW"
	FieldAttendeeInstructions = "Attendee Instructions"
	FieldBuilding             = "In-Person Building"
	FieldDirections           = "In-Person Directions"
	FieldAddress              = "In-Person Address"
	FieldCity                 = "City"
	FieldState                = "State/Province"
	FieldCountry              = "Country"
	FieldEmail                = "Public Contact Email"
	FieldLastEdit             = "Last Edit"
	FieldStartDate            = "Start Date"
	FieldEndDate              = "End Date"
)

// DialIn is appended to synthesized conference notes.
const DialIn = "Phone dial-in: 669-444-9171"

// MissingFieldError is returned when a required cell is empty.
type MissingFieldError struct {
	Field string
	RowID string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing value for %q in row %s", e.Field, e.RowID)
}

// Transformer converts rows into records. The zero value is not usable; use
// NewTransformer.
type Transformer struct {
	loc *time.Location
}

// NewTransformer returns a Transformer that writes "updated" in the named zone.
func NewTransformer(zone string) (*Transformer, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", zone, err)
	}
	return &Transformer{loc: loc}, nil
}

// Location is the zone used for "updated".
func (t *Transformer) Location() *time.Location { return t.loc }

var defaultTransformer = func() *Transformer {
	tr, err := NewTransformer(DefaultZone)
	if err != nil {
		panic(err)
	}
	return tr
}()

// Transform converts row using the default zone. See Transformer.Transform.
func Transform(row model.Row, now time.Time) (model.Tsml, bool, error) {
	return defaultTransformer.Transform(row, now)
}

// fields reads cells from one row, remembering the first error so the
// caller can check once after a run of reads.
type fields struct {
	row model.Row
	err error
}

func (f *fields) required(name string) string {
	if f.err != nil {
		return ""
	}
	v, ok, err := f.row.String(name)
	if err != nil {
		f.err = err
		return ""
	}
	if !ok {
		f.err = &MissingFieldError{Field: name, RowID: f.row.ID}
		return ""
	}
	return v
}

func (f *fields) withDefault(name, def string) string {
	if f.err != nil {
		return def
	}
	v, ok, err := f.row.String(name)
	if err != nil {
		f.err = err
		return def
	}
	if !ok {
		return def
	}
	return v
}

func (f *fields) list(name string) []string {
	if f.err != nil {
		return nil
	}
	v, _, err := f.row.Strings(name)
	if err != nil {
		f.err = err
		return nil
	}
	return v
}

// lookup runs a vocabulary lookup unless an earlier read already failed.
func lookup[T any](f *fields, table vocab.Table[T], key string) T {
	var zero T
	if f.err != nil {
		return zero
	}
	v, err := vocab.Lookup(table, key)
	if err != nil {
		f.err = err
		return zero
	}
	return v
}

// Transform converts one row. The boolean result is false when the meeting
// is outside its visibility window as of now; the record is then empty and
// the error nil.
func (t *Transformer) Transform(row model.Row, now time.Time) (model.Tsml, bool, error) {
	f := &fields{row: row}

	startDate := f.withDefault(FieldStartDate, "")
	if f.err != nil {
		return model.Tsml{}, false, f.err
	}
	if startDate != "" {
		start, err := ParseTime(startDate, time.UTC)
		if err != nil {
			return model.Tsml{}, false, withField(err, FieldStartDate)
		}
		if start.After(now) {
			return model.Tsml{}, false, nil
		}
	}

	lastEdit := f.required(FieldLastEdit)
	if f.err != nil {
		return model.Tsml{}, false, f.err
	}
	// A listing that went live after its last edit counts as updated when
	// it went live. Comparison is on the raw ISO text.
	if startDate != "" && startDate > lastEdit {
		lastEdit = startDate
	}

	endDate := f.withDefault(FieldEndDate, "")
	if f.err != nil {
		return model.Tsml{}, false, f.err
	}
	if endDate != "" {
		end, err := ParseTime(endDate, time.UTC)
		if err != nil {
			return model.Tsml{}, false, withField(err, FieldEndDate)
		}
		if !end.After(now) {
			return model.Tsml{}, false, nil
		}
	}

	var out model.Tsml
	out.Name = f.required(FieldName)
	out.Slug = f.required(FieldSlug)
	schedule := f.required(FieldSchedule)
	out.Day = lookup(f, vocab.Weekdays, f.required(FieldDay))
	out.Time = f.required(FieldStartTime)
	out.EndTime = f.withDefault(FieldEndTime, "")
	out.Timezone = lookup(f, vocab.Timezones, f.required(FieldTimeZone))
	language := f.required(FieldLanguage)
	out.Types = composeTypes(f, f.list(FieldCharacteristics), language, schedule)
	out.Notes = composeNotes(f.withDefault(FieldFormat, ""), f.withDefault(FieldWSOID, ""))
	out.ConferenceURL = f.withDefault(FieldAttendeeURL, "")
	out.ConferenceURLNotes = composeConferenceNotes(
		f.withDefault(FieldAttendeeInstructions, ""),
		f.withDefault(FieldMeetingID, ""),
		f.withDefault(FieldMeetingPW, ""),
	)
	out.Location = f.withDefault(FieldBuilding, "")
	out.LocationNotes = f.withDefault(FieldDirections, "")
	out.Address = f.withDefault(FieldAddress, "")
	out.City = f.required(FieldCity)
	out.State = f.required(FieldState)
	out.Country = f.required(FieldCountry)
	out.Email = f.withDefault(FieldEmail, "")
	if f.err != nil {
		return model.Tsml{}, false, f.err
	}

	updated, err := CanonicalTimestamp(lastEdit, t.loc)
	if err != nil {
		return model.Tsml{}, false, withField(err, FieldLastEdit)
	}
	out.Updated = updated
	return out, true, nil
}

// composeTypes orders codes as characteristics, language, then the monthly flag.
func composeTypes(f *fields, characteristics []string, language, schedule string) []string {
	types := make([]string, 0, len(characteristics)+2)
	for _, c := range characteristics {
		types = append(types, lookup(f, vocab.Characteristics, c))
	}
	types = append(types, lookup(f, vocab.Characteristics, language))
	if schedule == vocab.MonthlyLabel {
		types = append(types, lookup(f, vocab.Characteristics, schedule))
	}
	return types
}

func composeNotes(format, wsoID string) string {
	if wsoID == "" {
		return format
	}
	if format == "" {
		return "WSO #" + wsoID
	}
	return format + "\n\nWSO #" + wsoID
}

func composeConferenceNotes(instructions, meetingID, password string) string {
	if instructions != "" || meetingID == "" {
		return instructions
	}
	notes := "Meeting ID: " + meetingID
	if password != "" {
		notes += "\nPassword: " + password
	}
	return notes + "\n" + DialIn
}

func withField(err error, field string) error {
	var ts *InvalidTimestampError
	if errors.As(err, &ts) && ts.Field == "" {
		return &InvalidTimestampError{Field: field, Value: ts.Value}
	}
	return err
}

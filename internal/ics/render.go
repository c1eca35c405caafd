package ics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "github.com/clickonetwo/airtable-tsml-feed/internal/log"
	"github.com/clickonetwo/airtable-tsml-feed/internal/model"
	"github.com/clickonetwo/airtable-tsml-feed/internal/vocab"
)

const (
	localLayout     = "20060102T150405"
	defaultDuration = time.Hour
)

// Options controls calendar rendering.
type Options struct {
	// ProductID is written as PRODID.
	ProductID string
	// Domain is appended to each slug to form the event UID.
	Domain string
	// DefaultZone is used for records without a timezone.
	DefaultZone string
}

// weekdays is indexed by TSML day number (0 = Sunday).
var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// tzid is a TZID property parameter.
type tzid string

func (z tzid) KeyValue(_ ...interface{}) (string, []string) {
	return "TZID", []string{string(z)}
}

// Render builds a PUBLISH calendar with one event per record, in record
// order. Weekly meetings carry a weekly RRULE anchored at their next
// occurrence after now; monthly meetings only get that next occurrence,
// since the export does not say which week of the month they meet.
//
// Records whose day or times cannot be scheduled are logged and left out.
func Render(records []model.Tsml, now time.Time, opts Options) (string, error) {
	if opts.Domain == "" {
		return "", errors.New("ics: domain is required for event UIDs")
	}
	if opts.DefaultZone == "" {
		opts.DefaultZone = "America/Los_Angeles"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	if opts.ProductID != "" {
		cal.SetProductId(opts.ProductID)
	}

	zones := make(map[string]*time.Location)
	for _, rec := range records {
		zone := rec.Timezone
		if zone == "" {
			zone = opts.DefaultZone
		}
		loc, ok := zones[zone]
		if !ok {
			var err error
			loc, err = time.LoadLocation(zone)
			if err != nil {
				appLog.Error("ics: unknown timezone; skipping meeting", err, "slug", rec.Slug, "timezone", zone)
				continue
			}
			zones[zone] = loc
		}

		occ, err := schedule(rec, now, loc)
		if err != nil {
			appLog.Error("ics: cannot schedule meeting; skipping", err, "slug", rec.Slug)
			continue
		}
		addEvent(cal, rec, occ, now, opts.Domain)
	}
	return cal.Serialize(), nil
}

// occurrence is the next concrete meeting time plus its recurrence rule.
type occurrence struct {
	start, end time.Time
	rule       string // empty for one-off
}

func schedule(rec model.Tsml, now time.Time, loc *time.Location) (occurrence, error) {
	if rec.Day < 0 || rec.Day >= len(weekdays) {
		return occurrence{}, fmt.Errorf("day %d out of range", rec.Day)
	}
	startClock, err := time.Parse("15:04", rec.Time)
	if err != nil {
		return occurrence{}, fmt.Errorf("start time %q: %w", rec.Time, err)
	}

	local := now.In(loc)
	anchor := time.Date(local.Year(), local.Month(), local.Day()-7,
		startClock.Hour(), startClock.Minute(), 0, 0, loc)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{weekdays[rec.Day]},
		Dtstart:   anchor,
	})
	if err != nil {
		return occurrence{}, err
	}
	start := rule.After(now, true)
	if start.IsZero() {
		return occurrence{}, errors.New("no upcoming occurrence")
	}

	end := start.Add(defaultDuration)
	if rec.EndTime != "" {
		endClock, err := time.Parse("15:04", rec.EndTime)
		if err != nil {
			return occurrence{}, fmt.Errorf("end time %q: %w", rec.EndTime, err)
		}
		end = time.Date(start.Year(), start.Month(), start.Day(),
			endClock.Hour(), endClock.Minute(), 0, 0, loc)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
	}

	occ := occurrence{start: start, end: end}
	if !slices.Contains(rec.Types, vocab.MonthlyCode) {
		occ.rule = rule.OrigOptions.RRuleString()
	}
	return occ, nil
}

func addEvent(cal *ical.Calendar, rec model.Tsml, occ occurrence, now time.Time, domain string) {
	ev := cal.AddEvent(rec.Slug + "@" + domain)
	ev.SetDtStampTime(now)
	ev.SetSummary(rec.Name)
	zone := tzid(occ.start.Location().String())
	ev.SetProperty(ical.ComponentPropertyDtStart, occ.start.Format(localLayout), zone)
	ev.SetProperty(ical.ComponentPropertyDtEnd, occ.end.Format(localLayout), zone)
	if occ.rule != "" {
		ev.AddRrule(occ.rule)
	}
	if desc := joinNonEmpty("\n\n", rec.Notes, rec.ConferenceURLNotes); desc != "" {
		ev.SetDescription(desc)
	}
	if where := joinNonEmpty(", ", rec.Location, rec.Address, rec.City, rec.State, rec.Country); where != "" {
		ev.SetLocation(where)
	}
	if rec.ConferenceURL != "" {
		ev.SetURL(rec.ConferenceURL)
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const icsProductID = "-//teemow//calendaragent//EN"

// ExportICS renders events as an iCalendar document.
func ExportICS(events []Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetCreatedTime(ev.CreatedAt)
		ve.SetDtStampTime(ev.UpdatedAt)
		ve.SetModifiedAt(ev.UpdatedAt)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if len(ev.Tags) > 0 {
			ve.SetProperty(ical.ComponentPropertyCategories, strings.Join(ev.Tags, ","))
		}
		ve.SetStatus(toICSStatus(ev.Status))
	}
	return cal.Serialize()
}

// ImportICS parses an iCalendar document into drafts. Events without a
// usable start and end are skipped and reported in the returned warnings.
// RRULE values are carried over so Add expands them.
func ImportICS(r io.Reader, loc *time.Location) ([]EventInput, []string, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse calendar: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}

	var (
		drafts   []EventInput
		warnings []string
	)
	for _, ve := range cal.Events() {
		uid := propValue(ve, ical.ComponentPropertyUniqueId)
		start, err := ve.GetStartAt()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: missing start: %v", uid, err))
			continue
		}
		end, err := ve.GetEndAt()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: missing end: %v", uid, err))
			continue
		}

		in := EventInput{
			Title:       propValue(ve, ical.ComponentPropertySummary),
			Description: propValue(ve, ical.ComponentPropertyDescription),
			Location:    propValue(ve, ical.ComponentPropertyLocation),
			Start:       start.In(loc),
			End:         end.In(loc),
			Status:      fromICSStatus(propValue(ve, ical.ComponentPropertyStatus)),
			Source:      "ics",
			Recurrence:  propValue(ve, ical.ComponentPropertyRrule),
		}
		if cats := propValue(ve, ical.ComponentPropertyCategories); cats != "" {
			in.Tags = strings.Split(cats, ",")
		}
		if in.Title == "" {
			in.Title = "(untitled)"
		}
		drafts = append(drafts, in)
	}
	return drafts, warnings, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func toICSStatus(s EventStatus) ical.ObjectStatus {
	switch s {
	case StatusTentative:
		return ical.ObjectStatusTentative
	case StatusCancelled:
		return ical.ObjectStatusCancelled
	default:
		return ical.ObjectStatusConfirmed
	}
}

func fromICSStatus(v string) EventStatus {
	switch strings.ToUpper(v) {
	case string(ical.ObjectStatusTentative):
		return StatusTentative
	case string(ical.ObjectStatusCancelled):
		return StatusCancelled
	default:
		return StatusConfirmed
	}
}

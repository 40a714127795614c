// Package ics renders stored events as an iCalendar stream.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/pbaille/snapcal/internal/domain"
)

const productID = "-//snapcal//EN"

// Encode writes the events as a single VCALENDAR to w.
func Encode(w io.Writer, events []domain.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for i := range events {
		cal.Children = append(cal.Children, toComponent(&events[i]))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// toComponent converts an event to a VEVENT component.
func toComponent(ev *domain.Event) *ical.Component {
	uid := ev.ID
	if uid == "" {
		uid = uuid.New().String()
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)

	if ev.Notes != "" {
		ve.Props.SetText(ical.PropDescription, ev.Notes)
	}
	if ev.Venue != "" {
		ve.Props.SetText(ical.PropLocation, ev.Venue)
	}

	return ve
}

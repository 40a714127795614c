package domain

import "time"

// DefaultTitle is used whenever extraction cannot produce a title.
const DefaultTitle = "New Event"

// Candidate is the canonical intermediate produced by an extraction stage.
// Optional fields are nil pointers. DateOnly, when present, always has its
// time-of-day zeroed and is never used alone to imply a time. Notes holds
// the original input text verbatim.
type Candidate struct {
	Title     string     `json:"title"`
	DateOnly  *time.Time `json:"date_only,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Venue     string     `json:"venue,omitempty"`
	Notes     string     `json:"notes"`
}

// Event is a reconciled event with concrete start and end instants,
// ready to be handed to the calendar store.
type Event struct {
	ID         string    `json:"id,omitempty"`
	CalendarID string    `json:"calendar_id,omitempty"`
	Title      string    `json:"title"`
	Venue      string    `json:"venue,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Calendar is a target for saved events. Only writable calendars accept
// new events; at most one calendar is the default.
type Calendar struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Writable  bool      `json:"writable"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayEvent is the presentation projection of a candidate or stored
// event: every date/time field is optional.
type DisplayEvent struct {
	ID    string     `json:"id,omitempty"`
	Title string     `json:"title"`
	Day   *time.Time `json:"day,omitempty"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Venue string     `json:"venue,omitempty"`
	Notes string     `json:"notes,omitempty"`
}

// Display projects a candidate for presentation.
func (c Candidate) Display() DisplayEvent {
	return DisplayEvent{
		Title: c.Title,
		Day:   c.DateOnly,
		Start: c.StartTime,
		End:   c.EndTime,
		Venue: c.Venue,
		Notes: c.Notes,
	}
}

// Interval returns the projected time span. It is only valid when a
// calendar day and both instants are present; ok is false otherwise.
func (d DisplayEvent) Interval() (start, end time.Time, ok bool) {
	if d.Day == nil || d.Start == nil || d.End == nil {
		return time.Time{}, time.Time{}, false
	}
	return *d.Start, *d.End, true
}

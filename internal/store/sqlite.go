package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pbaille/snapcal/internal/domain"
)

//go:embed schema.sql
var schema string

var (
	// ErrNotFound is returned when an event or calendar does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoWritableCalendar is returned when no calendar permits
	// modification.
	ErrNoWritableCalendar = errors.New("no writable calendar")
	// ErrCalendarNotWritable is returned when the explicitly requested
	// target calendar is read-only.
	ErrCalendarNotWritable = errors.New("calendar is not writable")
)

// DefaultCalendarName is the calendar seeded on first open.
const DefaultCalendarName = "Personal"

// Store is the sqlite-backed calendar store.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath, initializes the schema and seeds a
// default writable calendar when none exists yet.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.seedDefaultCalendar(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) seedDefaultCalendar() error {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM calendars").Scan(&n); err != nil {
		return fmt.Errorf("count calendars: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, err := s.AddCalendar(DefaultCalendarName, true, true)
	return err
}

// AddCalendar creates a calendar. Marking it default clears the flag on
// every other calendar.
func (s *Store) AddCalendar(name string, writable, isDefault bool) (*domain.Calendar, error) {
	id := uuid.New().String()
	now := time.Now()

	if isDefault {
		if _, err := s.db.Exec("UPDATE calendars SET is_default = 0"); err != nil {
			return nil, fmt.Errorf("clear default calendar: %w", err)
		}
	}

	_, err := s.db.Exec(
		"INSERT INTO calendars (id, name, writable, is_default, created_at) VALUES (?, ?, ?, ?, ?)",
		id, name, writable, isDefault, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar: %w", err)
	}

	return &domain.Calendar{
		ID:        id,
		Name:      name,
		Writable:  writable,
		IsDefault: isDefault,
		CreatedAt: now,
	}, nil
}

// ListCalendars returns all calendars, default first.
func (s *Store) ListCalendars() ([]domain.Calendar, error) {
	rows, err := s.db.Query(
		"SELECT id, name, writable, is_default, created_at FROM calendars ORDER BY is_default DESC, name",
	)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	defer rows.Close()

	var cals []domain.Calendar
	for rows.Next() {
		var c domain.Calendar
		if err := rows.Scan(&c.ID, &c.Name, &c.Writable, &c.IsDefault, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan calendar: %w", err)
		}
		cals = append(cals, c)
	}

	return cals, rows.Err()
}

// SetCalendarWritable flips the writable flag on a calendar.
func (s *Store) SetCalendarWritable(id string, writable bool) error {
	res, err := s.db.Exec("UPDATE calendars SET writable = ? WHERE id = ?", writable, id)
	if err != nil {
		return fmt.Errorf("update calendar: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("calendar %s: %w", id, ErrNotFound)
	}
	return nil
}

// TargetCalendar resolves where a new event should be saved: the
// default writable calendar, else the first calendar permitting
// modification, else ErrNoWritableCalendar.
func (s *Store) TargetCalendar() (*domain.Calendar, error) {
	cals, err := s.ListCalendars()
	if err != nil {
		return nil, err
	}

	for _, c := range cals {
		if c.IsDefault && c.Writable {
			return &c, nil
		}
	}
	for _, c := range cals {
		if c.Writable {
			return &c, nil
		}
	}
	return nil, ErrNoWritableCalendar
}

// SaveEvent persists a reconciled event. An empty calendarID selects
// the target calendar via the default-writable policy.
func (s *Store) SaveEvent(ev domain.Event, calendarID string) (*domain.Event, error) {
	var cal *domain.Calendar
	var err error

	if calendarID == "" {
		cal, err = s.TargetCalendar()
		if err != nil {
			return nil, err
		}
	} else {
		cal, err = s.getCalendar(calendarID)
		if err != nil {
			return nil, err
		}
		if !cal.Writable {
			return nil, ErrCalendarNotWritable
		}
	}

	ev.ID = uuid.New().String()
	ev.CalendarID = cal.ID
	ev.CreatedAt = time.Now()

	_, err = s.db.Exec(
		"INSERT INTO events (id, calendar_id, title, venue, notes, start_at, end_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		ev.ID, ev.CalendarID, ev.Title, ev.Venue, ev.Notes, ev.Start, ev.End, ev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	return &ev, nil
}

func (s *Store) getCalendar(id string) (*domain.Calendar, error) {
	var c domain.Calendar
	err := s.db.QueryRow(
		"SELECT id, name, writable, is_default, created_at FROM calendars WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Name, &c.Writable, &c.IsDefault, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("calendar %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	return &c, nil
}

const eventColumns = "id, calendar_id, title, venue, notes, start_at, end_at, created_at"

func scanEvent(row interface{ Scan(...any) error }) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.CalendarID, &e.Title, &e.Venue, &e.Notes, &e.Start, &e.End, &e.CreatedAt)
	return e, err
}

// GetEvent retrieves an event by ID.
func (s *Store) GetEvent(id string) (*domain.Event, error) {
	row := s.db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// ListEvents returns events ordered by start time with pagination.
func (s *Store) ListEvents(limit, offset int) ([]domain.Event, error) {
	rows, err := s.db.Query(
		"SELECT "+eventColumns+" FROM events ORDER BY start_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// SearchEvents performs a simple text search over title, venue and
// notes.
func (s *Store) SearchEvents(query string) ([]domain.Event, error) {
	like := "%" + query + "%"
	rows, err := s.db.Query(
		"SELECT "+eventColumns+" FROM events WHERE title LIKE ? OR venue LIKE ? OR notes LIKE ? ORDER BY start_at DESC",
		like, like, like,
	)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// DeleteEvent removes an event by ID.
func (s *Store) DeleteEvent(id string) error {
	res, err := s.db.Exec("DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

func collectEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/snapcal/internal/domain"
	"github.com/pbaille/snapcal/internal/extract"
	"github.com/pbaille/snapcal/internal/ics"
	"github.com/pbaille/snapcal/internal/reconcile"
	"github.com/pbaille/snapcal/internal/store"
)

// Server handles HTTP requests for the event extraction API.
type Server struct {
	store  *store.Store
	pipe   *extract.Pipeline
	loc    *time.Location
	logger *slog.Logger
	addr   string
}

// New creates a new API server.
func New(s *store.Store, pipe *extract.Pipeline, loc *time.Location, logger *slog.Logger, addr string) *Server {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, pipe: pipe, loc: loc, logger: logger, addr: addr}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	s.logger.Info("starting server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /extract", s.extractPreview)

	mux.HandleFunc("POST /events", s.addEvent)
	mux.HandleFunc("GET /events", s.listEvents)
	mux.HandleFunc("GET /events/{id}", s.getEvent)
	mux.HandleFunc("GET /events/{id}/ics", s.getEventICS)
	mux.HandleFunc("DELETE /events/{id}", s.deleteEvent)

	mux.HandleFunc("GET /calendars", s.listCalendars)
	mux.HandleFunc("POST /calendars", s.addCalendar)

	mux.HandleFunc("GET /search", s.searchEvents)
	mux.HandleFunc("GET /health", s.health)

	return withCORS(s.withLogging(mux))
}

// withLogging logs each request with its duration.
func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

// withCORS adds CORS headers for frontend development.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExtractRequest is the request body for extraction endpoints.
type ExtractRequest struct {
	Text       string `json:"text"`
	CalendarID string `json:"calendar_id,omitempty"`
}

// ExtractResponse is the candidate preview returned by POST /extract.
type ExtractResponse struct {
	Candidate domain.DisplayEvent `json:"candidate"`
}

func (s *Server) extractPreview(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExtractRequest(w, r)
	if !ok {
		return
	}

	cand, err := s.pipe.Run(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ExtractResponse{Candidate: cand.Display()})
}

func (s *Server) addEvent(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExtractRequest(w, r)
	if !ok {
		return
	}

	cand, err := s.pipe.Run(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ev, err := reconcile.Reconcile(cand, s.loc)
	if err != nil {
		if errors.Is(err, reconcile.ErrNoStart) {
			writeError(w, http.StatusUnprocessableEntity, "could not determine start and end")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	saved, err := s.store.SaveEvent(ev, req.CalendarID)
	if err != nil {
		writeError(w, storeErrorStatus(err), err.Error())
		return
	}

	s.logger.Info("event saved", "id", saved.ID, "title", saved.Title)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) decodeExtractRequest(w http.ResponseWriter, r *http.Request) (ExtractRequest, bool) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return req, false
	}
	return req, true
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) getEventICS(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.lookupEvent(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/calendar")
	if err := ics.Encode(w, []domain.Event{*ev}); err != nil {
		s.logger.Error("ics encoding failed", "id", ev.ID, "error", err)
	}
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteEvent(r.PathValue("id")); err != nil {
		writeError(w, storeErrorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupEvent finds an event by ID, supporting prefix matching.
func (s *Server) lookupEvent(w http.ResponseWriter, r *http.Request) (*domain.Event, bool) {
	id := r.PathValue("id")

	ev, err := s.store.GetEvent(id)
	if err == nil {
		return ev, true
	}
	if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}

	events, err := s.store.ListEvents(100, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	for i := range events {
		if strings.HasPrefix(events[i].ID, id) {
			return &events[i], true
		}
	}

	writeError(w, http.StatusNotFound, "event not found")
	return nil, false
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	events, err := s.store.ListEvents(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) listCalendars(w http.ResponseWriter, r *http.Request) {
	cals, err := s.store.ListCalendars()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"calendars": cals})
}

// AddCalendarRequest is the request body for creating a calendar.
type AddCalendarRequest struct {
	Name     string `json:"name"`
	Writable *bool  `json:"writable,omitempty"`
	Default  bool   `json:"default,omitempty"`
}

func (s *Server) addCalendar(w http.ResponseWriter, r *http.Request) {
	var req AddCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	writable := true
	if req.Writable != nil {
		writable = *req.Writable
	}

	cal, err := s.store.AddCalendar(req.Name, writable, req.Default)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, cal)
}

func (s *Server) searchEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	events, err := s.store.SearchEvents(query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"query":  query,
	})
}

func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNoWritableCalendar),
		errors.Is(err, store.ErrCalendarNotWritable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

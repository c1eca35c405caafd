package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clickonetwo/airtable-tsml-feed/internal/feed"
	"github.com/clickonetwo/airtable-tsml-feed/internal/ics"
	appLog "github.com/clickonetwo/airtable-tsml-feed/internal/log"
	"github.com/clickonetwo/airtable-tsml-feed/internal/model"
)

// FeedBuilder produces one fresh pass over the meetings table.
type FeedBuilder interface {
	Build(ctx context.Context) (feed.Result, error)
}

// Server serves the TSML feed.
type Server struct {
	feed  FeedBuilder
	clock func() time.Time
	ics   ics.Options
	mux   *http.ServeMux
}

// NewServer constructs a new Server. A nil clock means time.Now.
func NewServer(builder FeedBuilder, clock func() time.Time, icsOpts ics.Options) *Server {
	if clock == nil {
		clock = time.Now
	}
	s := &Server{
		feed:  builder,
		clock: clock,
		ics:   icsOpts,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/tsml", s.handleTsml)
	s.mux.HandleFunc("GET /api/tsml.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleTsml returns every visible meeting as a JSON array, in table order.
// Nothing is cached: each request reads the whole view again.
func (s *Server) handleTsml(w http.ResponseWriter, r *http.Request) {
	res, err := s.feed.Build(r.Context())
	if err != nil {
		appLog.Error("route handler produced an error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	records := res.Records
	if records == nil {
		records = []model.Tsml{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCalendar returns the same meetings as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	res, err := s.feed.Build(r.Context())
	if err != nil {
		appLog.Error("route handler produced an error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	body, err := ics.Render(res.Records, s.clock(), s.ics)
	if err != nil {
		appLog.Error("route handler produced an error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Status: "error", Reason: "Server error: " + err.Error()})
}

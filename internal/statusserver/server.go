// Package statusserver exposes a minimal local HTTP surface over the
// running ingestor: a liveness probe and a snapshot of currently tracked
// rooms. Adapted from the teacher's internal/overlayserver, which served a
// browser overlay over SSE; this headless service has no overlay UI, so
// only the plain-JSON inventory endpoint and the port-scan bring-up survive
// from that shape.
package statusserver

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"livepulse/internal/registry"
)

// Tracker is the subset of the Supervisor's surface the status server
// needs; satisfied by *supervisor.Supervisor.
type Tracker interface {
	Tracked() []registry.Entry
}

// Server is the process's local status HTTP server.
type Server struct {
	port int
	mux  *http.ServeMux
	log  zerolog.Logger
}

// New finds an available port in [basePort, basePort+100) and wires the
// /healthz and /rooms routes against tracker.
func New(tracker Tracker, log zerolog.Logger, basePort int) (*Server, error) {
	port, err := findAvailablePort(basePort, basePort+100)
	if err != nil {
		return nil, fmt.Errorf("statusserver: no available port: %w", err)
	}

	s := &Server{
		port: port,
		mux:  http.NewServeMux(),
		log:  log.With().Str("component", "statusserver").Logger(),
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/rooms", s.handleRooms(tracker))
	return s, nil
}

// Addr returns the bound address, e.g. ":3000".
func (s *Server) Addr() string { return fmt.Sprintf(":%d", s.port) }

// Start blocks serving HTTP until the listener fails or is closed; run it
// in its own goroutine.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.Addr()).Msg("status server listening")
	return http.ListenAndServe(s.Addr(), s.mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type roomView struct {
	WebRID   string `json:"web_rid"`
	RoomID   string `json:"room_id"`
	Nickname string `json:"nickname"`
}

func (s *Server) handleRooms(tracker Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := tracker.Tracked()
		out := make([]roomView, 0, len(entries))
		for _, e := range entries {
			out = append(out, roomView{WebRID: e.WebRID, RoomID: e.RoomID, Nickname: e.Nickname})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, "encode failed", http.StatusInternalServerError)
		}
	}
}

func findAvailablePort(start, end int) (int, error) {
	for port := start; port < end; port++ {
		addr := fmt.Sprintf(":%d", port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available port in range %d-%d", start, end)
}

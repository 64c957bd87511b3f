// Package httpapi is the HTTP control surface: JSON endpoints that drive the
// session and a websocket stream of UI events.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"handheld_rfid_go/internal/session"
	"handheld_rfid_go/internal/ui"
)

// Session is the part of the connection session the API drives.
// Every method returns without waiting on hardware.
type Session interface {
	Toggle()
	PullTrigger()
	DefaultsAsync()
	Status() session.Status
}

// Screen is the presentation state shared with the terminal UI.
type Screen interface {
	StartInventory()
	StopInventory()
	ClearTags()
	Snapshot() ui.Snapshot
}

type Server struct {
	addr   string
	sess   Session
	screen Screen
	hub    *Broadcaster
	router *mux.Router
	http   *http.Server
}

func New(addr string, sess Session, screen Screen, hub *Broadcaster) *Server {
	s := &Server{
		addr:   addr,
		sess:   sess,
		screen: screen,
		hub:    hub,
		router: mux.NewRouter(),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/connection/toggle", s.handleToggle).Methods(http.MethodPost)
	r.HandleFunc("/inventory/{action:start|stop}", s.handleInventory).Methods(http.MethodPost)
	r.HandleFunc("/tags/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/scanner/trigger", s.handleTrigger).Methods(http.MethodPost)
	r.HandleFunc("/reader/defaults", s.handleDefaults).Methods(http.MethodPost)
	if hub != nil {
		r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "method not allowed"})
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "httpapi").Str("addr", s.addr).Msg("http listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		if s.hub != nil {
			s.hub.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type statusResponse struct {
	Session    session.Status `json:"session"`
	Screen     ui.Snapshot    `json:"screen"`
	StatusLine string         `json:"status_line"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "handheld-rfid",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.screen.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Session:    s.sess.Status(),
		Screen:     snap,
		StatusLine: snap.StatusLine(),
	})
}

func (s *Server) handleToggle(w http.ResponseWriter, _ *http.Request) {
	s.sess.Toggle()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if !s.sess.Status().Connected() {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "reader not connected"})
		return
	}
	if mux.Vars(r)["action"] == "start" {
		s.screen.StartInventory()
	} else {
		s.screen.StopInventory()
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.screen.ClearTags()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	if !s.screen.Snapshot().ScanEnabled {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "no scanner session"})
		return
	}
	s.sess.PullTrigger()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	s.sess.DefaultsAsync()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "httpapi").Err(err).Msg("ws upgrade failed")
		return
	}

	c := s.hub.AddClient(conn)
	if c == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	log.Debug().Str("component", "httpapi").Str("remote", r.RemoteAddr).Msg("ws client connected")

	go func() {
		defer s.hub.RemoveClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

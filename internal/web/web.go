package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"unical/internal/backend"
	"unical/internal/config"
	"unical/internal/controller"
	"unical/internal/cycle"
	appLog "unical/internal/log"
	"unical/internal/tz"
)

// Server exposes the calendar controller as a JSON API for the front-end.
type Server struct {
	cfg    *config.Config
	ctl    *controller.Controller
	router *mux.Router
}

type ctxKey int

const requestIDKey ctxKey = iota

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, ctl *controller.Controller) *Server {
	s := &Server{
		cfg:    cfg,
		ctl:    ctl,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="unical", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestIDMiddleware tags every request with a uuid, echoed back in
// X-Request-ID, and logs the request once it completes.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		appLog.Debug("http request", "request_id", id, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

// RequestID returns the request id attached by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// StartServer serves the API on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, ctl *controller.Controller) error {
	s := NewServer(cfg, ctl)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(requestIDMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/week", s.handleWeek).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/day/groups", s.handleGroups).Methods(http.MethodGet)
	api.HandleFunc("/day/groups/{code}/toggle", s.handleToggleGroup).Methods(http.MethodPost)
	api.HandleFunc("/day/links", s.handleSetLink).Methods(http.MethodPut)
	api.HandleFunc("/day/links/save", s.handleSaveLinks).Methods(http.MethodPost)
	api.HandleFunc("/day/message", s.handleMessage).Methods(http.MethodGet)
	api.HandleFunc("/select/{id}", s.handleSelect).Methods(http.MethodPost)
	api.HandleFunc("/prefs/deadlines/toggle", s.handleToggleDeadlines).Methods(http.MethodPost)
	api.HandleFunc("/login/{platform}", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/export.ics", s.handleExport).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// weekResponse is the JSON response shape for /api/week and /api/refresh.
type weekResponse struct {
	controller.View
	ReauthAfterSeconds int `json:"reauth_after_seconds,omitempty"`
}

// handleWeek selects the week containing ?date= (default today) and
// returns its view.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	err := s.ctl.SelectWeek(r.Context(), date)
	s.writeView(w, r, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.ctl.Refresh(r.Context())
	s.writeView(w, r, err)
}

// writeView renders the current view. A failed fetch still returns the
// view, which carries the error or the session notice.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, fetchErr error) {
	v, err := s.ctl.View(r.Context())
	if err != nil {
		appLog.Error("view failed", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "failed to build view")
		return
	}

	status := http.StatusOK
	switch {
	case errors.Is(fetchErr, controller.ErrSessionExpired):
		status = http.StatusUnauthorized
	case fetchErr != nil:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, weekResponse{
		View:               v,
		ReauthAfterSeconds: int(v.ReauthAfter / time.Second),
	})
}

// day resolves ?date= and makes sure its week is loaded.
func (s *Server) day(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, ok := s.date(w, r)
	if !ok {
		return time.Time{}, false
	}
	if err := s.ctl.SelectWeek(r.Context(), date); err != nil {
		s.fail(w, r, err)
		return time.Time{}, false
	}
	return date, true
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	date, ok := s.day(w, r)
	if !ok {
		return
	}
	cards, err := s.ctl.Cards(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardsResponse{Date: tz.DateKey(date), Cards: cards})
}

// cardsResponse is the JSON response shape for the link board endpoints.
type cardsResponse struct {
	Date  string       `json:"date"`
	Cards []cycle.Card `json:"cards"`
}

func (s *Server) handleToggleGroup(w http.ResponseWriter, r *http.Request) {
	date, ok := s.day(w, r)
	if !ok {
		return
	}
	cards, err := s.ctl.ToggleGroup(r.Context(), date, mux.Vars(r)["code"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardsResponse{Date: tz.DateKey(date), Cards: cards})
}

// linkRequest edits either one event's link or a whole group's.
type linkRequest struct {
	EventID   string `json:"event_id"`
	CycleCode string `json:"cycle_code"`
	URL       string `json:"url"`
}

func (s *Server) handleSetLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if (req.EventID == "") == (req.CycleCode == "") {
		writeError(w, http.StatusBadRequest, "exactly one of event_id and cycle_code is required")
		return
	}

	date, ok := s.day(w, r)
	if !ok {
		return
	}

	var (
		cards []cycle.Card
		err   error
	)
	if req.CycleCode != "" {
		cards, err = s.ctl.SetGroupLink(r.Context(), date, req.CycleCode, req.URL)
	} else {
		cards, err = s.ctl.SetLink(r.Context(), date, req.EventID, req.URL)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardsResponse{Date: tz.DateKey(date), Cards: cards})
}

func (s *Server) handleSaveLinks(w http.ResponseWriter, r *http.Request) {
	date, ok := s.day(w, r)
	if !ok {
		return
	}
	tally, err := s.ctl.SaveLinks(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	date, ok := s.day(w, r)
	if !ok {
		return
	}
	text, err := s.ctl.Message(r.Context(), date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	selected := s.ctl.ToggleSelect(mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, map[string]string{"selected": selected})
}

func (s *Server) handleToggleDeadlines(w http.ResponseWriter, r *http.Request) {
	visible, err := s.ctl.ToggleDeadlines(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"visible": visible})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := backend.ParsePlatform(mux.Vars(r)["platform"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var creds backend.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.ctl.Login(r.Context(), p, creds); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Logout(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, err := s.ctl.Export(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// date parses ?date=YYYY-MM-DD in the viewer zone, defaulting to today.
func (s *Server) date(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return s.ctl.Today(), true
	}
	d, err := tz.ParseDate(raw, s.ctl.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

// fail maps controller errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, controller.ErrSessionExpired), errors.Is(err, backend.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, controller.ErrNoWeek):
		status = http.StatusConflict
	case errors.Is(err, cycle.ErrUnknown):
		status = http.StatusNotFound
	}
	appLog.Error("api request failed", err, "request_id", RequestID(r.Context()), "path", r.URL.Path, "status", status)
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

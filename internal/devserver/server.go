package devserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/config"
	"github.com/letscooee/cooee-go/internal/host"
	"github.com/letscooee/cooee-go/internal/render"
	"github.com/letscooee/cooee-go/internal/trigger"
)

// Server is the development backend the SDK talks to: it validates
// devices, accepts the tracking endpoints and previews trigger
// payloads as render trees.
type Server struct {
	cfg      *Config
	tokens   *TokenStore
	enricher *Enricher
	forward  *Forwarder
}

func NewServer(cfg *Config, tokens *TokenStore, enricher *Enricher, forward *Forwarder) *Server {
	return &Server{
		cfg:      cfg,
		tokens:   tokens,
		enricher: enricher,
		forward:  forward,
	}
}

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)

	r.Get("/health", healthCheck)
	r.Post("/v1/device/validate", s.handleDeviceValidate)
	r.Post("/v1/event/track", s.handleEventTrack)
	r.Post("/v1/user/update", s.handleUserUpdate)
	r.Post("/v1/session/conclude", s.handleSessionConclude)
	r.Post("/v1/trigger/preview", s.handleTriggerPreview)
	return r
}

type deviceValidateRequest struct {
	AppID string         `json:"appID"`
	UUID  string         `json:"uuid"`
	Props map[string]any `json:"props"`
}

type deviceValidateResponse struct {
	UserID   string         `json:"userID"`
	SDKToken string         `json:"sdkToken"`
	Config   map[string]any `json:"config,omitempty"`
}

func (s *Server) handleDeviceValidate(w http.ResponseWriter, r *http.Request) {
	var req deviceValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.AppID == "" || req.UUID == "" {
		http.Error(w, "Missing appID or uuid", http.StatusBadRequest)
		return
	}
	if !s.appAllowed(req.AppID) {
		http.Error(w, "Unknown app", http.StatusUnauthorized)
		return
	}
	if !s.tokens.Allow(r.Context(), req.AppID) {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	token, userID, err := s.tokens.Issue(r.Context(), req.AppID, req.UUID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	record := map[string]any{
		"appID":  req.AppID,
		"uuid":   req.UUID,
		"userID": userID,
		"props":  req.Props,
	}
	s.enricher.Enrich(record, r.Header.Get("User-Agent"), clientIP(r))
	if err := s.forward.Forward(r.Context(), "devices", req.AppID, record); err != nil {
		log.Error().Err(err).Msg("Failed to forward device record")
	}

	writeJSON(w, http.StatusOK, deviceValidateResponse{
		UserID:   userID,
		SDKToken: token,
	})
}

func (s *Server) handleEventTrack(w http.ResponseWriter, r *http.Request) {
	s.handleTracked(w, r, "events")
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	s.handleTracked(w, r, "profiles")
}

func (s *Server) handleSessionConclude(w http.ResponseWriter, r *http.Request) {
	s.handleTracked(w, r, "sessions")
}

// handleTracked is the shared path for the authenticated tracking
// endpoints: token check, enrichment, forward.
func (s *Server) handleTracked(w http.ResponseWriter, r *http.Request, stream string) {
	userID, err := s.tokens.Validate(r.Context(), r.Header.Get("x-sdk-token"))
	if err != nil {
		http.Error(w, "Invalid sdk token", http.StatusUnauthorized)
		return
	}

	var record map[string]any
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil || record == nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	record["userID"] = userID

	s.enricher.Enrich(record, r.Header.Get("User-Agent"), clientIP(r))
	if err := s.forward.Forward(r.Context(), stream, userID, record); err != nil {
		log.Error().Err(err).Str("stream", stream).Msg("Failed to forward record")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type triggerPreviewRequest struct {
	Viewport struct {
		Width  float64 `json:"w"`
		Height float64 `json:"h"`
	} `json:"viewport"`
	Margin float64 `json:"margin"`
	// CustomHost previews the overlay as mounted in a host container
	// instead of the window.
	CustomHost bool            `json:"customHost"`
	Payload    json.RawMessage `json:"payload"`
}

// handleTriggerPreview renders a raw trigger payload against an
// arbitrary viewport, so campaign authors can inspect the computed
// tree without a browser.
func (s *Server) handleTriggerPreview(w http.ResponseWriter, r *http.Request) {
	var req triggerPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Viewport.Width <= 0 || req.Viewport.Height <= 0 {
		http.Error(w, "Missing viewport", http.StatusBadRequest)
		return
	}

	p, err := trigger.Parse(req.Payload)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
		return
	}

	margin := req.Margin
	if margin == 0 {
		margin = config.DefaultMargin
	}
	root, err := render.NewEngine(margin, req.CustomHost).Render(p, host.Viewport{
		Width:  req.Viewport.Width,
		Height: req.Viewport.Height,
	})
	if errors.Is(err, render.ErrExpired) {
		writeJSON(w, http.StatusGone, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"triggerID": p.ID,
		"root":      root,
	})
}

func (s *Server) appAllowed(appID string) bool {
	if len(s.cfg.Apps.IDs) == 0 {
		return true
	}
	for _, id := range s.cfg.Apps.IDs {
		if id == appID {
			return true
		}
	}
	return false
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-sdk-token, user-id, sdk-version, sdk-version-code")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

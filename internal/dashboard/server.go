// Package dashboard serves the browsing UI: a JSON API over the run store,
// a websocket progress feed, sprite file serving, uploads, and a small
// embedded HTML front end. It is a thin presentation layer; all extraction
// logic stays in the extract package.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/vk/bundlescope/internal/classify"
	"github.com/vk/bundlescope/internal/ctxlog"
	"github.com/vk/bundlescope/internal/profile"
	"github.com/vk/bundlescope/internal/store"
)

// Version is reported by /api/status.
const Version = "0.3.0"

// ExtractFunc triggers an extraction run for a source. The dashboard never
// runs extractions itself; the app injects this.
type ExtractFunc func(ctx context.Context, src *profile.Source) (*store.Run, error)

// Server is the dashboard HTTP server.
type Server struct {
	cfg           *profile.Dashboard
	model         *profile.Model
	overridesPath string
	store         *store.Store
	hub           *Hub
	extract       ExtractFunc
	logger        *slog.Logger

	mu        sync.Mutex // serializes the overrides file read-modify-write
	server    *http.Server
	startedAt time.Time
}

// NewServer wires a dashboard server. The hub is owned by the server and
// started alongside it.
func NewServer(cfg *profile.Dashboard, model *profile.Model, overridesPath string, st *store.Store, extract ExtractFunc, logger *slog.Logger) *Server {
	return &Server{
		cfg:           cfg,
		model:         model,
		overridesPath: overridesPath,
		store:         st,
		hub:           NewHub(),
		extract:       extract,
		logger:        logger,
	}
}

// Hub exposes the progress hub so the app can feed pipeline events into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.server = &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.handler(),
	}
	s.startedAt = time.Now()

	go s.hub.Run()
	go func() {
		s.logger.Info("📊 Dashboard server starting", "address", s.cfg.Listen)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Dashboard server failed", "error", err)
		}
	}()
}

// handler assembles the full route table.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", s.handleUI)
	mux.Handle("GET /sprites/", http.StripPrefix("/sprites/", http.FileServer(http.Dir(s.model.Export.OutDir))))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", s.handleStatus)
	api.HandleFunc("GET /api/runs", s.handleListRuns)
	api.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	api.HandleFunc("DELETE /api/runs/{id}", s.handleDeleteRun)
	api.HandleFunc("GET /api/runs/{id}/entities", s.handleListEntities)
	api.HandleFunc("GET /api/runs/{id}/entities/{kind}/{name}", s.handleGetEntity)
	api.HandleFunc("GET /api/runs/{id}/gallery", s.handleGallery)
	api.HandleFunc("GET /api/profile", s.handleGetProfile)
	api.HandleFunc("PUT /api/profile", s.handlePutProfile)
	api.HandleFunc("POST /api/extract", s.handleExtract)
	api.HandleFunc("POST /api/upload", s.handleUpload)
	mux.Handle("/api/", s.authMiddleware(api))
	mux.Handle("GET /ws", s.authMiddleware(http.HandlerFunc(s.hub.ServeWS)))

	return s.logMiddleware(mux)
}

// Stop shuts the server and the hub down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// logMiddleware attaches the server logger to every request context.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxlog.WithLogger(r.Context(), s.logger)
		s.logger.Debug("Request received.", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware enforces basic auth on the API and the progress feed when
// credentials are configured. The HTML UI stays open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Username != "" && s.cfg.Password != "" {
			username, password, ok := r.BasicAuth()
			if !ok || username != s.cfg.Username || password != s.cfg.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="bundlescope"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps store errors onto HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Summarize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        Version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"summary":        summary,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRun(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.store.ListEntities(r.PathValue("id"), r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entities == nil {
		entities = []*classify.Entity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := s.store.GetEntity(r.PathValue("id"), r.PathValue("kind"), r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// galleryItem is one exported sprite in the gallery listing.
type galleryItem struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Sprite   string `json:"sprite"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url,omitempty"`
	Method   string `json:"method"`
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	entities, err := s.store.ListEntities(r.PathValue("id"), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	items := []galleryItem{}
	for _, entity := range entities {
		if entity.Sprite == nil || entity.Sprite.File == "" {
			continue
		}
		item := galleryItem{
			Kind:   entity.Kind,
			Name:   entity.Name,
			Sprite: entity.Sprite.SpriteName,
			URL:    path.Join("/sprites", entity.Sprite.File),
			Method: entity.Sprite.Method,
		}
		if entity.Sprite.ThumbFile != "" {
			item.ThumbURL = path.Join("/sprites", entity.Sprite.ThumbFile)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// profileView is the dashboard-editable slice of the profile.
type profileView struct {
	Classifiers map[string]*profile.ClassifierOverride `json:"classifiers"`
	Export      *profile.ExportOverride                `json:"export"`
	Sources     []string                               `json:"sources"`
}

// effectiveModel is the base profile with the saved overrides merged on
// top, the same settings the next run starts from. The base model itself is
// never mutated after startup.
func (s *Server) effectiveModel() (*profile.Model, error) {
	overrides, err := profile.LoadOverrides(s.overridesPath)
	if err != nil {
		return nil, err
	}
	model := s.model.Clone()
	overrides.Apply(model)
	return model, nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	model, err := s.effectiveModel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	view := profileView{Classifiers: make(map[string]*profile.ClassifierOverride)}
	for kind, c := range model.Classifiers {
		enabled, minConf := c.Enabled, c.MinConfidence
		view.Classifiers[kind] = &profile.ClassifierOverride{Enabled: &enabled, MinConfidence: &minConf}
	}
	exp := model.Export
	atlases, thumbnails, thumbSize := exp.Atlases, exp.Thumbnails, exp.ThumbSize
	view.Export = &profile.ExportOverride{Atlases: &atlases, Thumbnails: &thumbnails, ThumbSize: &thumbSize}
	for _, src := range model.Sources {
		view.Sources = append(view.Sources, src.Name)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var o profile.Overrides
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid overrides body: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reject bad overrides before they reach the overrides file. Accepted
	// ones take effect when the next run snapshots its settings.
	trial := s.model.Clone()
	o.Apply(trial)
	if err := trial.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := o.Save(s.overridesPath); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	src := s.model.SourceByName(req.Source)
	if src == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown source %q", req.Source))
		return
	}

	go s.runExtraction(src)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started", "source": src.Name})
}

// runExtraction drives one background run and reports the outcome on the
// progress feed.
func (s *Server) runExtraction(src *profile.Source) {
	ctx := ctxlog.WithLogger(context.Background(), s.logger)
	run, err := s.extract(ctx, src)
	if err != nil {
		s.logger.Error("Dashboard-triggered extraction failed.", "source", src.Name, "error", err)
	}
	if run != nil {
		s.hub.Broadcast(map[string]any{"type": "run", "run": run})
	}
}

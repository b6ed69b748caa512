package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/fablecast/fablecast/internal/render"
	"github.com/fablecast/fablecast/internal/speech"
	"github.com/fablecast/fablecast/internal/story"
	"github.com/fablecast/fablecast/internal/studio"
	"github.com/fablecast/fablecast/internal/voices"
)

// recentRenders is how many history rows the form page shows.
const recentRenders = 10

// sseHeartbeat keeps idle proxies from dropping event streams.
const sseHeartbeat = 15 * time.Second

// Server is the fablecast web app.
type Server struct {
	cfg       Config
	jobs      *Jobs
	store     *Store
	assetsDir string
	voicesDir string

	mu      sync.RWMutex
	catalog []voices.Voice
}

// New assembles the server. store may be nil to disable history.
func New(cfg Config, jobs *Jobs, store *Store, assetsDir, voicesDir string) *Server {
	return &Server{
		cfg:       cfg,
		jobs:      jobs,
		store:     store,
		assetsDir: assetsDir,
		voicesDir: voicesDir,
	}
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	go s.jobs.Run(ctx)
	go s.watchVoices(ctx)

	srv := &http.Server{
		Addr:        s.cfg.Addr(),
		Handler:     s.Handler(),
		ReadTimeout: s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", "http://"+s.cfg.Addr())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("GET /jobs/{id}", s.handleJob)
	mux.HandleFunc("GET /events/{id}", s.handleEvents)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /outputs/", http.StripPrefix("/outputs/",
		http.FileServer(http.Dir(s.assetsDir))))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// watchVoices keeps the catalog fresh while serving.
func (s *Server) watchVoices(ctx context.Context) {
	w, err := voices.NewWatcher(s.voicesDir)
	if err != nil {
		log.Warn("voices watcher unavailable", "dir", s.voicesDir, "err", err)
		return
	}
	defer w.Close() //nolint:errcheck
	go w.Run(ctx)
	for catalog := range w.Catalogs {
		s.mu.Lock()
		s.catalog = catalog
		s.mu.Unlock()
	}
}

func (s *Server) voiceCatalog() []voices.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

type formData struct {
	Params       story.Params
	Morals       []string
	StoryEngines []string
	TTSEngines   []string
	Platforms    []render.Platform
	Recent       []Record
	MinAge       int
	MaxAge       int
	MinMinutes   int
	MaxMinutes   int
	MinScenes    int
	MaxScenes    int
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	data := formData{
		Params:       story.DefaultParams(),
		Morals:       story.MoralNames,
		StoryEngines: []string{story.EngineAuto, story.EngineRules, story.EngineOllama},
		TTSEngines:   []string{speech.EngineAuto, speech.EnginePiper, speech.EngineEspeak},
		Platforms:    render.Platforms,
		MinAge:       story.MinAge,
		MaxAge:       story.MaxAge,
		MinMinutes:   story.MinMinutes,
		MaxMinutes:   story.MaxMinutes,
		MinScenes:    story.MinScenes,
		MaxScenes:    story.MaxScenes,
	}
	if s.store != nil {
		recent, err := s.store.Recent(recentRenders)
		if err != nil {
			log.Warn("loading render history failed", "err", err)
		}
		data.Recent = recent
	}
	if err := formTemplate.Execute(w, data); err != nil {
		log.Debug("rendering form failed", "err", err)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := story.Params{
		Title:   r.FormValue("title"),
		Theme:   r.FormValue("theme"),
		Moral:   r.FormValue("moral"),
		Age:     formInt(r, "age", story.DefaultParams().Age),
		Minutes: formInt(r, "minutes", story.DefaultParams().Minutes),
		Scenes:  formInt(r, "scenes", story.DefaultParams().Scenes),
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	platforms, err := render.ParsePlatforms(r.Form["platforms"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := studio.Request{
		Params:      params,
		StoryEngine: r.FormValue("story_engine"),
		Platforms:   platforms,
	}
	job, err := s.jobs.Submit(params.Title, req, r.FormValue("tts_engine"), r.FormValue("voice"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	http.Redirect(w, r, "/jobs/"+job.ID, http.StatusSeeOther)
}

type jobData struct {
	Job     *Job
	Status  string
	Err     string
	Frac    float64
	Outputs []string
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	status, errText := job.Status()
	data := jobData{Job: job, Status: status, Err: errText}
	if status == StatusDone {
		data.Frac = 1
	}
	for _, out := range job.Outputs() {
		rel, err := filepath.Rel(s.assetsDir, out.Path)
		if err != nil {
			continue
		}
		data.Outputs = append(data.Outputs, filepath.ToSlash(rel))
	}
	if err := jobTemplate.Execute(w, data); err != nil {
		log.Debug("rendering job page failed", "err", err)
	}
}

// sseEvent is the JSON payload of one progress frame.
type sseEvent struct {
	Stage   string  `json:"stage"`
	Message string  `json:"message"`
	Frac    float64 `json:"frac"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := job.Subscribe()
	defer cancel()

	// The pipeline already rate-limits per-scene chatter; this second
	// limiter just protects the wire from replayed history bursts.
	lim := rate.NewLimiter(rate.Every(50*time.Millisecond), 10)
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				fmt.Fprint(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if ev.Stage != studio.StageDone && !lim.Allow() {
				continue
			}
			payload, err := json.Marshal(sseEvent{
				Stage:   string(ev.Stage),
				Message: ev.Message,
				Frac:    ev.Frac,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	catalog := s.voiceCatalog()
	if catalog == nil {
		var err error
		catalog, err = voices.Scan(s.voicesDir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(catalog); err != nil {
		log.Debug("encoding voices failed", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func formInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.FormValue(key))
	if err != nil {
		return fallback
	}
	return v
}

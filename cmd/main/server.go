package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CTAG07/cvforge/pkg/archive"
	"github.com/CTAG07/cvforge/pkg/cvtree"
	"github.com/CTAG07/cvforge/pkg/templating"
)

const recentRenders = 20

// Server is the local preview server. The data file is re-read on every
// request so edits show up on reload.
type Server struct {
	cm       *ConfigManager
	tm       *templating.TemplateManager
	pipeline *Pipeline
	store    *archive.Store
	dataPath string
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer wires the handlers. store may be nil when archiving is disabled.
func NewServer(cm *ConfigManager, tm *templating.TemplateManager, pipeline *Pipeline, store *archive.Store, dataPath string, logger *slog.Logger) *Server {
	s := &Server{
		cm:       cm,
		tm:       tm,
		pipeline: pipeline,
		store:    store,
		dataPath: dataPath,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/health", s.handleHealthCheck)
	s.mux.HandleFunc("/api/version", s.handleVersion)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/templates", s.handleTemplates)
	s.mux.HandleFunc("/api/templates/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/tags", s.handleTags)
	s.mux.HandleFunc("/api/renders", s.handleRenders)
	s.mux.HandleFunc("/preview", s.handlePreview)
	s.mux.HandleFunc("/pdf", s.handlePDF)
	s.mux.HandleFunc("/renders/", s.handleArchived)
	s.mux.HandleFunc("/favicon.ico", handleFavicon)
	s.mux.HandleFunc("/", s.handleIndex)
	return s
}

// ServeHTTP makes the Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// watchTemplates refreshes the template manager whenever the watcher reports
// a change, until ctx is done.
func (s *Server) watchTemplates(ctx context.Context, w *templating.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case name := <-w.Changed():
			s.logger.Info("Template change detected, refreshing", "file", name)
			if err := s.tm.Refresh(); err != nil {
				s.logger.Error("Template refresh failed", "error", err)
			}
		case err := <-w.Errors():
			s.logger.Warn("Template watcher error", "error", err)
		}
	}
}

func (s *Server) loadData() (*cvtree.Node, error) {
	return cvtree.Load(s.dataPath)
}

// requestTags reads tags from repeated or comma separated "tags" parameters.
func requestTags(r *http.Request) []string {
	var tags []string
	for _, v := range r.URL.Query()["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var tags []string
	if data, err := s.loadData(); err != nil {
		s.logger.Warn("Failed to load data for index", "path", s.dataPath, "error", err)
	} else {
		tags = data.EveryTag()
	}

	var renders []archive.Render
	if s.store != nil {
		var err error
		if renders, err = s.store.List(r.Context(), recentRenders); err != nil {
			s.logger.Warn("Failed to list renders", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage(s.tm.GetTemplateNames(), tags, renders).Render(w); err != nil {
		s.logger.Error("Failed to render index page", "error", err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.servePreview(w, r, formatHTML, "text/html; charset=utf-8")
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	s.servePreview(w, r, formatPDF, "application/pdf")
}

func (s *Server) servePreview(w http.ResponseWriter, r *http.Request, format, contentType string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	name := r.URL.Query().Get("template")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Missing 'template' query parameter")
		return
	}

	data, err := s.loadData()
	if err != nil {
		s.logger.Error("Failed to load data", "path", s.dataPath, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load data: %v", err))
		return
	}

	out, err := s.pipeline.Render(r.Context(), data, name, requestTags(r), format)
	switch {
	case errors.Is(err, templating.ErrTemplateNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrNoData):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logger.Error("Render failed", "template", name, "format", format, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Render failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(out)
}

func (s *Server) handleArchived(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		respondWithError(w, http.StatusNotFound, "Render archive is disabled")
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/renders/"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid render id")
		return
	}

	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	} else if err != nil {
		s.logger.Error("Failed to load render", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load render")
		return
	}

	if rec.Format == formatPDF {
		w.Header().Set("Content-Type", "application/pdf")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.Header().Set("ETag", `"`+rec.Digest+`"`)
	_, _ = w.Write(rec.Output)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

// handleConfig gets or updates the configuration.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondWithJSON(w, http.StatusOK, s.cm.Get())
	case http.MethodPut:
		var newConfig Config
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if err := s.cm.Update(newConfig); err != nil {
			s.logger.Error("Failed to update config", "error", err)
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Info("Configuration updated via API. Server address changes require a restart.")
		respondWithJSON(w, http.StatusOK, s.cm.Get())
	default:
		w.Header().Set("Allow", "GET, PUT")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	respondWithJSON(w, http.StatusOK, s.tm.GetTemplateNames())
}

// handleRefresh triggers a manual refresh of templates from disk.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.tm.Refresh(); err != nil {
		s.logger.Error("API triggered refresh failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to refresh templates: %v", err))
		return
	}
	s.logger.Info("Templates refreshed via API")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	data, err := s.loadData()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load data: %v", err))
		return
	}
	tags := data.EveryTag()
	if tags == nil {
		tags = []string{}
	}
	respondWithJSON(w, http.StatusOK, tags)
}

func (s *Server) handleRenders(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.store == nil {
		respondWithJSON(w, http.StatusOK, []archive.Render{})
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = recentRenders
	}
	renders, err := s.store.List(r.Context(), limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list renders: %v", err))
		return
	}
	if renders == nil {
		renders = []archive.Render{}
	}
	respondWithJSON(w, http.StatusOK, renders)
}

// handleFavicon returns no content so browsers stop asking.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

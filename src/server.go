package src

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxUploadBytes = 20 << 20

// Server exposes the generation pipeline and project persistence over
// HTTP. Store and storage are optional; endpoints that need them answer
// 503 when they are absent.
type Server struct {
	pipeline *Pipeline
	store    Store
	storage  *AssetStorage
	router   chi.Router
	addr     string
	log      *slog.Logger
}

func NewServer(addr string, pipeline *Pipeline, store Store, storage *AssetStorage, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		pipeline: pipeline,
		store:    store,
		storage:  storage,
		addr:     addr,
		log:      log,
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server with timeouts sized for long model
// calls on the streaming endpoints.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Post("/generate", s.handleGenerate)
	r.Post("/generate-stream", s.handleGenerateStream)
	r.Post("/followup-stream", s.handleFollowupStream)
	r.Post("/api/upload-asset", s.handleUploadAsset)
	r.Post("/api/export-to-github", s.handleExportToGitHub)

	r.Route("/projects", func(r chi.Router) {
		r.Post("/save", s.handleSaveProject)
		r.Get("/user/{userID}", s.handleListProjects)
		r.Get("/single/{projectID}", s.handleGetProject)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Delete("/", s.handleDeleteProject)
			r.Get("/latest", s.handleLatestVersion)
			r.Get("/versions", s.handleListVersions)
		})
	})
	r.Get("/versions/{versionID}", s.handleGetVersion)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"db_configured": s.store != nil,
	})
}

type generateRequest struct {
	Prompt     string      `json:"prompt"`
	Attachment *Attachment `json:"attachment,omitempty"`
	UserID     string      `json:"user_id,omitempty"`
	ProjectID  string      `json:"project_id,omitempty"`
	AssetURL   string      `json:"image_asset_url,omitempty"`
}

func (req generateRequest) toPipeline() Request {
	return Request{
		Prompt:     req.Prompt,
		Attachment: req.Attachment,
		UserID:     req.UserID,
		ProjectID:  req.ProjectID,
		AssetURL:   req.AssetURL,
	}
}

type followupRequest struct {
	Prompt         string  `json:"prompt"`
	CurrentFiles   FileSet `json:"current_files"`
	ReviewFeedback string  `json:"review_feedback,omitempty"`
	UserID         string  `json:"user_id,omitempty"`
	ProjectID      string  `json:"project_id,omitempty"`
	AssetURL       string  `json:"image_asset_url,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	result, err := s.pipeline.Run(r.Context(), req.toPipeline())
	if err != nil {
		s.log.Error("generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files":     result.Files,
		"plan":      result.PlanText,
		"architect": result.ArchitectText,
		"diagram":   result.Diagram,
	})
}

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	// The run is detached from the request context: a client disconnect
	// abandons delivery but the pipeline finishes for persistence.
	events := s.pipeline.Stream(context.WithoutCancel(r.Context()), req.toPipeline())
	s.streamEvents(w, r, events)
}

func (s *Server) handleFollowupStream(w http.ResponseWriter, r *http.Request) {
	var req followupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "Modification prompt is required")
		return
	}
	if len(req.CurrentFiles) == 0 {
		writeError(w, http.StatusBadRequest, "Current files are required")
		return
	}

	events := s.pipeline.FollowUpStream(context.WithoutCancel(r.Context()), FollowUpRequest{
		Prompt:         req.Prompt,
		CurrentFiles:   req.CurrentFiles,
		ReviewFeedback: req.ReviewFeedback,
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		AssetURL:       req.AssetURL,
	})
	s.streamEvents(w, r, events)
}

// streamEvents writes pipeline events as Server-Sent Events. After a
// client disconnect the channel is drained without writing so the
// producer never blocks on a dead consumer.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan Event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("event encode failed", "stage", ev.Stage, "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			for range events {
			}
			return
		}
	}
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := fmt.Sprintf("assets/%s_%s", uuid.NewString(), header.Filename)

	url, err := s.storage.Upload(r.Context(), name, contentType, payload)
	if err != nil {
		s.log.Error("asset upload failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type saveProjectRequest struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CodeSnapshot *Snapshot `json:"code_snapshot,omitempty"`
	ProjectID    string    `json:"project_id,omitempty"`
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	var req saveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}

	id, err := s.store.SaveProject(r.Context(), SaveProjectParams{
		ProjectID:   req.ProjectID,
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Snapshot:    req.CodeSnapshot,
	})
	if err != nil {
		s.log.Error("project save failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"project_id": id})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	projects, err := s.store.ListUserProjects(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	project, err := s.store.GetProjectWithCode(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleLatestVersion(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	version, err := s.store.LatestVersion(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	versions, err := s.store.ProjectVersions(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if versions == nil {
		versions = []Version{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	version, err := s.store.GetVersion(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

type exportRequest struct {
	ProjectID   string `json:"project_id"`
	GitHubToken string `json:"github_token"`
	RepoName    string `json:"repo_name,omitempty"`
}

func (s *Server) handleExportToGitHub(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectID == "" || req.GitHubToken == "" {
		writeError(w, http.StatusBadRequest, "project_id and github_token are required")
		return
	}

	project, err := s.store.GetProjectWithCode(r.Context(), req.ProjectID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	files := FilesFromSnapshot(project.CodeSnapshot)
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "project has no saved files to export")
		return
	}

	repoName := req.RepoName
	if repoName == "" {
		repoName = project.Name
	}
	repoName = SanitizeRepoName(repoName, req.ProjectID)

	url, err := ExportToGitHub(r.Context(), req.GitHubToken, repoName, files)
	if err != nil {
		s.log.Error("github export failed", "project_id", req.ProjectID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"repo_url": url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

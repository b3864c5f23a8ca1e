package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fdg312/sugarcheck/internal/auth"
	"github.com/fdg312/sugarcheck/internal/blob"
	"github.com/fdg312/sugarcheck/internal/config"
	"github.com/fdg312/sugarcheck/internal/reports"
	"github.com/fdg312/sugarcheck/internal/storage"
	"go.uber.org/zap"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Storage storage.Storage
	Reports *reports.Service
	// Artifacts serves report files in local blob mode. Nil disables the route.
	Artifacts *blob.MemoryStore
}

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	deps           Deps
	authMiddleware *auth.Middleware
	logger         *zap.Logger
	httpServer     *http.Server
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		deps:   deps,
		logger: logger.With(zap.String("component", "httpserver")),
	}
	s.routes()
	return s
}

// routes регистрирует маршруты
func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	authService := auth.NewService(s.config, s.deps.Storage)
	s.authMiddleware = auth.NewMiddleware(s.config, authService, s.logger)
	if s.config.Env == "local" {
		authHandler := auth.NewHandlers(authService)
		// POST /v1/auth/dev - local dev token for an existing user
		s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)
	}

	if s.deps.Reports != nil {
		reportsHandler := reports.NewHandlers(s.deps.Reports, s.logger)
		s.mux.HandleFunc("POST /v1/reports/generate/{id}", reportsHandler.HandleGenerate)
		s.mux.HandleFunc("GET /v1/users/{id}/reports", reportsHandler.HandleList)
		s.mux.HandleFunc("DELETE /v1/reports/{id}", reportsHandler.HandleDelete)
	}

	if s.deps.Artifacts != nil {
		s.mux.HandleFunc("GET "+blob.LocalPathPrefix+"/{key...}", s.handleArtifact)
	}
}

// Handler returns the router wrapped in middleware (outermost first):
// request log → CORS → rate limit → auth → router.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.authMiddleware.RequireAuth(handler)
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	handler = RequestLogMiddleware(s.logger, handler)
	return handler
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"env":    s.config.Env,
	})
}

// handleArtifact отдает публичный артефакт из локального blob store
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.deps.Artifacts.GetPublic(r.PathValue("key"))
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact_not_found", "Artifact not found")
		return
	}
	if err != nil {
		s.logger.Error("artifact read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to read artifact")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Start запускает HTTP сервер и блокируется до Shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server started",
		zap.String("addr", addr),
		zap.String("healthz", fmt.Sprintf("http://localhost%s/healthz", addr)))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown останавливает прием запросов и ждет активные
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.deps.Storage != nil {
		return s.deps.Storage.Close()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

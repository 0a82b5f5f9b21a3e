package ui

import (
	"context"
	"net/http"
	"time"

	"labstats/internal/analysis"
	apperrors "labstats/internal/errors"
	"labstats/ports"
	"labstats/ui/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configures the HTTP server
type Options struct {
	// RootDir is the base that appended file paths are reported relative to
	RootDir string
	// ToolsDir holds the static dashboard served under /lab
	ToolsDir string
	// MaxUploadBytes bounds /run_stats request bodies
	MaxUploadBytes int64
	// MaxConcurrent bounds simultaneous analyses; 0 disables the limit
	MaxConcurrent int
	CORSOrigins   []string
	GinMode       string
}

// Server is the lab stats HTTP server
type Server struct {
	router    *gin.Engine
	pipeline  *analysis.Pipeline
	appendLog ports.AppendLog
	options   Options
	logger    *zap.Logger
}

// NewServer creates the server and registers every route
func NewServer(pipeline *analysis.Pipeline, appendLog ports.AppendLog, options Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.GinMode != "" {
		gin.SetMode(options.GinMode)
	}
	if options.MaxUploadBytes <= 0 {
		options.MaxUploadBytes = 50 << 20
	}

	s := &Server{
		router:    gin.New(),
		pipeline:  pipeline,
		appendLog: appendLog,
		options:   options,
		logger:    logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(s.logger),
		middleware.CORS(s.options.CORSOrigins),
	)
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/lab/*path", s.handleLab)
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/run_stats",
		middleware.AnalysisLimiter(int64(s.options.MaxConcurrent), s.logger),
		s.handleRunStats)

	s.router.POST("/append_csv", s.handleAppendCSV)
	s.router.GET("/list_data", s.handleListData)
	s.router.GET("/download_csv", s.handleDownloadCSV)
	s.router.GET("/render_notebook", s.handleRenderNotebook)
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[server] listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return apperrors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}

// writeError renders any error as the structured failure payload
func (s *Server) writeError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.InternalError(err.Error())
		appErr.Cause = err
	}

	status := appErr.HTTPStatus()
	fields := []zap.Field{
		zap.String("kind", string(appErr.Kind)),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("[api] "+appErr.Message, fields...)
	} else {
		s.logger.Warn("[api] "+appErr.Message, fields...)
	}

	c.JSON(status, appErr.Payload())
}

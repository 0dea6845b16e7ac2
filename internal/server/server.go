package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cozy-creator/img2img/internal/app"
	"github.com/gammazero/workerpool"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	listenAddr string
	ginEngine  *gin.Engine
	inner      *http.Server
	app        *app.App

	// A loaded pipeline is not safe for concurrent sampling, so every
	// generation goes through this single-worker pool.
	pool *workerpool.WorkerPool
}

func NewServer(app *app.App) *Server {
	cfg := app.Config()

	gin.SetMode(getGinMode(cfg.Environment))
	r := gin.New()

	r.Use(logger.SetLogger(
		logger.WithUTC(true),
		logger.WithSkipPath([]string{"/healthz"}),
	))

	r.Use(cors.New(
		cors.Config{
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowOrigins:  []string{"*"},
			AllowHeaders:  []string{"*"},
			ExposeHeaders: []string{"*"},
			MaxAge:        300 * time.Second,
		},
	))

	r.Use(static.Serve("/files", static.LocalFile(cfg.AssetsDir, false)))
	r.Use(gin.Recovery())

	listenAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s := &Server{
		listenAddr: listenAddr,
		ginEngine:  r,
		inner: &http.Server{
			Handler: r,
			Addr:    listenAddr,
		},
		app:  app,
		pool: workerpool.New(1),
	}
	s.SetupRoutes()

	return s
}

func (s *Server) Start() error {
	s.app.Logger.Info("Starting server", zap.String("address", s.listenAddr))

	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	s.app.Logger.Info("Stopping server")
	defer s.pool.StopWait()

	return s.inner.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func getGinMode(env string) string {
	switch env {
	case "dev", "development":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}

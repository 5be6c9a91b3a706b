// Package server exposes the latest rollup snapshot over a read-only HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/usagestats/internal/config"
	"github.com/smallbiznis/usagestats/internal/refresh"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// Server serves rollup tables and entity views from the published snapshot.
type Server struct {
	engine *gin.Engine
	cfg    config.Config
	holder *refresh.Holder
	log    *zap.Logger
}

type Params struct {
	fx.In

	Gin    *gin.Engine
	Cfg    config.Config
	Holder *refresh.Holder
	Log    *zap.Logger
}

func NewServer(p Params) *Server {
	return &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		holder: p.Holder,
		log:    p.Log.Named("server"),
	}
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

// RegisterAPIRoutes mounts the read-only reporting API.
func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.GET("/rollups", s.GetRollupSummary)
	api.GET("/rollups/monthly-users", s.ListGlobalMonthlyUsers)
	api.GET("/rollups/institution-monthly-codes", s.ListInstitutionMonthlyCodes)
	api.GET("/rollups/institution-monthly-users", s.ListInstitutionMonthlyUsers)
	api.GET("/rollups/institution-database-yearly", s.ListInstitutionDatabaseYearly)
	api.GET("/rollups/subscribers-by-status", s.ListSubscribersByStatus)
	api.GET("/rollups/subscribers-by-year-created", s.ListSubscribersByYearCreated)
	api.GET("/rollups/subscribers-by-year-last-access", s.ListSubscribersByYearLastAccess)

	api.GET("/institutions", s.ListInstitutions)
	api.GET("/institutions/:name", s.GetInstitution)
	api.GET("/users/:id/databases", s.ListUserDatabases)
	api.GET("/databases/:category/users", s.ListDatabaseUsers)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	if !cfg.IsServe() {
		return
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

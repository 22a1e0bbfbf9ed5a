// Package server wires the HTTP handlers into a gin engine and runs it.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"smash-rewards/internal/config"
	"smash-rewards/internal/handler"
)

// Handlers holds everything the router mounts.
type Handlers struct {
	Auth     *Authenticator
	Accounts *handler.AccountHandler
	Actions  *handler.ActionHandler
	Rankings *handler.RankingHandler
	Health   *handler.HealthHandler
}

// NewRouter builds the API engine.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), RequestID(), Logger(), Metrics())

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.GET("/rankings", h.Rankings.Rankings)

	authed := api.Group("", h.Auth.RequireAuth())
	{
		authed.POST("/account", h.Accounts.Ensure)
		authed.GET("/account", h.Accounts.Profile)
		authed.GET("/account/history", h.Accounts.History)
		authed.PUT("/account/wallet", h.Accounts.BindWallet)
		authed.POST("/activate", h.Accounts.Activate)

		authed.POST("/mining", h.Actions.Mine)
		authed.POST("/ads/reward", h.Actions.AdReward)
		authed.POST("/ads/watch", h.Actions.AdWatch)
		authed.POST("/quiz", h.Actions.Quiz)
	}

	return r
}

// Server runs the HTTP API.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// New creates a Server listening on cfg.Addr.
func New(cfg *config.ServerConfig, engine *gin.Engine) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.srv.Shutdown(ctx)
}

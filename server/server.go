// Package server assembles the gateway: HTTP stack, backend client,
// session registry and the startup reconciliation job.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/etcop/copilot-gateway/ai"
	"github.com/etcop/copilot-gateway/copilot"
	"github.com/etcop/copilot-gateway/internal/metrics"
	"github.com/etcop/copilot-gateway/internal/profile"
	apiv1 "github.com/etcop/copilot-gateway/server/router/api/v1"
	"github.com/etcop/copilot-gateway/server/service/reconcile"
	"github.com/etcop/copilot-gateway/server/session"
	"github.com/etcop/copilot-gateway/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	reconciler *reconcile.Reconciler
}

func NewServer(_ context.Context, p *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status)
			return nil
		},
	}))

	client := copilot.NewClient(p)
	sessions := session.NewManager()
	exporter := metrics.NewExporter()
	titleGenerator := ai.NewTitleGenerator(p)
	if titleGenerator != nil {
		slog.Info("title generation enabled", "model", p.TitleLLMModel)
	}

	apiService := apiv1.NewAPIV1Service(p, st, client, sessions, exporter, titleGenerator)
	apiService.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	synchronizer := reconcile.NewBackendSynchronizer(client, p.Language)

	return &Server{
		Profile:    p,
		Store:      st,
		echoServer: e,
		reconciler: reconcile.NewReconciler(st, synchronizer, exporter),
	}, nil
}

// Start brings the HTTP listener up and kicks off the one-shot agent
// reconciliation. The reconciliation scan happens before the listener
// binds but its work runs in the background and never delays startup.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.reconciler.Run(ctx); err != nil {
		// A failed scan is not fatal: the gateway still serves, the
		// batch is retried on the next start.
		slog.Error("agent reconciliation scan failed", "error", err)
	}

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
	slog.Info("gateway stopped properly")
}

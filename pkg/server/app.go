package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"RoomArb/pkg/config"
	xhttp "RoomArb/pkg/http"
	applogger "RoomArb/pkg/logger"
)

// Resource is an infrastructure client closed on shutdown, in reverse order.
type Resource struct {
	Name  string
	Close func() error
}

// App encapsulates the HTTP server lifecycle and owned resources.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	registry   *prometheus.Registry
	resources  []Resource
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler, reg *prometheus.Registry, resources ...Resource) *App {
	return &App{
		cfg:       cfg,
		log:       l,
		handler:   handler,
		registry:  reg,
		resources: resources,
	}
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// liveness answers without touching dependencies; /health checks those.
func (a *App) liveness(e *echo.Echo) {
	e.GET("/livez", func(c echo.Context) error {
		return xhttp.SuccessResponse(c, map[string]string{"status": "alive", "environment": a.cfg.Environment})
	})
}

// RunContext starts the HTTP server and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(a.cfg.Server.SlowRequest),
		xhttp.WithCORS(a.cfg.Server.CORSOrigins...),
		xhttp.WithLogger(a.log),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if a.registry != nil {
		opts = append(opts, xhttp.WithRegistry(a.registry))
	}
	a.httpServer = xhttp.NewServer(xhttp.Handlers{a.handler, xhttp.RouteFunc(a.liveness)}, opts...)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("app started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown stops the HTTP server, then closes resources in reverse order.
func (a *App) Shutdown(ctx context.Context) error {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	a.Close()
	a.log.Info("shutdown complete")
	return nil
}

// Close releases resources without touching the HTTP server. Used by one-shot
// commands. The log collector drains first while its publisher is still open.
func (a *App) Close() {
	a.log.RemoveCollector()
	for i := len(a.resources) - 1; i >= 0; i-- {
		r := a.resources[i]
		start := time.Now()
		if err := r.Close(); err != nil {
			a.log.Warn("resource close error", applogger.String("resource", r.Name), applogger.Error(err))
			continue
		}
		a.log.Debug("resource closed", applogger.String("resource", r.Name), applogger.Duration("duration_ms", time.Since(start)))
	}
	a.resources = nil
}

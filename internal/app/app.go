package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"csvpulse/internal/charts"
	"csvpulse/internal/config"
	"csvpulse/internal/dataprocessing"
	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/infrastructure"
	customMiddleware "csvpulse/internal/middleware"
	"csvpulse/internal/services"
	"csvpulse/internal/session"
	handlers "csvpulse/internal/transport/http"
	ws "csvpulse/internal/websocket"
	"csvpulse/pkg/contracts"
)

const AppName = "csvpulse"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.DashboardMetrics
	Sessions      *session.Store
	WebSocketHub  *ws.Hub
	ErrorHandler  *apierrors.ErrorHandler
	Services      *ServiceContainer
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Dashboard *services.DashboardService
	Health    *services.HealthService
}

// NewApplication loads the configuration and logger from the environment
// and builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, apierrors.NewConfigError("failed to load configuration", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from cfg. It starts nothing.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: contracts.Version,
		EnableTracing:  cfg.Telemetry.TracesEnabled,
		EnableMetrics:  cfg.Telemetry.MetricsEnabled,
		SampleRatio:    1.0,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewDashboardMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	a.initializeServices()
	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices creates the session store, the pipeline and the services
func (a *Application) initializeServices() {
	cfg := a.Config
	background := context.Background()

	a.Sessions = session.NewStore(cfg.Sessions.TTL, cfg.Sessions.MaxSessions,
		session.WithObserver(func(active int) { a.Metrics.RecordSessions(background, active) }))

	pipeline := dataprocessing.NewPipeline(dataprocessing.Config{
		DefaultTopN:   cfg.Pipeline.DefaultTopN,
		PageLimit:     cfg.Pipeline.PageLimit,
		MaxPageLimit:  cfg.Pipeline.MaxPageLimit,
		MaxCategories: cfg.Pipeline.MaxCategories,
		MaxOptions:    cfg.Pipeline.MaxOptions,
	}, a.Logger)

	a.WebSocketHub = ws.NewHub(a.Logger,
		ws.WithObserver(func(active int) { a.Metrics.RecordLiveConnections(background, active) }))

	a.Services = &ServiceContainer{
		Dashboard: services.NewDashboardService(a.Sessions, pipeline, a.Logger,
			services.WithMetrics(a.Metrics),
			services.WithTracer(a.OTelProviders.Tracer),
			services.WithChartSize(charts.Size{Width: cfg.Charts.Width, Height: cfg.Charts.Height})),
		Health: services.NewHealthService(contracts.Version, a.Sessions, a.Logger),
	}

	a.Logger.Info("Services initialized",
		slog.Duration("session_ttl", cfg.Sessions.TTL),
		slog.Int("max_sessions", cfg.Sessions.MaxSessions),
		slog.Int64("max_upload_bytes", cfg.Sessions.MaxUploadBytes))
}

// setupRouter configures the HTTP router. The live route carries no request
// timeout and no compression since the connection is hijacked.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	liveHandler := handlers.NewLiveHandler(a.Services.Dashboard, a.WebSocketHub, handlers.LiveOptions{
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		MessageTimeout:  a.Config.Server.RequestTimeout,
		Client: ws.Config{
			PongWait:       a.Config.WebSocket.PongWait,
			PingPeriod:     a.Config.WebSocket.PingPeriod,
			MaxMessageSize: a.Config.WebSocket.MaxMessageSize,
		},
		Metrics: a.Metrics,
	}, a.Logger, a.ErrorHandler)
	dashboardHandler := handlers.NewDashboardHandler(a.Services.Dashboard,
		a.Config.Sessions.MaxUploadBytes, a.Logger, a.ErrorHandler)
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions/{sessionID}/live", liveHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
			r.Use(customMiddleware.Compress(5, "application/json", "text/csv"))

			healthHandler.Register(r)
			r.Mount("/", dashboardHandler.Routes())
		})
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// getCORSConfig returns the CORS configuration
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Serve runs the server on ln together with the session janitor and the
// live connection hub. It returns once ctx is done and everything has
// shut down, or when one of them fails.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "Server listening", slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.Sessions.Run(gctx, a.Config.Sessions.SweepInterval)
	})

	g.Go(func() error {
		return a.WebSocketHub.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return a.Stop(shutdownCtx)
	})

	return g.Wait()
}

// Stop gracefully stops the HTTP server and flushes telemetry. Live
// connections are closed by the hub.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down server")

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.ErrorContext(ctx, "Shutdown completed with errors", slog.String("error", err.Error()))
		return err
	}
	a.Logger.InfoContext(ctx, "Server stopped")
	return nil
}

// Run listens on the configured port and serves until SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	err = a.Serve(ctx, ln)
	if closeErr := infrastructure.CloseLogFile(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// WaitReady polls the readiness endpoint of a running server until it
// answers or ctx is done.
func WaitReady(ctx context.Context, baseURL string) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health/ready", nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"zeek-gateway/internal/config"
	"zeek-gateway/internal/models"
	"zeek-gateway/internal/provider"
	"zeek-gateway/internal/ratelimit"
	"zeek-gateway/internal/tools"
	"zeek-gateway/internal/upstream"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 90 * time.Second
	idleTimeout         = 120 * time.Second

	apiPrefix      = "/api/"
	openHealthPath = "/api/health"
)

type Server struct {
	cfg      config.Config
	registry *provider.Registry
	limiter  *ratelimit.Limiter
	client   *upstream.Client
	weather  *tools.Weather
	search   *tools.Search
	app      *echo.Echo
	address  string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, registry *provider.Registry, limiter *ratelimit.Limiter, client *upstream.Client) (*Server, error) {
	if registry == nil {
		return nil, errors.New("registry must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("limiter must not be nil")
	}
	if client == nil {
		return nil, errors.New("upstream client must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = envelopeErrorHandler

	srv := &Server{
		cfg:      cfg,
		registry: registry,
		limiter:  limiter,
		client:   client,
		weather:  tools.NewWeather(client),
		search:   tools.NewSearch(client, cfg),
		app:      e,
		address:  fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
	}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	// The UI is normally served behind a proxy; permissive CORS keeps
	// direct local access working.
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	// Auth must run before rate limiting: a rejected bearer never consumes
	// bucket capacity.
	e.Use(srv.authGate)
	e.Use(srv.rateLimit)

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address)

	go s.limiter.Run(ctx)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the configured echo instance for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/api/health", s.handleHealth)

	s.app.GET("/api/model_hub/providers", s.handleProviderCatalog)

	s.app.POST("/api/chat", s.handleChat)

	s.app.POST("/api/googleai/generate", s.handleGoogleAIGenerate)
	s.app.GET("/api/googleai/models", s.handleGoogleAIModels)
	s.app.POST("/api/openrouter/generate", s.handleOpenRouterGenerate)
	s.app.GET("/api/openrouter/models", s.handleOpenRouterModels)
	s.app.POST("/api/ollama/generate", s.handleOllamaGenerate)
	s.app.GET("/api/ollama/version", s.handleOllamaVersion)
	s.app.GET("/api/ollama/tags", s.handleOllamaTags)
	s.app.POST("/api/mini/generate", s.handleMiniGenerate)

	s.app.GET("/api/tools/weather", s.handleWeather)
	s.app.GET("/api/tools/search", s.handleSearch)

	s.registerStubRoutes()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// authGate enforces the shared bearer secret on /api/ routes, leaving
// health checks open. An empty secret disables the gate entirely.
func (s *Server) authGate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret := s.cfg.Auth.LocalAPIToken
		path := c.Request().URL.Path

		if secret != "" && strings.HasPrefix(path, apiPrefix) && path != openHealthPath {
			token := ""
			if auth := c.Request().Header.Get("Authorization"); auth != "" {
				fields := strings.Split(auth, " ")
				token = fields[len(fields)-1]
			}
			if token != secret {
				return models.Unauthorized()
			}
		}
		return next(c)
	}
}

// rateLimit admits the request against the caller's sliding-window bucket.
// Every route is accounted, health checks included.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.RealIP()
		if key == "" {
			key = "anonymous"
		}
		if !s.limiter.Allow(key) {
			return models.RateLimited()
		}
		return next(c)
	}
}

func envelopeErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		_ = c.JSON(apiErr.Status, apiErr.Envelope())
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := fmt.Sprintf("%v", httpErr.Message)
		_ = c.JSON(httpErr.Code, (&models.APIError{Code: "http_error", Message: message}).Envelope())
		return
	}

	slog.Error("unhandled request error", "err", err)
	_ = c.JSON(http.StatusInternalServerError,
		(&models.APIError{Code: "server_error", Message: "internal server error"}).Envelope())
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return models.BadRequest("request body is required")
		}
		return models.BadRequest(fmt.Sprintf("invalid JSON payload: %v", err))
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return models.BadRequest("request body must contain a single JSON object")
	}
	return nil
}

// respondUpstream mirrors an upstream reply: JSON bodies pass through
// verbatim, anything else is wrapped as {"raw": text}.
func respondUpstream(c echo.Context, resp *upstream.Response) error {
	if resp.IsJSON() {
		return c.JSONBlob(resp.Status, resp.Body)
	}
	return c.JSON(resp.Status, models.RawBody{Raw: resp.Text()})
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("zeek-gateway ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/chat")
	fmt.Println("  GET  /api/tools/weather")
	fmt.Println("  GET  /api/tools/search")
	fmt.Printf("Unified chat example:\n  curl http://%s:%d/api/chat -H 'Content-Type: application/json' -d '{\"provider\":\"ollama\",\"model\":\"llama2\",\"prompt\":\"hello\",\"base\":\"http://127.0.0.1:11434\"}'\n\n", host, port)
}

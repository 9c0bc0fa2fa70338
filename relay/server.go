// Package relay runs the local HTTP service that bridges browser
// extensions to the Mistral OCR API. Callers supply their own credential
// on every request; the relay holds no key of its own.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MikkoParkkola/MistralOCR/logging"
	"github.com/MikkoParkkola/MistralOCR/mistral"
	"github.com/MikkoParkkola/MistralOCR/usage"
)

// ServerConfig configures the relay server.
type ServerConfig struct {
	// Host to bind to (default: "127.0.0.1").
	Host string

	// Port to listen on (default: 5000).
	Port int

	// ReadTimeout for HTTP requests (default: 60s; uploads can be large).
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses (default: 120s; covers retries).
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s).
	IdleTimeout time.Duration

	// Upstream is the endpoint configuration for per-request clients.
	Upstream mistral.ClientConfig

	// Retry is the policy applied to /ocr extraction calls.
	Retry mistral.RetryConfig

	// HTTPClient is shared across per-request upstream clients.
	HTTPClient *http.Client

	// ScratchDir holds decoded uploads; empty means os.TempDir.
	ScratchDir string
}

// DefaultServerConfig returns the loopback defaults the browser extension
// expects.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         5000,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		Upstream:     mistral.DefaultClientConfig(),
		Retry:        mistral.DefaultRetryConfig(),
	}
}

// Server is the relay organism: an http.Server plus ServeMux wrapped by
// CORS and request-logging middleware.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	config     ServerConfig
	logger     *logging.Logger
	ledger     *usage.Ledger
}

// NewServer wires the relay's routes and middleware. The ledger is
// optional; pass nil to disable usage recording.
func NewServer(config ServerConfig, logger *logging.Logger, ledger *usage.Ledger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("relay: logger is required")
	}
	defaults := DefaultServerConfig()
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.Upstream.BaseURL == "" {
		config.Upstream = defaults.Upstream
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: config,
		logger: logger,
		ledger: ledger,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.rootHandler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/ocr", s.handleOCR)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/v1/", s.handleProxy)
}

// rootHandler wraps the mux with middleware. CORS runs outermost so every
// response carries the CORS headers; preflights short-circuit there and
// never reach the logging layer.
func (s *Server) rootHandler() http.Handler {
	var handler http.Handler = s.mux
	handler = loggingMiddleware(s.logger, handler)
	handler = corsMiddleware(handler)
	return handler
}

// Addr returns the address the server binds to.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler exposes the fully wrapped handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests and blocks until the server is
// shut down.
func (s *Server) Start() error {
	s.logger.Info("relay server starting",
		zap.String("addr", s.httpServer.Addr),
		zap.String("upstream", s.config.Upstream.BaseURL),
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay: http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("relay server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("relay: shutdown error: %w", err)
	}
	return nil
}

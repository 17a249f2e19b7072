package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/annihilator/internal/shared"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// Opts configures a [Server].
type Opts struct {
	Addr           string
	ProcessingPath string
	DownloadPath   string
	ResultFilename string
	StepDelay      time.Duration // Pause between streamed milestones
	ResultTTL      time.Duration // How long processed results stay downloadable
	RateLimit      float64       // Requests per second per client; <= 0 disables limiting
	Burst          int
	Debug          bool
	Logger         *log.Logger
}

// Server is the local stand-in for the processing API.
type Server struct {
	opts     Opts
	logger   *log.Logger
	results  *ttlworker.Cache[string, []byte]
	limiters *ttlworker.Cache[string, *rate.Limiter]
	engine   *gin.Engine

	mu     sync.Mutex
	server *http.Server
}

// New creates a Server with routes registered.
func New(opts Opts) *Server {
	defaults := shared.DefaultConfig()
	if opts.ProcessingPath == "" {
		opts.ProcessingPath = defaults.API.ProcessingPath
	}
	if opts.DownloadPath == "" {
		opts.DownloadPath = defaults.API.DownloadPath
	}
	if opts.ResultFilename == "" {
		opts.ResultFilename = defaults.API.ResultFilename
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 30 * time.Minute
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	s := &Server{
		opts:     opts,
		logger:   shared.WithLogger(opts.Logger, "component", "devserver"),
		results:  ttlworker.NewCache[string, []byte](opts.ResultTTL),
		limiters: ttlworker.NewCache[string, *rate.Limiter](limiterIdleTTL),
	}
	s.engine = s.setupRoutes()
	return s
}

// NewFromConfig creates a Server from the api and devserver sections of cfg.
func NewFromConfig(cfg *shared.Config, debug bool, logger *log.Logger) *Server {
	return New(Opts{
		Addr:           cfg.DevServer.Addr(),
		ProcessingPath: cfg.API.ProcessingPath,
		DownloadPath:   cfg.API.DownloadPath,
		ResultFilename: cfg.API.ResultFilename,
		StepDelay:      time.Duration(cfg.DevServer.StepDelayMS) * time.Millisecond,
		ResultTTL:      time.Duration(cfg.DevServer.ResultTTLMinutes) * time.Minute,
		RateLimit:      cfg.DevServer.RateLimit,
		Burst:          cfg.DevServer.Burst,
		Debug:          debug,
		Logger:         logger,
	})
}

func (s *Server) setupRoutes() *gin.Engine {
	if s.opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(s.logger))
	engine.Use(RateLimiter(s.limiters, s.opts.RateLimit, s.opts.Burst))

	engine.POST(s.opts.ProcessingPath, s.handleProcess)
	engine.GET(s.opts.DownloadPath, s.handleDownload)

	return engine
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("starting dev server", "addr", fmt.Sprintf("http://%s", s.opts.Addr), "processing", s.opts.ProcessingPath, "download", s.opts.DownloadPath)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dev server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func resultKey(token, filename string) string {
	return token + "/" + filename
}

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"riskgate/internal/blackout"
	"riskgate/internal/engine"
	"riskgate/internal/metrics"
)

// DecisionReader serves the recent decision history, newest first.
type DecisionReader interface {
	Recent(ctx context.Context, limit int) ([]engine.Decision, error)
}

type Options struct {
	Addr       string
	AdminToken string
	WebhookRPS float64
	Engine     *engine.Engine
	Blackouts  *blackout.Store
	Metrics    *metrics.Registry
	Decisions  DecisionReader
}

// Server exposes the webhook, the admin switch, health and metrics.
type Server struct {
	addr       string
	router     *gin.Engine
	engine     *engine.Engine
	blackouts  *blackout.Store
	decisions  DecisionReader
	adminToken string
	now        func() time.Time
}

func NewServer(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.WebhookRPS <= 0 {
		opts.WebhookRPS = 20
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Blackouts == nil {
		opts.Blackouts = blackout.NewStore()
	}
	s := &Server{
		addr:       opts.Addr,
		engine:     opts.Engine,
		blackouts:  opts.Blackouts,
		decisions:  opts.Decisions,
		adminToken: opts.AdminToken,
		now:        time.Now,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	burst := int(opts.WebhookRPS)
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(opts.WebhookRPS), burst)

	router.GET("/", s.handleHome)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics.Gatherer(), promhttp.HandlerOpts{})))
	router.POST("/webhook/tv", rateLimit(limiter), s.handleWebhook)
	router.POST("/enable", s.requireAdmin(), s.handleSwitch(true))
	router.POST("/disable", s.requireAdmin(), s.handleSwitch(false))
	if s.decisions != nil {
		router.GET("/decisions", s.handleDecisions)
	}

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("http server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"dur", time.Since(start),
		)
	}
}

func rateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "reason": "rate_limited"})
			return
		}
		c.Next()
	}
}

// Package server is the browser-facing HTTP surface: it owns the gateway
// sessions and runs a lifecycle manager, an assignment protocol and a list
// cache for each of them.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-fleet-collect/events"
	"github.com/jrsteele09/go-fleet-collect/internal/config"
	"github.com/jrsteele09/go-fleet-collect/internal/metrics"
	"github.com/jrsteele09/go-fleet-collect/scheduler"
	"github.com/jrsteele09/go-fleet-collect/sessions"
	"github.com/jrsteele09/go-fleet-collect/token"
	"github.com/jrsteele09/go-fleet-collect/token/refresh"
	"github.com/jrsteele09/go-fleet-collect/upstream"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	handler  http.Handler
	routes   []string
	config   config.Config
	upstream *upstream.Client
	sessions sessions.Repo
	tokens   *token.SessionTokens
	registry *registry
	notices  *noticeBoard
	bus      *events.Bus
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
	sched    scheduler.Scheduler
	sleep    refresh.SleepFunc
}

type Option func(*Server)

// WithUpstream replaces the client built from the configured base URL.
func WithUpstream(c *upstream.Client) Option {
	return func(s *Server) {
		s.upstream = c
	}
}

func WithSessionRepo(repo sessions.Repo) Option {
	return func(s *Server) {
		s.sessions = repo
	}
}

// WithScheduler sets the scheduler every session manager runs its timers on.
func WithScheduler(sched scheduler.Scheduler) Option {
	return func(s *Server) {
		s.sched = sched
	}
}

// WithRefreshSleep replaces the backoff wait of every session manager.
func WithRefreshSleep(sleep refresh.SleepFunc) Option {
	return func(s *Server) {
		s.sleep = sleep
	}
}

func New(cfg config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		sessions: sessions.NewInMemoryRepo(),
		registry: newRegistry(),
		notices:  newNoticeBoard(),
		bus:      events.NewBus(),
		promReg:  prometheus.NewRegistry(),
		sched:    scheduler.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.upstream == nil {
		client, err := upstream.New(cfg.GetUpstreamBaseURL(),
			upstream.WithTimeout(cfg.GetUpstreamTimeout()),
			upstream.WithLogger(log.Logger))
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to create upstream client: %w", err)
		}
		s.upstream = client
	}

	signer, err := token.NewHMACSigner(cfg.GetSessionSecret())
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create session signer: %w", err)
	}
	s.tokens = token.NewSessionTokens(signer, token.WithNowFunc(s.sched.Now))

	s.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = metrics.New(s.promReg)

	s.bus.SubscribeAll(s.onSessionEvent)

	s.initRoutes()
	s.logRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.GetAllowedOrigins().List(),
		AllowedMethods:   cfg.GetAllowedMethods(),
		AllowedHeaders:   cfg.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	}).Handler(s.mux)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Shutdown stops every session manager without running logout handlers.
func (s *Server) Shutdown() {
	entries := s.registry.drain()
	for _, e := range entries {
		e.manager.Stop()
		e.catalog.Close()
	}
	s.metrics.SetActiveSessions(0)
	log.Info().Int("sessions", len(entries)).Msg("session managers stopped")
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}

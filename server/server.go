package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-finadmin-client/internal/config"
	"github.com/jrsteele09/go-finadmin-client/server/refreshstore"
	"github.com/jrsteele09/go-finadmin-client/token/jwt"
	"github.com/jrsteele09/go-finadmin-client/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Server is the development backend the admin client talks to: sign-in, refresh token
// rotation and a handful of admin resource endpoints.
type Server struct {
	env        string // Environment (e.g., "DEV", "production")
	router     *mux.Router
	routes     []string
	config     config.Config
	users      users.UserRepo
	issuer     *jwt.Issuer
	rsaSigner  *jwt.RSASigner // nil when signing with a shared secret
	refresh    *refreshstore.Manager
	limiter    *ipLimiter
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	resources  map[string][]map[string]any
	resourceMu sync.RWMutex
}

type Option func(*Server)

// WithIssuer replaces the access token issuer built from the config.
func WithIssuer(issuer *jwt.Issuer) Option {
	return func(s *Server) {
		s.issuer = issuer
	}
}

// WithRefreshManager replaces the refresh token manager built from the config.
func WithRefreshManager(m *refreshstore.Manager) Option {
	return func(s *Server) {
		s.refresh = m
	}
}

func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

func New(cfg config.Config, options ...Option) (*Server, error) {
	s := &Server{
		env:       cfg.GetEnv(),
		router:    mux.NewRouter(),
		config:    cfg,
		users:     users.NewInMemoryUserRepo(),
		registry:  prometheus.NewRegistry(),
		resources: make(map[string][]map[string]any),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.issuer == nil {
		signer, err := s.newSigner()
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to create token signer: %w", err)
		}
		s.issuer = jwt.NewIssuer(signer, jwt.WithExpiry(cfg.GetAccessTokenMaxAge()))
	}
	if s.refresh == nil {
		s.refresh = refreshstore.NewManager(refreshstore.NewInMemoryRepo(), refreshstore.WithExpiry(cfg.GetRefreshTokenMaxAge()))
	}
	if perSecond := cfg.GetServerRateLimit(); perSecond > 0 {
		s.limiter = newIPLimiter(perSecond, max(1, int(perSecond)))
	}

	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finadmin",
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Requests handled by route and status.",
	}, []string{"route", "status"})
	s.registry.MustRegister(s.requests)

	if err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) newSigner() (jwt.Signer, error) {
	if secret := s.config.GetSigningSecret(); secret != "" {
		return jwt.NewHMACSigner(secret), nil
	}
	signer, err := jwt.GenerateRSASigner("finadmin-dev")
	if err != nil {
		return nil, err
	}
	s.rsaSigner = signer
	return signer, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Requests returns the per-route request counter.
func (s *Server) Requests() *prometheus.CounterVec {
	return s.requests
}

func (s *Server) RegisterRouteFunc(method, path string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+path)
	s.router.HandleFunc(path, handler).Methods(method)
}

func (s *Server) RegisterRouteHandler(path string, handler http.Handler) {
	s.routes = append(s.routes, path)
	s.router.Handle(path, handler)
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
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

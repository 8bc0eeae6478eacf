package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jrsteele09/go-finadmin-client/apiclient"
	"github.com/jrsteele09/go-finadmin-client/cache"
	"github.com/jrsteele09/go-finadmin-client/internal/config"
	"github.com/jrsteele09/go-finadmin-client/internal/logging"
	"github.com/jrsteele09/go-finadmin-client/internal/obs"
	"github.com/jrsteele09/go-finadmin-client/sessions"
	"github.com/jrsteele09/go-finadmin-client/token"
)

var (
	cliMu  sync.RWMutex
	cliOpt *Options
	cliOut io.Writer = os.Stdout
	cliIn  io.Reader = os.Stdin
)

// app is everything a command needs, built from configuration after flag parsing.
type app struct {
	cfg        config.Config
	tokens     *token.FileStore
	users      *sessions.FileUserStore
	client     *apiclient.Client
	ai         *apiclient.Client // nil when AI_BASE_URL is not set
	controller *sessions.Controller
	cache      *cache.RequestCache
	out        io.Writer
	in         io.Reader
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

func newApp(cfg config.Config, out io.Writer, in io.Reader) (*app, error) {
	if cfg.GetTokenKey() == "" {
		return nil, fmt.Errorf("TOKEN_KEY must be set to encrypt the token file")
	}
	tokens, err := token.NewFileStore(cfg.GetTokenFile(), cfg.GetTokenKey())
	if err != nil {
		return nil, err
	}
	userStore := sessions.NewFileUserStore(cfg.GetUserFile())
	metrics := obs.NewMetrics(nil)

	client, err := apiclient.NewFromConfig(cfg, tokens,
		apiclient.WithMetrics(metrics),
		apiclient.WithMaxAges(cfg.GetAccessTokenMaxAge(), cfg.GetRefreshTokenMaxAge()))
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		tokens: tokens,
		users:  userStore,
		client: client,
		cache:  cache.New(cache.WithMetrics(metrics)),
		out:    out,
		in:     in,
	}
	if cfg.GetAIBaseURL() != "" {
		if a.ai, err = apiclient.NewAIClient(cfg, client); err != nil {
			return nil, err
		}
	}
	a.controller = sessions.NewController(tokens, userStore, sessions.NopBus{}, client, client.Coordinator(),
		sessions.WithMaxAges(cfg.GetAccessTokenMaxAge(), cfg.GetRefreshTokenMaxAge()))
	return a, nil
}

func (a *app) Close() {
	a.controller.Close()
}

// withApp builds the app from the parsed global options and runs fn with a context
// cancelled on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cliMu.RLock()
	opts, out, in := cliOpt, cliOut, cliIn
	cliMu.RUnlock()

	var path string
	if opts != nil {
		path = opts.Config
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	logging.Setup(cfg.GetLogLevel(), cfg.GetEnv())

	a, err := newApp(cfg, out, in)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

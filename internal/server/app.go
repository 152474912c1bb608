// Package server wires the chat server together: credential store, session
// registry, the chat listener and the optional admin and ops endpoints,
// and runs them until a signal arrives.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/chat"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
	"github.com/dmitrijs2005/gophchat/internal/server/credentials"
	"github.com/dmitrijs2005/gophchat/internal/server/metrics"
	"github.com/dmitrijs2005/gophchat/internal/server/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/gophchat/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    credentials.Store
	registry *registry.Registry
	promReg  *prometheus.Registry
	metrics  *metrics.Collector
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	store, err := credentials.Open(ctx, c.CredentialsBackend, c.CredentialsFile, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("credentials init error: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		registry: registry.New(c.BlockDuration),
		promReg:  promReg,
		metrics:  metrics.NewCollector(promReg),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) chatAddr() string {
	return net.JoinHostPort(app.config.Host, strconv.Itoa(app.config.Port))
}

func (app *App) startChatServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := chat.NewServer(app.chatAddr(), app.registry, app.store, app.metrics, app.logger, chat.Options{
		SessionTimeout: app.config.SessionTimeout,
		CommandRate:    app.config.CommandRate,
		CommandBurst:   app.config.CommandBurst,
	})

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.AdminAddr, app.logger, app.registry, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startOpsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	health := func() map[string]any {
		st := app.registry.Stats()
		return map[string]any{"active_sessions": st.ActiveSessions}
	}
	s := metrics.NewServer(app.config.MetricsAddr, metrics.NewRouter(app.promReg, health), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "address", app.chatAddr(), "credentials", app.config.CredentialsBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startChatServer(ctx, cancelFunc)
	}()

	if app.config.AdminAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startOpsServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(context.Background(), "closing credentials store", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}

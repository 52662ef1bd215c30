package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet_session/internal/infrastructure/metrics"
	"wallet_session/internal/infrastructure/restapi"
	"wallet_session/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wallet session HTTP service",
	Example: `  walletsession serve
  walletsession serve --config /etc/walletsession/config.yml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLogger, err := logger.InitZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Wallet session service starting", "config", configPath, "endpoint", cfg.Provider.Endpoint)

	sessionMetrics := metrics.NewSessionMetrics()
	s := openSession(ctx, cfg, sessionMetrics)
	defer s.Close()

	if cfg.Session.SilentReconnect {
		s.store.SilentReconnect(ctx)
	}

	binding, err := s.store.Bind()
	if err != nil {
		logger.Warn("Session store runs without wallet events", "error", err)
	} else {
		defer binding.Unsubscribe()
	}

	appLogger := logger.Named("restapi")
	handler := restapi.NewSessionHandler(s.store, s.networks, appLogger)
	router := restapi.SetupRouter(handler, restapi.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        sessionMetrics.Handler(),
		Logger:         appLogger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  seconds(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout: seconds(cfg.Server.WriteTimeoutSeconds),
		// запросы наследуют ctx, иначе SSE-стримы держат Shutdown до таймаута
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.rpc != nil {
		g.Go(func() error {
			return s.rpc.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Wallet session service stopped with error", "error", err)
		return err
	}
	logger.Info("Server exiting")
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/efreitasn/tradingrelay/internal/config"
	"github.com/efreitasn/tradingrelay/internal/engine"
	"github.com/efreitasn/tradingrelay/internal/feed"
	"github.com/efreitasn/tradingrelay/internal/handler"
	"github.com/efreitasn/tradingrelay/internal/service"
	"github.com/efreitasn/tradingrelay/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	envFile := flag.String("env-file", ".env", "Dotenv file loaded before reading the environment")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8000"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		slog.Error("failed to load env file", slog.String("path", *envFile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// State.
	eng := engine.NewEngine(store.NewMarketStore(), store.NewSessionStore(), cfg.StartingCash)

	// Services and the feed gateway (the gateway is both the market
	// service's source and the session service's upstream relay).
	fanout := service.NewBroadcaster(eng, cfg.SendQueueSize, logger)
	marketSvc := service.NewMarketService(eng, fanout)
	gateway := feed.NewGateway(feed.Config{
		URL:            cfg.FeedURL,
		ReconnectDelay: cfg.ReconnectDelay,
		ReadTimeout:    cfg.FeedReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}, marketSvc, logger)
	sessionSvc := service.NewSessionService(eng, fanout, gateway, logger)

	// Router.
	router := handler.NewRouter(sessionSvc, marketSvc, gateway, cfg.WriteTimeout, cfg.SessionTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.Run(ctx)
	}()

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("feed_url", cfg.FeedURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Graceful shutdown: stop accepting requests, then close every session
	// (Shutdown does not track upgraded connections), then wait for the feed.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	fanout.CloseAll()
	wg.Wait()

	logger.Info("server stopped")
}

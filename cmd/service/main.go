package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-watch-service/internal/client"
	"github.com/kjstillabower/weather-watch-service/internal/config"
	httphandler "github.com/kjstillabower/weather-watch-service/internal/http"
	"github.com/kjstillabower/weather-watch-service/internal/lifecycle"
	"github.com/kjstillabower/weather-watch-service/internal/observability"
	"github.com/kjstillabower/weather-watch-service/internal/service"
)

func main() {
	once := flag.String("once", "", "fetch one report for the given location, print it as JSON and exit")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	weatherService := service.NewWeatherService(weatherClient, cfg.RetrySpacing, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once != "" {
		runOnce(ctx, weatherService, cfg, *once, logger)
		return
	}
	runServe(ctx, weatherService, cfg, logger)
}

// runOnce fetches a single report through the one-shot facade and prints it.
// The internal poller retries until success; Ctrl-C abandons the wait.
func runOnce(ctx context.Context, svc *service.WeatherService, cfg *config.Config, location string, logger *zap.Logger) {
	report, err := svc.CurrentWeather(ctx, client.Query{
		Location: location,
		Units:    cfg.Units,
		Language: cfg.Language,
	})
	if err != nil {
		logger.Fatal("fetch once", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("encode report", zap.Error(err))
	}
}

// runServe starts one background watcher per configured location and serves
// their mailboxes over HTTP until a shutdown signal arrives.
func runServe(ctx context.Context, svc *service.WeatherService, cfg *config.Config, logger *zap.Logger) {
	if len(cfg.Locations) == 0 {
		logger.Fatal("no locations configured for serve mode")
	}

	watchers := make(map[string]httphandler.Watcher, len(cfg.Locations))
	for _, location := range cfg.Locations {
		q := client.Query{Location: location, Units: cfg.Units, Language: cfg.Language}
		poller := svc.Watch(ctx, q, cfg.PollInterval)
		watchers[httphandler.NormalizeLocation(location)] = poller
		logger.Info("watcher started",
			zap.String("location", location),
			zap.Duration("interval", cfg.PollInterval))
	}

	handler := httphandler.NewHandler(watchers, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.Use(httphandler.RateLimitMiddleware(limiter))
	weatherRouter.HandleFunc("/{location}", handler.GetUpdate).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	// Watchers share the signal context; ctx.Done above already asked every
	// poll loop to exit before its next tick.
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/papertrade/brokersim/config"
	"github.com/papertrade/brokersim/data"
	"github.com/papertrade/brokersim/data/cache"
	repoPostgres "github.com/papertrade/brokersim/data/repository/postgres"
	"github.com/papertrade/brokersim/internal/externalApi/marketdataApi"
	"github.com/papertrade/brokersim/internal/httpserver"
	"github.com/papertrade/brokersim/internal/reportGenerator/xlsxGenerator"
	"github.com/papertrade/brokersim/internal/scheduler"
	"github.com/papertrade/brokersim/internal/service/brokerService"
	"github.com/papertrade/brokersim/internal/transport/httpapi"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := repoPostgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	marketdataApiClient := marketdataApi.New(cfg)

	brokerSrv := brokerService.New(pgRepo, redisCache, marketdataApiClient)

	reportGenerator := xlsxGenerator.New()

	sched := scheduler.New()
	sched.NewIntervalJob("warm quote cache", brokerSrv.WarmQuoteCache, cfg.Jobs.WarmQuoteCacheInterval, true)
	sched.Start()
	defer sched.Stop()

	controller := httpapi.NewController(brokerSrv, reportGenerator)

	srv := httpserver.New(cfg, controller.InitRoutes())
	srv.Start()
	defer srv.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}

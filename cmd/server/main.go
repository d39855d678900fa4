package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"article-companion-backend/internal/dialogue"
	"article-companion-backend/internal/server"
	"article-companion-backend/internal/storage"

	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric/global"
	export "go.opentelemetry.io/otel/sdk/export/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregator/histogram"
	controller "go.opentelemetry.io/otel/sdk/metric/controller/basic"
	processor "go.opentelemetry.io/otel/sdk/metric/processor/basic"
	selector "go.opentelemetry.io/otel/sdk/metric/selector/simple"
	"go.uber.org/zap"
)

func main() {
	// .env file is optional, real environments set variables directly
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	cfg := server.EnvConfig{}
	if err := env.Parse(&cfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}

	storeCfg := storage.Config{}
	if err := env.Parse(&storeCfg); err != nil {
		sugar.Fatalf("Cannot parse storage env config: %v", err)
	}

	dialogueCfg := dialogue.Config{}
	if err := env.Parse(&dialogueCfg); err != nil {
		sugar.Fatalf("Cannot parse dialogue env config: %v", err)
	}

	promCfg := prometheus.Config{}
	c := controller.New(
		processor.New(
			selector.NewWithHistogramDistribution(
				histogram.WithExplicitBoundaries(promCfg.DefaultHistogramBoundaries),
			),
			export.CumulativeExportKindSelector(),
			processor.WithMemory(true),
		),
	)
	exporter, err := prometheus.New(promCfg, c)
	if err != nil {
		sugar.Fatalf("Cannot initialize prometheus exporter: %v", err)
	}
	global.SetMeterProvider(exporter.MeterProvider())

	diagRouter := chi.NewRouter()
	diagRouter.Get("/metrics", exporter.ServeHTTP)
	go func() {
		addr := cfg.Host + ":" + strconv.FormatUint(uint64(cfg.DiagPort), 10)
		sugar.Infof("Starting diag server on %s", addr)
		if err := http.ListenAndServe(addr, diagRouter); err != nil {
			sugar.Errorf("diag server: %v", err)
		}
	}()

	store, err := storage.NewStore(context.Background(), sugar, storeCfg, storage.ConnectionTimeout(30*time.Second))
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	client := dialogue.NewClient(sugar, dialogueCfg)

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg),
		server.ReadTimeout(5 * time.Second),
	}

	srv, err := server.NewServer(sugar, store, client, serverOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}

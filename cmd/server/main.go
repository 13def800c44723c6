// Command server runs the gatehouse visitor API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"gatehouse/internal/config"
	"gatehouse/internal/observability"
	"gatehouse/internal/server"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 10 * time.Second

// @title Gatehouse API
// @version 1.0
// @description Visitor access for gated societies: arrivals, resident permission, pre-approval, QR check-in and live updates.

// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	stopTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "gatehouse-api",
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- srv.Start() }()

	select {
	case err := <-served:
		if err != nil {
			log.Fatalf("server stopped: %v", err)
		}
		return
	case <-ctx.Done():
	}

	log.Printf("gatehouse %s shutting down", version)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := <-served; err != nil {
		log.Printf("listener: %v", err)
	}
	if err := stopTracing(shutdownCtx); err != nil {
		log.Printf("flush traces: %v", err)
	}
}

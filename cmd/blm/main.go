// Command blm runs the Bot Lifecycle Manager: the control plane that
// admits bot requests, provisions worker containers, and reconciles their
// state against the State Store Gateway.
package main

import (
	"context"
	stdsql "database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/botlifecycle/pkg/admission"
	"github.com/codeready-toolchain/botlifecycle/pkg/api"
	"github.com/codeready-toolchain/botlifecycle/pkg/bus"
	"github.com/codeready-toolchain/botlifecycle/pkg/callback"
	"github.com/codeready-toolchain/botlifecycle/pkg/config"
	"github.com/codeready-toolchain/botlifecycle/pkg/lifecycle"
	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator"
	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator/cluster"
	"github.com/codeready-toolchain/botlifecycle/pkg/orchestrator/docker"
	"github.com/codeready-toolchain/botlifecycle/pkg/reaper"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
	"github.com/codeready-toolchain/botlifecycle/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	yamlPath := filepath.Join(*configDir, "blm.yaml")
	if _, err := os.Stat(yamlPath); err != nil {
		yamlPath = ""
	}

	cfg, err := config.Load(yamlPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	log.Printf("Starting %s %s", version.AppName, version.Full())
	log.Printf("HTTP Port: %s", cfg.HTTPPort)
	log.Printf("Orchestrator backend: %s", cfg.OrchKind)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreURL, store.Config{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()
	log.Println("Connected to the State Store Gateway")

	orch, err := newOrchestrator(cfg.OrchKind)
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator backend %q: %v", cfg.OrchKind, err)
	}

	busDB := st.DB()
	if cfg.BusURL != "" && cfg.BusURL != cfg.StoreURL {
		db, err := stdsql.Open("pgx", cfg.BusURL)
		if err != nil {
			log.Fatalf("Failed to open command bus connection: %v", err)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("Failed to ping command bus connection: %v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("Error closing command bus connection: %v", err)
			}
		}()
		busDB = db
		log.Println("Command bus using dedicated BUS_URL connection pool")
	}
	cmdBus := bus.NewPostgresBus(busDB)
	adm := admission.New(st, cfg.AllowedPlatformHosts)
	coord := lifecycle.New(st, adm, orch, cmdBus, instanceID(), cfg.BotImage, cfg.StartRPCTimeout)
	callbacks := callback.New(st)

	rpr := reaper.New(st, orch, cfg.Reaper, instanceID())
	go rpr.Run(ctx)
	log.Println("Reaper started")

	server := api.NewServer(st, coord, callbacks, rpr, string(cfg.OrchKind), cfg.CallbackBaseURL)
	server.Engine().GET("/metrics", gin.WrapH(promhttp.Handler()))

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := server.Start(":" + cfg.HTTPPort); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-errCh:
		log.Printf("HTTP server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

// newOrchestrator selects the Container Orchestrator Adapter backend.
func newOrchestrator(kind config.OrchestratorKind) (orchestrator.Orchestrator, error) {
	switch kind {
	case config.OrchestratorCluster:
		return orchestrator.Instrument(cluster.New()), nil
	case config.OrchestratorLocal, "":
		backend, err := docker.New()
		if err != nil {
			return nil, err
		}
		return orchestrator.Instrument(backend), nil
	default:
		return nil, errors.New("unrecognized ORCH_KIND: " + string(kind))
	}
}

// instanceID identifies this BLM process for owner_instance_id bookkeeping,
// falling back to the hostname when INSTANCE_ID is unset.
func instanceID() string {
	if v := os.Getenv("INSTANCE_ID"); v != "" {
		return v
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "blm-unknown"
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/gatewatch-systems/gatewatch/internal/auth"
	"github.com/gatewatch-systems/gatewatch/internal/bans"
	"github.com/gatewatch-systems/gatewatch/internal/config"
	"github.com/gatewatch-systems/gatewatch/internal/geo"
	"github.com/gatewatch-systems/gatewatch/internal/handlers"
	"github.com/gatewatch-systems/gatewatch/internal/ingest"
	"github.com/gatewatch-systems/gatewatch/internal/logging"
	"github.com/gatewatch-systems/gatewatch/internal/messaging"
	"github.com/gatewatch-systems/gatewatch/internal/query"
	"github.com/gatewatch-systems/gatewatch/internal/repository"
	"github.com/gatewatch-systems/gatewatch/internal/server"
	"github.com/gatewatch-systems/gatewatch/internal/service"
	"github.com/gatewatch-systems/gatewatch/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	migrationsPath := flag.String("migrations", "migrations", "path to SQL migrations")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With("service", "gatewatch")
	logging.SetDefault(logger)

	slog.Info("Starting gatewatch engine",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("database_backend", cfg.Database.Backend),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Event store backend
	var events repository.EventStore
	switch cfg.Database.Backend {
	case "postgres":
		if err := runMigrations(*migrationsPath, cfg.Database.Postgres.ConnString()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		pg, err := repository.NewPostgresStore(rootCtx, cfg.Database.Postgres.ConnString())
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		events = pg
		log.Printf("Event archive: postgres (%s:%d/%s)",
			cfg.Database.Postgres.Host, cfg.Database.Postgres.Port, cfg.Database.Postgres.Database)
	case "memory", "":
		events = repository.NewInMemoryStore(cfg.Events.MaxEvents)
		log.Printf("Event archive: in-memory (max %d events)", cfg.Events.MaxEvents)
	default:
		log.Fatalf("Unknown database backend: %s (supported: memory, postgres)", cfg.Database.Backend)
	}
	defer events.Close()

	// Geo enrichment
	var resolver geo.Resolver
	if cfg.Geo.Enabled {
		resolver = geo.NewHTTPResolver(cfg.Geo.URL, cfg.Geo.Timeout)
		if cfg.Redis.Enabled {
			opts, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				log.Printf("WARNING: Invalid Redis URL, geo cache disabled: %v", err)
			} else {
				resolver = geo.NewCachedResolver(resolver, redis.NewClient(opts), cfg.Geo.CacheTTL)
				log.Printf("Geo cache enabled: %s (TTL %s)", cfg.Redis.URL, cfg.Geo.CacheTTL)
			}
		}
	} else {
		log.Println("Geo enrichment disabled")
	}

	// Core engine state
	store := stats.NewStore(stats.Config{
		BucketCount:  cfg.Stats.BucketCount,
		BucketSize:   cfg.Stats.BucketSize,
		RecentWindow: cfg.Stats.RecentWindow,
		TopCountries: cfg.Stats.TopCountries,
	})
	registry := bans.NewRegistry(bans.Config{
		DefaultTTL: cfg.Bans.DefaultTTL,
		AuditSize:  cfg.Bans.AuditSize,
	})

	rules, err := loadRules(cfg)
	if err != nil {
		log.Fatalf("Failed to load ban rules: %v", err)
	}
	for _, r := range rules {
		log.Printf("Ban rule loaded: %q (threshold %d, window %s, min severity %d)",
			r.Name, r.Threshold, r.Window, r.MinSeverity)
	}

	lastID, err := events.LastID(rootCtx)
	if err != nil {
		log.Fatalf("Failed to read last event ID: %v", err)
	}

	ingestor := ingest.NewIngestor(ingest.Config{
		Store:      store,
		Events:     events,
		Registry:   registry,
		Resolver:   resolver,
		Evaluator:  ingest.NewRuleEvaluator(rules),
		GeoTimeout: cfg.Geo.Timeout,
		Logger:     logger,
		StartID:    lastID,
	})

	// NATS: sensor intake and ban-action publishing
	if cfg.NATS.Enabled {
		nc, err := messaging.Connect(cfg.NATS.URL, logger)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer nc.Close()

		js, err := messaging.SetupJetStream(nc)
		if err != nil {
			log.Fatalf("Failed to set up JetStream: %v", err)
		}

		registry.SetNotifier(messaging.NewBanPublisher(js, logger))

		consumer := messaging.NewConsumer(js, ingestor, logger)
		if err := consumer.Start(rootCtx); err != nil {
			log.Fatalf("Failed to start sensor consumer: %v", err)
		}
		defer consumer.Close()
		log.Printf("Sensor intake enabled: %s", cfg.NATS.URL)
	} else {
		log.Println("NATS disabled - sensor intake over messaging not available")
	}

	// Expiry reaper
	reaper := bans.NewReaper(registry, cfg.Bans.SweepInterval, logger)
	if err := reaper.Start(rootCtx); err != nil {
		log.Fatalf("Failed to start reaper: %v", err)
	}
	defer reaper.Stop()

	// Event retention pruner
	go pruneLoop(rootCtx, events, cfg.Events.MaxAge, cfg.Events.PruneInterval, logger)

	// HTTP surface
	svc := service.NewService(store, registry)
	h := handlers.NewHandler(svc, query.NewService(events), logger)
	authn := auth.NewMiddleware(cfg.Auth.JWTSecret)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h, authn),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("gatewatch engine listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}

// loadRules combines the built-in default rule from config with any yaml rule
// files in the rules directory.
func loadRules(cfg *config.Config) ([]ingest.Rule, error) {
	rules := []ingest.Rule{{
		Name:        "default-threshold",
		Threshold:   cfg.Rules.Threshold,
		Window:      cfg.Rules.Window,
		MinSeverity: cfg.Rules.MinSeverity,
		BanTTL:      cfg.Rules.BanTTL,
	}}

	loaded, err := ingest.LoadRules(cfg.Rules.Dir)
	if err != nil {
		return nil, err
	}
	return append(rules, loaded...), nil
}

func pruneLoop(ctx context.Context, events repository.EventStore, maxAge, interval time.Duration, logger *logging.Logger) {
	if maxAge <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := events.Prune(ctx, time.Now().Add(-maxAge))
			if err != nil {
				logger.Error("event retention prune failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("pruned aged events", "count", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

func runMigrations(path, connString string) error {
	m, err := migrate.New("file://"+path, connString)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

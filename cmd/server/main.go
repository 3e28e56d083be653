package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"entrypass/internal/audit"
	"entrypass/internal/completion"
	entrystore "entrypass/internal/entry/store"
	entrymemory "entrypass/internal/entry/store/memory"
	entrypostgres "entrypass/internal/entry/store/postgres"
	formhandler "entrypass/internal/form/handler"
	formservice "entrypass/internal/form/service"
	interactionsvc "entrypass/internal/interaction/service"
	interactionmemory "entrypass/internal/interaction/store/memory"
	interactionredis "entrypass/internal/interaction/store/redis"
	"entrypass/internal/persistence"
	"entrypass/internal/platform/config"
	"entrypass/internal/platform/httpserver"
	"entrypass/internal/platform/logger"
	"entrypass/internal/platform/metrics"
	platformredis "entrypass/internal/platform/redis"
	"entrypass/internal/token"
	httptransport "entrypass/internal/transport/http"
	"entrypass/internal/validation"
)

// main wires the backing stores, the engine services and the HTTP surface.
// Every external dependency is optional: without Redis, Postgres or Kafka
// the engine runs fully in memory, which is also the local dev setup.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []httptransport.NamedChecker

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks = append(checks, httptransport.NamedChecker{Name: "redis", Checker: redisClient})
		log.Info("redis connected")
	}

	var (
		pool  *pgxpool.Pool
		sqlDB *sql.DB
	)
	if cfg.Postgres.DSN != "" {
		pool, sqlDB, err = openPostgres(ctx, cfg.Postgres)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		defer sqlDB.Close()
		checks = append(checks, httptransport.NamedChecker{Name: "postgres", Checker: pgHealth{pool}})
		log.Info("postgres connected")
	}

	var interactionStore interactionsvc.Store
	if redisClient != nil {
		interactionStore = interactionredis.New(redisClient.Client)
	} else {
		interactionStore = interactionmemory.New()
		log.Info("interaction state store running in memory")
	}

	var entries entrystore.Store
	if pool != nil {
		entries = entrypostgres.New(pool)
	} else {
		entries = entrymemory.New()
		log.Info("entry record store running in memory")
	}

	publisher := buildAuditPublisher(ctx, cfg, sqlDB, log)
	if closer, ok := publisher.(interface{ Close() }); ok {
		defer closer.Close()
	}

	screens := loadScreens(log)

	tracker := interactionsvc.New(interactionStore, interactionsvc.WithLogger(log))
	engine := validation.New(validation.WithLogger(log))
	saves := persistence.New(persistence.WithLogger(log), persistence.WithMetrics(m))
	calculator := completion.New(completion.Config{
		ReadinessThreshold: cfg.Engine.ReadinessThreshold,
		Fields:             formservice.CompletionFields(screens),
	}, completion.WithLogger(log), completion.WithMetrics(m))

	form := formservice.New(screens, tracker, engine, entries, saves, calculator, cfg.Engine,
		formservice.WithLogger(log),
		formservice.WithMetrics(m),
		formservice.WithAuditPublisher(publisher),
	)

	tokens := token.NewService(cfg.Server.JWTSigningKey)
	router := httptransport.NewRouter(log,
		formhandler.New(form, log, m, tokens, cfg.Server.AdminKeyHash),
		httptransport.NewSessionHandler(tokens, log, 0),
		checks,
	)

	srv := httpserver.New(cfg.Server.Addr, router)
	go func() {
		log.Info("entrypass listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Drain pending debounced saves before the stores go away.
	saves.Flush(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// pgHealth adapts the pgx pool to the health check interface.
type pgHealth struct {
	pool *pgxpool.Pool
}

func (p pgHealth) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, *sql.DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// database/sql handle for the audit table; the entry store uses pgx.
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, db, nil
}

// buildAuditPublisher assembles the audit pipeline from whatever backends
// are configured: Kafka for analytics, Postgres for support lookups, memory
// as the always-available fallback.
func buildAuditPublisher(ctx context.Context, cfg config.Config, sqlDB *sql.DB, log *slog.Logger) audit.Publisher {
	var sinks audit.Fanout
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			log.Warn("kafka audit publisher unavailable", "error", err)
		} else {
			sinks = append(sinks, kafka)
			log.Info("audit events flowing to kafka", "topic", cfg.Kafka.AuditTopic)
		}
	}
	if sqlDB != nil {
		if _, err := sqlDB.ExecContext(ctx, audit.StoreSchema); err != nil {
			log.Warn("audit table setup failed", "error", err)
		} else {
			sinks = append(sinks, audit.NewPostgresStore(sqlDB))
		}
	}
	if len(sinks) == 0 {
		return audit.NewMemoryPublisher()
	}
	return sinks
}

// loadScreens reads the screen/field configuration from the file named by
// SCREENS_CONFIG, falling back to a built-in single-destination set. The
// per-country tables ship as deploy-time data, not code.
func loadScreens(log *slog.Logger) []formservice.ScreenConfig {
	if path := os.Getenv("SCREENS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("screens config unreadable", "path", path, "error", err)
			os.Exit(1)
		}
		var screens []formservice.ScreenConfig
		if err := json.Unmarshal(data, &screens); err != nil {
			log.Error("screens config invalid", "path", path, "error", err)
			os.Exit(1)
		}
		log.Info("screens config loaded", "path", path, "screens", len(screens))
		return screens
	}
	return defaultScreens()
}

func defaultScreens() []formservice.ScreenConfig {
	return []formservice.ScreenConfig{
		{
			ScreenID:      "passport:th",
			DestinationID: "th",
			Category:      "passport",
			Fields: []formservice.FieldSpec{
				{Name: "passportNumber", Required: true},
				{Name: "nationality", Required: true},
				{Name: "passportExpiryDate", Required: true, Rule: &validation.Spec{Kind: validation.KindDate, AfterToday: true}},
			},
		},
		{
			ScreenID:      "personal:th",
			DestinationID: "th",
			Category:      "personal_info",
			Fields: []formservice.FieldSpec{
				{Name: "surname", Required: true},
				{Name: "firstName", Required: true},
				{Name: "birthDate", Required: true, Rule: &validation.Spec{Kind: validation.KindDate, BeforeToday: true}},
				{Name: "email"},
				{Name: "phone"},
			},
		},
		{
			ScreenID:      "funds:th",
			DestinationID: "th",
			Category:      "funds",
			Fields: []formservice.FieldSpec{
				{Name: "amount", Required: true},
				{Name: "currency", Rule: &validation.Spec{Kind: validation.KindPattern, Pattern: "^[A-Z]{3}$"}},
			},
		},
		{
			ScreenID:      "travel:th",
			DestinationID: "th",
			Category:      "travel",
			Fields: []formservice.FieldSpec{
				{Name: "flightNumber", Required: true},
				{Name: "arrivalDate", Required: true, Rule: &validation.Spec{Kind: validation.KindDate, AfterToday: true}},
				{Name: "departureDate", Rule: &validation.Spec{Kind: validation.KindDate, AfterField: "arrivalDate"}},
			},
		},
	}
}

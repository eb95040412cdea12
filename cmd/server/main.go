package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orgchart/internal/audit"
	"orgchart/internal/chart/handler"
	"orgchart/internal/chart/integrity"
	chartmetrics "orgchart/internal/chart/metrics"
	"orgchart/internal/chart/service"
	chartstore "orgchart/internal/chart/store/chart"
	structurestore "orgchart/internal/chart/store/structure"
	"orgchart/internal/chart/store/vizcache"
	"orgchart/internal/directory"
	"orgchart/internal/jwttoken"
	"orgchart/internal/platform/config"
	"orgchart/internal/platform/httpserver"
	"orgchart/internal/platform/logger"
	platformmetrics "orgchart/internal/platform/metrics"
	platformredis "orgchart/internal/platform/redis"
	"orgchart/internal/template"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	charts, structures, db := buildStores(cfg, log)
	if db != nil {
		defer db.Close()
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(chartmetrics.New()),
		service.WithTemplateProvider(template.NewStatic()),
		service.WithValidatorConfig(validatorConfig(cfg)),
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithVizCache(vizcache.NewRedis(redisClient.Client, cfg.VizCacheTTL)))
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := audit.NewKafka(context.Background(), cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, service.WithAuditPublisher(publisher))
	}

	svc := service.New(charts, structures, directory.NewInMemory(), opts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "orgchart")
	chartHandler := handler.New(svc, log, platformmetrics.New(), jwtService)

	router := chi.NewRouter()
	chartHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(db, redisClient))

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting orgchart server", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func validatorConfig(cfg config.Server) integrity.Config {
	vcfg := integrity.DefaultConfig()
	vcfg.AllowMultipleRoots = cfg.AllowMultipleRoots
	vcfg.StrictLevelOrdering = cfg.StrictLevelOrdering
	vcfg.MaxPositionDepth = cfg.MaxPositionDepth
	vcfg.VacancyWarnPercent = cfg.VacancyWarnPercent
	return vcfg
}

// buildStores selects PostgreSQL when DATABASE_URL is set, else the
// in-memory stores for local development.
func buildStores(cfg config.Server, log *slog.Logger) (service.ChartStore, service.StructureStore, *sql.DB) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL configured, using in-memory stores")
		return chartstore.NewInMemory(), structurestore.NewInMemory(), nil
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		log.Error("database unreachable", "error", err)
		os.Exit(1)
	}
	return chartstore.NewPostgres(db), structurestore.NewPostgres(db), db
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, `{"status":"degraded","database":"down"}`, http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, `{"status":"degraded","redis":"down"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

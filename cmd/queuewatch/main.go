package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	alertapi "github.com/queuewatch/queuewatch/internal/alerting/api"
	adb "github.com/queuewatch/queuewatch/internal/alerting/database"
	"github.com/queuewatch/queuewatch/internal/alerting/service/engine"
	"github.com/queuewatch/queuewatch/internal/alerting/service/evaluator"
	"github.com/queuewatch/queuewatch/internal/alerting/service/notifier"
	"github.com/queuewatch/queuewatch/internal/alerting/service/ruleset"
	"github.com/queuewatch/queuewatch/internal/config"
	"github.com/queuewatch/queuewatch/internal/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Info().Msg("Starting queuewatch alert engine")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// configure log level from config
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// optional persistence for rule configuration and change logs
	var store ruleset.Store
	var alertDB *adb.Database
	if db, derr := adb.New(cfg.Database.DSN()); derr == nil {
		alertDB = db
		store = ruleset.NewPgStore(db)
	} else {
		log.Error().Err(derr).Msg("alerting DB init failed; running without rule persistence")
	}
	defer func() {
		if alertDB != nil {
			alertDB.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	promEval, err := evaluator.NewPromEvaluator(&evaluator.Config{
		BaseURL:      cfg.Alerting.Prometheus.URL,
		QueryTimeout: parseDuration(cfg.Alerting.Prometheus.QueryTimeout, 30*time.Second),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create metrics backend client")
	}

	registry := engine.NewRegistry()
	if rdb := newRedisClient(&cfg.Redis); rdb != nil {
		registry.SetMirror(engine.NewRedisMirror(rdb))
	}

	metrics := engine.NewMetrics(prometheus.DefaultRegisterer)
	scheduler := engine.NewScheduler(engine.Deps{
		Evaluator: promEval,
		Registry:  registry,
		Metrics:   metrics,
	}, engine.Options{
		Workers:    cfg.Alerting.Engine.Workers,
		Resolution: parseDuration(cfg.Alerting.Engine.Resolution, time.Second),
	})

	rules := ruleset.NewManager(store, scheduler, cfg.Alerting.Engine.RulesFile)
	if err := rules.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap alert rules")
	}

	alerts := notifier.New(notifier.Config{
		WebhookURL:  cfg.Alerting.Notifier.WebhookURL,
		Timeout:     parseDuration(cfg.Alerting.Notifier.Timeout, 5*time.Second),
		BearerToken: cfg.Alerting.Notifier.Bearer,
		BasicUser:   cfg.Alerting.Notifier.BasicUser,
		BasicPass:   cfg.Alerting.Notifier.BasicPass,
	})
	go alerts.Run(ctx, scheduler.Notifications())
	go scheduler.Run(ctx)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// routes registered below this point require the API token when one is set
	router.Use(middleware.Authentication(cfg.Server.APIToken))
	alertapi.NewApi(router, registry, scheduler, rules)

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start queuewatch api server failed.")
	}
	log.Info().Msg("queuewatch api server exit...")
}

func newRedisClient(c *config.RedisConfig) *redis.Client {
	if c == nil || c.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}

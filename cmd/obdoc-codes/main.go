package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jinhyuck8504/obdoc-sub000/internal/alert"
	"github.com/jinhyuck8504/obdoc-sub000/internal/anomaly"
	"github.com/jinhyuck8504/obdoc-sub000/internal/config"
	"github.com/jinhyuck8504/obdoc-sub000/internal/database"
	httpapi "github.com/jinhyuck8504/obdoc-sub000/internal/http"
	"github.com/jinhyuck8504/obdoc-sub000/internal/logger"
	"github.com/jinhyuck8504/obdoc-sub000/internal/ratelimit"
	"github.com/jinhyuck8504/obdoc-sub000/internal/repository"
	"github.com/jinhyuck8504/obdoc-sub000/internal/secure"
	"github.com/jinhyuck8504/obdoc-sub000/internal/service"
	"github.com/jinhyuck8504/obdoc-sub000/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "obdoc-codes")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	var (
		limiter ratelimit.Limiter
		cache   store.KV
	)
	if err := redisClient.Ping(context.Background()).Err(); err == nil {
		limiter = ratelimit.NewRedisLimiter(redisClient)
		cache = store.NewRedisKV(redisClient)
	} else {
		// Single-process fallback keeps local dev working without redis.
		// Limits stop being shared across replicas, so never run this in prod.
		log.Warn("redis unavailable, using in-process rate limiting and no cache", zap.Error(err))
		limiter = ratelimit.NewMemoryLimiter()
	}

	var (
		db      *sql.DB
		clinics repository.ClinicsRepo
		codes   repository.InviteCodesRepo
		audit   repository.AuditRepo
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("postgres connected")
		} else {
			log.Warn("postgres unavailable, falling back to in-memory repositories", zap.Error(err))
		}
	}
	if db != nil {
		clinics = repository.NewPostgresClinicsRepo(db)
		codes = repository.NewPostgresInviteCodesRepo(db)
		audit = repository.NewPostgresAuditRepo(db)
	} else {
		clinics = repository.NewMemoryClinicsRepo()
		codes = repository.NewMemoryInviteCodesRepo()
		audit = repository.NewMemoryAuditRepo()
	}

	hasher := secure.NewHasher(cfg.HashKey)
	var sealer *secure.Sealer
	if cfg.SealKey != "" {
		s, err := secure.NewSealer(cfg.SealKey)
		if err != nil {
			log.Fatal("invalid PII_SEAL_KEY", zap.Error(err))
		}
		sealer = s
	}

	anomalyLoc, err := time.LoadLocation(cfg.Anomaly.Timezone)
	if err != nil {
		log.Warn("invalid anomaly timezone, using system local time",
			zap.String("timezone", cfg.Anomaly.Timezone), zap.Error(err))
		anomalyLoc = time.Local
	}
	detector := anomaly.NewDetector(anomaly.Thresholds{
		Window:            cfg.Anomaly.Window,
		BurstFailures:     cfg.Anomaly.BurstFailures,
		ElevatedFailures:  cfg.Anomaly.ElevatedFailures,
		MaxUserAgents:     cfg.Anomaly.MaxUserAgents,
		OffHoursRatio:     cfg.Anomaly.OffHoursRatio,
		OffHoursStartHour: cfg.Anomaly.OffHoursStartHour,
		OffHoursEndHour:   cfg.Anomaly.OffHoursEndHour,
		Location:          anomalyLoc,
	})

	sinks := alert.Multi{alert.NewLogSink(log)}
	var mqttSink *alert.MQTTSink
	if cfg.Alert.MQTT.Enabled {
		s, err := alert.NewMQTTSink(alert.MQTTOptions{
			Broker:   cfg.Alert.MQTT.Broker,
			ClientID: cfg.Alert.MQTT.ClientID,
			Username: cfg.Alert.MQTT.Username,
			Password: cfg.Alert.MQTT.Password,
			Topic:    cfg.Alert.MQTT.Topic,
		})
		if err != nil {
			log.Warn("mqtt alert sink unavailable", zap.Error(err))
		} else {
			mqttSink = s
			sinks = append(sinks, s)
		}
	}
	if cfg.Alert.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Alert.WebhookURL))
	}

	validator := service.NewValidationService(
		clinics, codes, audit,
		limiter, cfg.RateLimit.Validate,
		hasher, detector, sinks,
		cache, cfg.Cache.ValidationTTL,
		log,
	)
	inviteIssuer := service.NewInviteCodeService(
		clinics, codes, audit,
		limiter, cfg.RateLimit.InviteIssue,
		hasher, log,
	)
	clinicIssuer := service.NewClinicCodeService(
		clinics, audit,
		limiter, cfg.RateLimit.ClinicIssue,
		sealer, log,
	)

	auth := httpapi.NewAuthMiddleware(cfg.JWTSecret, log)
	router := httpapi.NewRouter(log)
	router.RegisterInviteCodeRoutes(httpapi.NewInviteCodeHandler(validator, inviteIssuer, log), auth)
	router.RegisterClinicCodeRoutes(httpapi.NewClinicCodeHandler(clinicIssuer, log), auth)
	router.RegisterHealthRoutes()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttSink != nil {
		mqttSink.Close()
	}
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}

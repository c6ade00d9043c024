package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/config"
	"github.com/clinic/frontdesk/internal/domain/account"
	"github.com/clinic/frontdesk/internal/domain/attention"
	"github.com/clinic/frontdesk/internal/domain/catalog"
	"github.com/clinic/frontdesk/internal/domain/person"
	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/auth"
	"github.com/clinic/frontdesk/internal/platform/blobstore"
	"github.com/clinic/frontdesk/internal/platform/db"
	"github.com/clinic/frontdesk/internal/platform/events"
	"github.com/clinic/frontdesk/internal/platform/handoff"
	"github.com/clinic/frontdesk/internal/platform/middleware"
	"github.com/clinic/frontdesk/internal/platform/notification"
	"github.com/clinic/frontdesk/internal/platform/reporting"
	"github.com/clinic/frontdesk/internal/platform/websocket"
)

const (
	requestTimeout = 30 * time.Second
	bodyLimit      = "1M"
)

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.Timezone, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")
	txm := db.NewTxManager(pool)
	loc := cfg.Location()

	// Redis is optional. Without it handoffs live in process memory and
	// events reach only this instance's websocket clients.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = handoff.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to redis")
	}

	var handoffs handoff.Store
	if rdb != nil {
		handoffs = handoff.NewRedisStore(rdb, cfg.HandoffTTL)
	} else {
		mem := handoff.NewMemoryStore(cfg.HandoffTTL)
		go mem.Run(ctx)
		handoffs = mem
	}

	// Events: local websocket fan-out, cross-instance relay, and Kafka.
	hub := websocket.NewHub(logger)
	publishers := events.Fanout{hub}
	if rdb != nil {
		relay := events.NewRedisRelay(rdb, uuid.NewString(), logger)
		publishers = append(publishers, relay)
		go func() {
			if err := relay.Run(ctx, hub); err != nil {
				logger.Error().Err(err).Msg("event relay stopped")
			}
		}()
	}
	var kafkaSink *events.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = events.NewKafkaSink(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer kafkaSink.Close()
		publishers = append(publishers, kafkaSink)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka sink enabled")
	}

	// Archived history exports.
	var blobs blobstore.Store = blobstore.NewMemoryStore()
	if cfg.S3Bucket != "" {
		client, err := blobstore.NewS3Client(ctx, cfg.S3Endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure s3")
		}
		blobs = blobstore.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix)
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("s3 export archive enabled")
	}

	// Outbound email.
	var sender notification.EmailSender = notification.LogSender{Logger: logger}
	if cfg.SMTPHost != "" {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		})
	}
	mailer := notification.NewMailer(sender, notification.NewTemplateEngine(), logger)

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSecret),
		TTL:        cfg.JWTTTL,
		Skipper:    auth.AuthSkipper,
	}

	// Domain services
	catalogSvc := catalog.NewService(catalog.NewRepo(pool), txm)
	personSvc := person.NewService(person.NewRepo(pool), txm, handoffs, logger)
	professionalSvc := professional.NewService(professional.NewRepo(pool), txm, catalogSvc, loc)

	queueStatuses := make([]triage.State, 0, len(cfg.QueueStatuses))
	for _, s := range cfg.QueueStatuses {
		queueStatuses = append(queueStatuses, triage.State(s))
	}
	attentionSvc := attention.NewService(attention.NewRepo(pool), txm, attention.Deps{
		Catalog:       catalogSvc,
		Professionals: professionalSvc,
		Patients:      personSvc,
		Handoffs:      handoffs,
		Events:        publishers,
		Blobs:         blobs,
		Logger:        logger,
	}, attention.Options{
		Location:      loc,
		QueueStatuses: queueStatuses,
		PerPage:       cfg.QueuePerPage,
		ClinicName:    cfg.ClinicName,
	})

	accountSvc := account.NewService(account.NewRepo(pool), txm, professionalSvc, mailer, account.Options{
		JWT:        jwtCfg,
		BaseURL:    cfg.AppBaseURL,
		ClinicName: cfg.ClinicName,
	}, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Archive-Key", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	var auditRecorder middleware.AuditRecorder
	if kafkaSink != nil {
		auditRecorder = middleware.AuditRecorderFunc(func(ctx context.Context, entry middleware.AuditEntry) error {
			ev, err := events.New(events.AuditAccess, events.ChannelAudit, entry.UserID, entry)
			if err != nil {
				return err
			}
			return kafkaSink.Publish(ctx, ev)
		})
	}
	e.Use(middleware.Audit(logger, auditRecorder))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.BodyLimit(bodyLimit))
	apiV1.Use(middleware.RequestTimeout(requestTimeout))

	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)
	person.NewHandler(personSvc).RegisterRoutes(apiV1)
	professional.NewHandler(professionalSvc).RegisterRoutes(apiV1)
	attention.NewHandler(attentionSvc).RegisterRoutes(apiV1)
	reporting.NewHandler(reporting.NewSource(pool), loc, logger).RegisterRoutes(apiV1)
	blobstore.NewHandler(blobs).RegisterRoutes(apiV1.Group("", auth.Require(auth.HistoryRead)))
	websocket.NewHandler(hub, cfg.CORSOrigins, events.ChannelAttentions).
		RegisterRoutes(apiV1.Group("", auth.Require(auth.QueueRead)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/mmdatafocus/indicator_monitor/indicatorapi"
	"github.com/mmdatafocus/indicator_monitor/middlewares"
	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	settings := config.LoadMonitorSettings()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Handlers are served before the DB is up; requests get 503 until the engine is ready.
	pipeline := &readyPipeline{}

	r := gin.New()
	r.Use(middlewares.CorrelationIdMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	corsConfig := cors.DefaultConfig()
	production := strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
	if production {
		corsConfig.AllowOrigins = splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id")
	// internal endpoints only; production without an allow-list serves no cross-origin requests
	if !production || len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(middlewares.ReadinessMiddleware(pipeline.ready))

	indicatorapi.RegisterRoutes(r, pipeline)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	bindings, err := workflow.LoadBindings(settings.IndicatorFamiliesFile)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "bindings", "file": settings.IndicatorFamiliesFile}).Fatal(err)
	}

	redisCtx, cancelRedis := context.WithTimeout(sigCtx, 30*time.Second)
	config.ConnectRedisWithRetry(redisCtx)
	cancelRedis()
	if rdb := config.GetRedisDB(); rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unavailable; indicator locks are process-local")
	}

	notifier := workflow.NewNotifier(models.NewStore(db), newPublisher(sigCtx, settings, logger), newMailer(logger), settings.NotificationTopic, logger)
	engine := workflow.NewEngine(db, logger, bindings, notifier)
	engine.ApplySettings(settings)
	engine.Locker.Redis = config.GetRedisLock()
	pipeline.engine.Store(engine)

	logger.WithFields(logrus.Fields{
		"field":    "engine",
		"bindings": bindings.Len(),
		"sweep":    settings.SweepEnabled,
		"interval": settings.SweepInterval.String(),
	}).Info("indicator engine ready")

	var wg sync.WaitGroup
	schedCtx, stopScheduler := context.WithCancel(sigCtx)
	if settings.SweepEnabled {
		scheduler := workflow.NewScheduler(engine, settings.SweepInterval, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(schedCtx)
		}()
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
	stopScheduler()
	wg.Wait()
}

// readyPipeline forwards to the engine once main has built it.
type readyPipeline struct {
	engine atomic.Pointer[workflow.Engine]
}

func (p *readyPipeline) ready() bool {
	return p.engine.Load() != nil
}

func (p *readyPipeline) OnFactWritten(ctx context.Context, code string) (workflow.RunResult, error) {
	return p.engine.Load().OnFactWritten(ctx, code)
}

func (p *readyPipeline) OnExternalValue(ctx context.Context, code string, value float64) (workflow.RunResult, error) {
	return p.engine.Load().OnExternalValue(ctx, code, value)
}

func (p *readyPipeline) RecomputeAll(ctx context.Context) (workflow.SweepResult, error) {
	return p.engine.Load().RecomputeAll(ctx)
}

func newPublisher(ctx context.Context, settings config.MonitorSettings, logger *logrus.Logger) workflow.Publisher {
	clientCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := config.GetClient(clientCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("push channel disabled: " + err.Error())
		return nil
	}
	if envBool("PUBSUB_CREATE_TOPICS") {
		for _, topic := range []string{settings.NotificationTopic, settings.FactTopic} {
			if _, err := config.CreateTopicIfNotExists(clientCtx, client, topic); err != nil {
				config.LogError(logger, "main", "newPublisher", "create topic", topic, err)
			}
		}
	}
	return config.NewPubSubPublisher(client)
}

func newMailer(logger *logrus.Logger) workflow.Mailer {
	m := config.NewSMTPMailerFromEnv()
	if m == nil {
		logger.WithFields(logrus.Fields{"field": "smtp"}).Warn("SMTP_HOST not set; email channel disabled")
		return nil
	}
	return m
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

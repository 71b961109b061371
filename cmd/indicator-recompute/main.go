package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/workflow"
	"github.com/sirupsen/logrus"
)

// indicator-recompute runs one pipeline pass and exits. With -code it runs a single
// indicator; otherwise it sweeps every active indicator. Notifications are sent unless -quiet.
func main() {
	code := flag.String("code", "", "indicator code to recompute (default: all active indicators)")
	quiet := flag.Bool("quiet", false, "skip notification fan-out")
	flag.Parse()

	logger := config.GetLogger()
	settings := config.LoadMonitorSettings()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	bindings, err := workflow.LoadBindings(settings.IndicatorFamiliesFile)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "bindings", "file": settings.IndicatorFamiliesFile}).Fatal(err)
	}

	redisCtx, cancelRedis := context.WithTimeout(ctx, 30*time.Second)
	config.ConnectRedisWithRetry(redisCtx)
	cancelRedis()
	if rdb := config.GetRedisDB(); rdb != nil {
		defer rdb.Close()
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis unavailable; relying on database locks only")
	}

	var notifier *workflow.Notifier
	if !*quiet {
		var mailer workflow.Mailer
		if m := config.NewSMTPMailerFromEnv(); m != nil {
			mailer = m
		}
		var publisher workflow.Publisher
		clientCtx, cancelClient := context.WithTimeout(ctx, 30*time.Second)
		if client, err := config.GetClient(clientCtx); err == nil {
			publisher = config.NewPubSubPublisher(client)
		} else {
			logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("push channel disabled: " + err.Error())
		}
		cancelClient()
		notifier = workflow.NewNotifier(models.NewStore(db), publisher, mailer, settings.NotificationTopic, logger)
	}

	engine := workflow.NewEngine(db, logger, bindings, notifier)
	engine.ApplySettings(settings)
	engine.Locker.Redis = config.GetRedisLock()

	if *code != "" {
		res, err := engine.OnFactWritten(ctx, *code)
		if err != nil {
			config.LogError(logger, "indicator-recompute", "main", "recompute indicator", *code, err)
			os.Exit(1)
		}
		logger.WithFields(logrus.Fields{
			"indicator_code": res.Code,
			"breach":         res.Decision.IsBreach,
			"created":        res.Created != nil,
			"skipped":        res.Skipped,
		}).Info("indicator recomputed")
		return
	}

	res, err := engine.RecomputeAll(ctx)
	if err != nil {
		config.LogError(logger, "indicator-recompute", "main", "recompute all indicators", nil, err)
		os.Exit(1)
	}
	if res.Failed > 0 {
		logger.WithFields(logrus.Fields{"failures": res.Failures}).Warn("some indicators failed")
		os.Exit(2)
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/admin/dashboard"
	"trustline/portal-backend/internal/admin/export"
	"trustline/portal-backend/internal/config"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/database"
	"trustline/portal-backend/internal/jobs"
	"trustline/portal-backend/internal/logging"
	"trustline/portal-backend/internal/notifications"
	"trustline/portal-backend/internal/trustscore"
	"trustline/portal-backend/internal/users"
	"trustline/portal-backend/internal/verification"
	"trustline/portal-backend/pkg/awsconf"
	"trustline/portal-backend/pkg/storage"
)

const (
	jobScoreReconcile = "score-reconcile"
	jobUrgentAlert    = "urgent-alert"
	jobMonthlyExport  = "monthly-export"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	runOnce := flag.String("run", "", "run a single job now and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	logger = logger.Named("workers")

	ctx := context.Background()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := database.OpenSQLX(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect aggregation handle", zap.Error(err))
	}
	defer sqlDB.Close()

	awsCfg, err := awsconf.Load(ctx, cfg.Storage.Region, cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey)
	if err != nil {
		logger.Fatal("Failed to load AWS configuration", zap.Error(err))
	}
	store := storage.NewS3Client(awsCfg, storage.Options{
		Endpoint:     cfg.Storage.Endpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})

	// Workers write scores without reindexing; the API reindexes on the next profile change.
	usersService := users.NewService(users.NewRepository(db), nil, logger)
	scoreService := trustscore.NewService(credentials.NewRepository(db), usersService, database.NewTransactor(db), logger)

	notifyCfg := notifications.ServiceConfig{AdminEmails: cfg.Email.AdminEmails}
	if cfg.Email.Enabled {
		sesCfg := awsCfg.Copy()
		sesCfg.Region = cfg.Email.Region
		notifyCfg.Email = notifications.NewEmailChannel(sesv2.NewFromConfig(sesCfg), cfg.Email.FromAddress)
	}
	notificationsService := notifications.NewService(notifications.NewRepository(db), usersService, notifyCfg, logger)

	verificationService := verification.NewService(verification.Deps{
		Requests: verification.NewRepository(db),
	}, cfg.Verification, logger)

	aggregator := dashboard.NewAggregator(dashboard.NewPostgresRepository(sqlDB), nil, dashboard.Config{
		UrgentAfter:    cfg.Verification.UrgentAfter,
		RecentActivity: cfg.Dashboard.RecentActivity,
	}, logger)
	exporter := export.NewService(aggregator, logger)

	registry := map[string]jobs.Func{
		jobScoreReconcile: jobs.ReconcileScores(scoreService, usersService, cfg.Workers.BatchSize, logger),
		jobUrgentAlert:    jobs.AlertUrgentQueue(verificationService, notificationsService),
		jobMonthlyExport:  jobs.ArchiveMonthlyDashboard(exporter, store, cfg.Storage.ReportsBucket, time.Now),
	}

	scheduler := jobs.NewScheduler(logger)

	if *runOnce != "" {
		fn, ok := registry[*runOnce]
		if !ok {
			logger.Fatal("Unknown job", zap.String("job", *runOnce))
		}
		scheduler.RunNow(*runOnce, 30*time.Minute, fn)
		return
	}

	specs := map[string]string{
		jobScoreReconcile: cfg.Workers.ScoreReconcileSpec,
		jobUrgentAlert:    cfg.Workers.UrgentAlertSpec,
		jobMonthlyExport:  cfg.Workers.MonthlyExportSpec,
	}
	for name, spec := range specs {
		if err := scheduler.Register(name, spec, 30*time.Minute, registry[name]); err != nil {
			logger.Fatal("Failed to register job", zap.Error(err))
		}
	}

	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	logger.Info("Workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Stopping workers...")
	scheduler.Stop()
	logger.Info("Workers stopped")
}

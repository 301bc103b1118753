package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trustline/portal-backend/internal/admin/dashboard"
	"trustline/portal-backend/internal/admin/export"
	"trustline/portal-backend/internal/auth"
	"trustline/portal-backend/internal/config"
	"trustline/portal-backend/internal/credentials"
	"trustline/portal-backend/internal/database"
	"trustline/portal-backend/internal/documents"
	"trustline/portal-backend/internal/feed"
	"trustline/portal-backend/internal/logging"
	"trustline/portal-backend/internal/notifications"
	"trustline/portal-backend/internal/notifications/websocket"
	"trustline/portal-backend/internal/payments"
	"trustline/portal-backend/internal/search"
	"trustline/portal-backend/internal/trustscore"
	"trustline/portal-backend/internal/users"
	"trustline/portal-backend/internal/verification"
	"trustline/portal-backend/pkg/awsconf"
	"trustline/portal-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
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

	ctx := context.Background()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		models := []any{
			&users.User{},
			&verification.Request{},
			&payments.Transaction{},
			&notifications.Notification{},
			&notifications.DeliveryLog{},
			&documents.Document{},
		}
		models = append(models, credentials.Models()...)
		models = append(models, feed.Models()...)
		if err := database.Migrate(db, models...); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
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

	tx := database.NewTransactor(db)
	wsManager := websocket.NewManager(cfg.Server.AllowedOrigins, logger)
	defer wsManager.Close()

	// Users, with the search index when one is configured
	var indexer users.ProfileIndexer
	var searchHandler *search.Handler
	if len(cfg.Search.Addresses) > 0 {
		esClient, err := search.NewClient(cfg.Search)
		if err != nil {
			logger.Fatal("Failed to create search client", zap.Error(err))
		}
		profileIndex := search.NewProfileIndex(esClient, cfg.Search.ProfileIndex, logger)
		if err := profileIndex.EnsureIndex(ctx); err != nil {
			logger.Warn("Profile index unavailable", zap.Error(err))
		}
		indexer = profileIndex
		searchHandler = search.NewHandler(profileIndex, logger)
	}
	usersService := users.NewService(users.NewRepository(db), indexer, logger)

	// Notifications
	notifyCfg := notifications.ServiceConfig{
		Push:        wsManager,
		AdminEmails: cfg.Email.AdminEmails,
	}
	if cfg.Email.Enabled {
		sesCfg := awsCfg.Copy()
		sesCfg.Region = cfg.Email.Region
		notifyCfg.Email = notifications.NewEmailChannel(sesv2.NewFromConfig(sesCfg), cfg.Email.FromAddress)
	}
	if cfg.SMS.Enabled {
		snsCfg := awsCfg.Copy()
		snsCfg.Region = cfg.SMS.Region
		notifyCfg.SMS = notifications.NewSMSChannel(sns.NewFromConfig(snsCfg), cfg.SMS.SenderID)
	}
	notificationsService := notifications.NewService(notifications.NewRepository(db), usersService, notifyCfg, logger)

	// Credentials and scoring
	credentialsRepo := credentials.NewRepository(db)
	scoreService := trustscore.NewService(credentialsRepo, usersService, tx, logger)
	credentialsService := credentials.NewService(credentialsRepo, tx, scoreService, logger)
	paymentsService := payments.NewService(payments.NewRepository(db), cfg.Verification.FeeCents, cfg.Verification.Currency, logger)

	// Dashboard cache: Redis when configured so every instance sees invalidations
	var cache dashboard.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, dashboard cache misses will hit the database", zap.Error(err))
		}
		cache = dashboard.NewRedisCache(rdb)
	} else {
		memCache := dashboard.NewMemoryCache()
		defer memCache.Stop()
		cache = memCache
	}
	aggregator := dashboard.NewAggregator(dashboard.NewPostgresRepository(sqlDB), cache, dashboard.Config{
		CacheTTL:       cfg.Dashboard.CacheTTL,
		UrgentAfter:    cfg.Verification.UrgentAfter,
		RecentActivity: cfg.Dashboard.RecentActivity,
	}, logger)

	verificationService := verification.NewService(verification.Deps{
		Credentials: credentialsRepo,
		Requests:    verification.NewRepository(db),
		Tx:          tx,
		Payments:    paymentsService,
		Scores:      scoreService,
		Notifier:    notificationsService,
		Cache:       aggregator,
	}, cfg.Verification, logger)

	documentsService := documents.NewService(documents.NewRepository(sqlDB), store, credentialsService, documents.Config{
		Bucket:         cfg.Storage.DocumentsBucket,
		PresignExpiry:  cfg.Storage.PresignExpiry,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	}, logger)

	feedService := feed.NewService(feed.NewRepository(db), tx, notificationsService, logger)

	// Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger), cors(cfg.Server.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"timestamp":      time.Now(),
			"ws_connections": wsManager.ConnectionCount(),
		})
	})

	public := router.Group("/api/v1")
	api := router.Group("/api/v1")
	api.Use(auth.JWTMiddleware([]byte(cfg.Security.JWTSecret), cfg.Security.JWTIssuer, usersService, logger))
	admin := api.Group("/admin")
	admin.Use(auth.RequireAdmin())

	auth.RegisterRoutes(public, api, auth.NewHandler())
	users.NewHandler(usersService, logger).RegisterRoutes(api)
	credentials.NewHandler(credentialsService, logger).RegisterRoutes(api)
	trustscore.NewHandler(scoreService, logger).RegisterRoutes(api)
	payments.NewHandler(paymentsService, logger).RegisterRoutes(api)
	notifications.NewHandler(notificationsService, wsManager, logger).RegisterRoutes(api)
	feed.NewHandler(feedService, logger).RegisterRoutes(api)
	documents.NewHandler(documentsService, logger).RegisterRoutes(api, admin)
	verification.NewHandler(verificationService, logger).RegisterRoutes(api, admin)
	dashboard.NewHandler(aggregator, logger).RegisterRoutes(admin)
	export.NewHandler(export.NewService(aggregator, logger), logger).RegisterRoutes(admin)
	if searchHandler != nil {
		searchHandler.RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func cors(allowed []string) gin.HandlerFunc {
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case wildcard:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && contains(allowed, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

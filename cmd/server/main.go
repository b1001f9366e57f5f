package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"energytrack/internal/auth"
	"energytrack/internal/cache"
	"energytrack/internal/config"
	"energytrack/internal/events"
	apphttp "energytrack/internal/http"
	"energytrack/internal/obs"
	"energytrack/internal/repository/sqlite"
	"energytrack/internal/service"
	"energytrack/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	meterRepo := sqlite.NewMeterRepository(db)
	readingRepo := sqlite.NewReadingRepository(db)
	reportRepo := sqlite.NewReportRepository(db)
	if err := sqlite.InitAll(ctx, userRepo, meterRepo, readingRepo, reportRepo); err != nil {
		logger.Fatalf("init repositories: %v", err)
	}

	codec, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		logger.Fatalf("setup token codec: %v", err)
	}

	archiver, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	publisher, err := buildPublisher(cfg, logger)
	if err != nil {
		logger.Fatalf("setup events: %v", err)
	}
	defer publisher.Close()

	obs.Init()
	c := cache.New(cfg.CacheTTL(), cache.WithMaxEntries(cfg.Cache.MaxEntries))

	userService := service.NewUserService(userRepo, codec)
	meterService := service.NewMeterService(meterRepo, c)
	readingService := service.NewReadingService(readingRepo, meterRepo, c, publisher, archiver, logger)
	reportService := service.NewReportService(reportRepo, meterRepo, readingRepo, readingService, c, publisher, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	handler := apphttp.NewHandler(
		userService,
		meterService,
		readingService,
		reportService,
		codec,
		logger,
		apphttp.Options{
			LoginRatePerSecond: cfg.Auth.LoginRatePerSecond,
			LoginBurst:         cfg.Auth.LoginBurst,
		},
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// buildArchiver returns a disabled archiver when no bucket is configured.
func buildArchiver(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*storage.Archiver, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("object storage disabled, reading archives unavailable")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewArchiver(storage.NewS3Service(client), cfg.Storage.Bucket, cfg.Storage.KeyPrefix), nil
}

// buildPublisher falls back to a no-op publisher without a broker URL.
func buildPublisher(cfg config.Config, logger *logrus.Logger) (events.Publisher, error) {
	if cfg.Events.AMQPURL == "" {
		logger.Info("event broker disabled")
		return events.NopPublisher{}, nil
	}
	pub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		return nil, err
	}
	logger.Infof("publishing events to exchange %s", cfg.Events.Exchange)
	return pub, nil
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/lib/pq" // PostgreSQL driver

	"okapi/internal/audience"
	"okapi/internal/broker"
	"okapi/internal/config"
	"okapi/internal/constants"
	"okapi/internal/dispatch"
	"okapi/internal/engine"
	"okapi/internal/logger"
	"okapi/internal/management"
	"okapi/internal/metricsource"
	"okapi/internal/recorder"
	"okapi/pkg/bootstrap"
	pkgcel "okapi/pkg/cel"
	"okapi/pkg/health"
	"okapi/pkg/logging"
	"okapi/pkg/metrics"
	"okapi/pkg/middleware"
	"okapi/pkg/migrations"
	"okapi/pkg/ratelimit"
	"okapi/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	producer       broker.Producer
	repo           management.Repository
	scheduler      *engine.Scheduler
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if sugaredLogger, ok := a.logger.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("trigger-service")
	}
	ctx = logging.WithServiceName(ctx, "trigger-service")

	if err := config.ValidateStatic(a.config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	a.initBroker()

	if err := a.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}

	tp, err := tracing.Init(a.config.Tracing, "trigger-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db, a.config.Database.MigrationsDir); err != nil {
			return err
		}
		a.logger.InfowCtx(ctx, "Database migrations applied")
	}

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	if err := migrations.EnsureMongoCollection(ctx, a.mongoDatabase()); err != nil {
		return err
	}

	return nil
}

func (a *App) mongoDatabase() *mongo.Database {
	dbName := a.config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	return a.mongoClient.Database(dbName)
}

func (a *App) initBroker() {
	if len(a.config.Broker.Kafka.Brokers) == 0 {
		a.logger.Warn("No kafka brokers configured, events will not be published")
		return
	}

	producer, err := broker.NewProducer(a.config.Broker, a.logger)
	if err != nil {
		a.logger.Warnw("Failed to create event producer, events will be disabled", "error", err)
		return
	}
	a.producer = producer
}

func (a *App) initEngine() error {
	evaluator, err := pkgcel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create audience filter evaluator: %w", err)
	}

	a.repo = management.NewRepository(a.db)

	source := metricsource.NewRedisSource(a.redisClient, a.logger)
	directory := audience.NewPostgresDirectory(a.db)
	resolver := audience.NewResolver(directory, evaluator, a.config.Audience.Strategies, a.logger)
	dispatcher := dispatch.NewHTTPDispatcher(a.config.Dispatch, a.config.CircuitBreaker, a.config.Engine.ActionTimeout(), a.logger)

	store := recorder.NewMongoStore(a.mongoDatabase())
	executionTopic := a.config.Broker.Kafka.ExecutionTopic
	if executionTopic == "" {
		executionTopic = constants.DefaultExecutionTopic
	}
	rec := recorder.NewRecorder(store, a.repo, a.producer, executionTopic, a.logger)

	runner := engine.NewRunner(source, resolver, dispatcher, rec, a.config.Engine, a.logger)
	a.scheduler = engine.NewScheduler(a.repo, runner, a.config.Engine, a.logger)

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("trigger-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.Management.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.config.Management.RateLimit.RPS,
			Burst:           a.config.Management.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.Management.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.Management.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	evaluator, err := pkgcel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create audience filter evaluator: %w", err)
	}

	versioningRepo := management.NewVersioningRepository(a.db)
	store := recorder.NewMongoStore(a.mongoDatabase())

	opts := []management.ServiceOption{
		management.WithVersioning(versioningRepo),
		management.WithExecutionStore(store),
		management.WithAudienceFilterValidator(evaluator),
	}

	if a.producer != nil {
		configTopic := a.config.Broker.Kafka.ConfigTopic
		if configTopic == "" {
			configTopic = constants.DefaultConfigTopic
		}
		opts = append(opts, management.WithConfigEvents(management.NewConfigEventProducer(a.producer, configTopic)))
	}

	svc := management.NewService(a.repo, opts...)
	handler := management.NewHandler(svc, a.logger)
	handler.RegisterRoutes(router)

	metrics.RegisterEngineMetrics()
	metrics.RegisterManagementMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterBrokerMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 2)

	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	go func() {
		if err := a.scheduler.Run(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("scheduler error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	ctx = logging.WithServiceName(ctx, "trigger-service")
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	dbErrs := a.dbConnector.ShutdownDatabases(shutdownCtx, a.redisClient, a.db, a.mongoClient)
	errs = append(errs, dbErrs...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.Info("Server exited successfully")
	return nil
}

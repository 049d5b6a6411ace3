package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/cache"
	apperrors "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/errors"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/common/logger"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/config"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/controllers"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/database"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/events"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/integration"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/middleware"
	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/repository"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/routes"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/services"
	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/storage"
)

const serviceName = "storefront"

// stores is the selected persistence backend.
type stores struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	sequence repository.Sequence
	close    func() error
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- 1. Configuration & Logging ---

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Must("", nil).Fatal("Failed to load configuration", zap.Error(err))
	}

	var awsCfg sdkaws.Config
	if cfg.NeedsAWS() {
		awsCfg, err = aws_pkg.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.Endpoint, cfg.AWS.Credentials())
		if err != nil {
			logger.Must(cfg.Server.Env, nil).Fatal("Failed to load AWS config", zap.Error(err))
		}
	}

	var cwWriter *aws_pkg.CloudWatchLogsClient
	if cfg.AWS.CloudWatchEnabled {
		cwWriter, err = aws_pkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.AWS.CloudWatchGroup, serviceName)
		if err != nil {
			logger.Must(cfg.Server.Env, nil).Warn("CloudWatch logs disabled (non-fatal)", zap.Error(err))
			cwWriter = nil
		}
	}

	var log *zap.Logger
	if cwWriter != nil {
		log = logger.Must(cfg.Server.Env, cwWriter)
	} else {
		log = logger.Must(cfg.Server.Env, nil)
	}
	defer func() {
		_ = log.Sync()
		if cwWriter != nil {
			_ = cwWriter.Close()
		}
	}()
	zap.ReplaceGlobals(log)

	metricsClient := aws_pkg.NewMetricsClient(awsCfg, cfg.AWS.CloudWatchNS, cfg.AWS.CloudWatchEnabled)

	// --- 2. Infrastructure ---

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err), zap.String("driver", cfg.Store.Driver))
	}

	var (
		redisClient  *redis.Client
		productCache services.ProductCache
		idempotency  services.IdempotencyStore
	)
	if cfg.Redis.URL != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis unavailable, running without cache and idempotency", zap.Error(err))
			redisClient = nil
		} else {
			productCache = cache.NewProductCache(redisClient, cfg.Redis.CacheTTL, log)
			idempotency = cache.NewIdempotencyStore(redisClient, cfg.Redis.IdempotencyTTL)
			log.Info("Connected to Redis")
		}
	}

	var images storage.ImageStore
	if cfg.AWS.ImageBucket != "" {
		s3Client := aws_pkg.NewS3Client(awsCfg, cfg.AWS.Endpoint != "")
		images = storage.NewS3ImageStore(aws_pkg.NewS3Bucket(s3Client, cfg.AWS.ImageBucket))
		log.Info("Product images stored in S3", zap.String("bucket", cfg.AWS.ImageBucket))
	}

	publisher := newPublisher(cfg, awsCfg, log)

	var (
		jobs      events.JobQueue
		reconcile *aws_pkg.SQSQueue
	)
	if cfg.AWS.ReconcileQueueURL != "" {
		reconcile = aws_pkg.NewSQSQueue(awsCfg, cfg.AWS.ReconcileQueueURL, log)
		jobs = events.NewSQSJobQueue(reconcile)
	} else {
		log.Warn("RECONCILE_QUEUE_URL not set, reconcile jobs will only be logged")
	}

	var gateway integration.PaymentGateway
	if cfg.Gateway.Mode == config.GatewayLive {
		gateway = integration.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.Timeout)
	} else {
		gateway = integration.NewSandboxGateway()
		log.Warn("Payment gateway running in sandbox mode")
	}
	signer := integration.NewSigner(cfg.Gateway.KeySecret, cfg.Gateway.WebhookSecret)

	// --- 3. Services & Controllers ---

	orderService := services.NewOrderService(services.OrderServiceDeps{
		Orders:         st.orders,
		Products:       st.products,
		Sequence:       st.sequence,
		Gateway:        gateway,
		Signer:         signer,
		Publisher:      publisher,
		Jobs:           jobs,
		Cache:          productCache,
		Idempotency:    idempotency,
		Metrics:        metricsClient,
		Currency:       cfg.Gateway.Currency,
		GatewayTimeout: cfg.Gateway.Timeout,
	}, log)
	productService := services.NewProductService(st.products, st.sequence, images, productCache, metricsClient, log)

	handlers := routes.Handlers{
		Orders:   controllers.NewOrderController(orderService),
		Products: controllers.NewProductController(productService),
	}
	if signer.WebhookEnabled() {
		handlers.Webhooks = controllers.NewWebhookController(orderService, signer, log)
	} else {
		log.Warn("GATEWAY_WEBHOOK_SECRET not set, payment webhook route disabled")
	}

	if reconcile != nil {
		reconciler := services.NewReconciler(orderService, log)
		go func() {
			if err := reconciler.Run(ctx, reconcile); err != nil {
				log.Error("Reconciler stopped", zap.Error(err))
			}
		}()
	}

	// --- 4. HTTP Server & Middleware ---

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(metricsClient, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))
	r.Use(middleware.NewRateLimiter(ctx, rate.Limit(cfg.HTTP.RateLimitRPS), cfg.HTTP.RateLimitBurst, 10*time.Minute).Middleware())
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(apperrors.Middleware(log))
	r.Use(middleware.Identity(cfg.Auth.JWTSecret, cfg.Auth.TrustIdentityHeaders))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	if err := routes.Register(r, handlers); err != nil {
		log.Fatal("Failed to register routes", zap.Error(err))
	}

	// --- 5. Graceful Shutdown ---

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Storefront starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down storefront...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	if err := publisher.Close(); err != nil {
		log.Error("Failed to close event publisher", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := st.close(); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}

	log.Info("Storefront stopped gracefully")
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.ConnectPostgres(ctx, cfg.Store.PostgresDSN(), log)
		if err != nil {
			return nil, err
		}
		return &stores{
			orders:   repository.NewGormOrderRepository(db),
			products: repository.NewGormProductRepository(db),
			sequence: repository.NewGormSequence(db),
			close:    func() error { return database.ClosePostgres(db) },
		}, nil
	default:
		client, db, err := database.ConnectMongo(ctx, cfg.Store.MongoURL, cfg.Store.MongoDB, log)
		if err != nil {
			return nil, err
		}
		orders := repository.NewMongoOrderRepository(db)
		products := repository.NewMongoProductRepository(db)
		if err := database.EnsureIndexes(ctx, orders, products); err != nil {
			_ = database.CloseMongo(client)
			return nil, err
		}
		return &stores{
			orders:   orders,
			products: products,
			sequence: repository.NewMongoSequence(db),
			close:    func() error { return database.CloseMongo(client) },
		}, nil
	}
}

func newPublisher(cfg *config.Config, awsCfg sdkaws.Config, log *zap.Logger) events.Publisher {
	switch cfg.Events.Driver {
	case config.EventsSNS:
		log.Info("Order events published to SNS")
		return events.NewSNSPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.AWS.OrderTopicARN)
	case config.EventsKafka:
		log.Info("Order events published to Kafka", zap.Strings("brokers", cfg.Events.KafkaBrokers))
		return events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, log)
	default:
		return events.NoopPublisher{}
	}
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-svc/catalog"
	"storefront-svc/checkout"
	"storefront-svc/circuitbreaker"
	"storefront-svc/config"
	"storefront-svc/customer"
	"storefront-svc/gateway"
	"storefront-svc/handlers"
	"storefront-svc/kafka"
	"storefront-svc/middleware"
	"storefront-svc/payments"
	"storefront-svc/session"
	"storefront-svc/store"
	"storefront-svc/syncqueue"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "storefront-service"

// stores groups the key-value views the service runs on. records holds
// data that outlives sessions: the payment ledger and remote profiles.
type stores struct {
	durable store.Store
	scratch store.Store
	records store.Store
	close   func()
}

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cfg := config.Load(logger)
	if cfg.AppEnv == "development" {
		if devLogger, err := zap.NewDevelopment(); err == nil {
			logger = devLogger
		}
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	kv := initStores(cfg, logger)

	// Initialize OpenTelemetry
	shutdownTracing := func() {}
	if cfg.TracingEnabled {
		shutdownTracing, err = middleware.InitTracing(serviceName, cfg.JaegerEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	// Kafka is only needed for the kafka sync transport or event publishing
	var producer sarama.SyncProducer
	if cfg.EventsEnabled || cfg.SyncTransport == "kafka" {
		producer, err = kafka.InitProducer(cfg.KafkaBroker, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
	}

	profileBreaker := circuitbreaker.NewCircuitBreaker("customer-api", 5, 30*time.Second, logger)
	remote := customer.NewHTTPRemote(cfg.CustomerAPIURL, cfg.GatewayTimeout, profileBreaker, logger)
	syncHandler := customer.SyncHandler(remote, logger)

	var (
		queue    syncqueue.Queue
		worker   *syncqueue.Worker
		consumer sarama.Consumer
	)
	switch cfg.SyncTransport {
	case "kafka":
		queue = kafka.NewPublisher(producer, cfg.CustomerSyncTopic, logger)
		consumer, err = kafka.InitConsumer(cfg.KafkaBroker, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
		}
		policy := kafka.RetryPolicy{MaxRetries: cfg.SyncMaxRetries, Backoff: syncqueue.LinearBackoff(cfg.SyncBackoff)}
		go func() {
			if err := kafka.StartConsumer(ctx, consumer, cfg.CustomerSyncTopic, syncHandler, policy, logger); err != nil {
				logger.Error("Customer sync consumer stopped", zap.Error(err))
			}
		}()
	default:
		worker = syncqueue.NewWorker(syncHandler, syncqueue.WorkerConfig{
			Workers:    cfg.SyncWorkers,
			MaxRetries: cfg.SyncMaxRetries,
			Backoff:    syncqueue.LinearBackoff(cfg.SyncBackoff),
		}, logger)
		// Stopped explicitly on shutdown so queued syncs drain
		worker.Start(context.Background())
		queue = worker
	}

	var (
		orderEvents   checkout.Publisher
		paymentEvents payments.Publisher
	)
	if cfg.EventsEnabled {
		events := kafka.NewEventPublisher(producer, cfg.OrderEventsTopic, logger)
		orderEvents = events
		paymentEvents = events
	}

	gatewayBreaker := circuitbreaker.NewCircuitBreaker("payment-gateway", 5, 30*time.Second, logger)
	gatewayClient := gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, gatewayBreaker, logger)
	merchant := payments.Merchant{
		PixKey: cfg.PixKey,
		Name:   cfg.MerchantName,
		City:   cfg.MerchantCity,
	}
	if err := merchant.Validate(); err != nil {
		logger.Fatal("Invalid merchant configuration", zap.Error(err))
	}
	ledger := payments.NewLedger(store.Namespace(kv.records, "ledger:"), merchant, paymentEvents, logger)

	sessions := session.NewManager(kv.durable, kv.scratch, remote, queue, session.Config{}, logger)
	sessions.StartJanitor(ctx, time.Minute, cfg.SessionIdle)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	products := catalog.Default()
	productHandler := handlers.NewProductHandler(products, logger)
	router.GET("/products", productHandler.GetProducts)
	router.GET("/products/:id", productHandler.GetProduct)

	// Storefront endpoints act on the caller's session
	shop := router.Group("/", middleware.SessionMiddleware(int(cfg.SessionTTL.Seconds())))

	cartHandler := handlers.NewCartHandler(sessions, products, logger)
	shop.GET("/cart", cartHandler.GetCart)
	shop.POST("/cart/items", cartHandler.AddItem)
	shop.PATCH("/cart/items/:productId", cartHandler.UpdateQuantity)
	shop.DELETE("/cart/items/:productId", cartHandler.RemoveItem)
	shop.DELETE("/cart", cartHandler.ClearCart)
	shop.POST("/cart/open", cartHandler.OpenCart)

	couponHandler := handlers.NewCouponHandler(sessions, logger)
	shop.GET("/coupons", couponHandler.GetCoupons)
	shop.POST("/coupons/:id/activate", couponHandler.ActivateCoupon)
	shop.DELETE("/coupons/active", couponHandler.DeactivateCoupon)
	shop.GET("/coupons/applicable", couponHandler.GetApplicable)

	customerHandler := handlers.NewCustomerHandler(sessions, logger)
	shop.GET("/customer", customerHandler.GetCustomer)
	shop.PATCH("/customer", customerHandler.UpdateCustomer)

	checkoutHandler := handlers.NewCheckoutHandler(sessions, checkout.NewService(gatewayClient, orderEvents, logger), logger)
	shop.POST("/checkout/pix", checkoutHandler.CreatePix)
	shop.GET("/checkout/confirmation", checkoutHandler.GetConfirmation)

	orderHandler := handlers.NewOrderHandler(sessions, logger)
	shop.GET("/orders", orderHandler.GetOrders)

	registerMockServices(router, cfg, ledger, store.Namespace(kv.records, "profiles:"), logger)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Storefront Service started",
		zap.String("port", cfg.Port),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("sync_transport", cfg.SyncTransport),
	)

	gracefulShutdown(srv, cancel, sessions, worker, producer, consumer, kv, shutdownTracing, logger)
}

// registerMockServices mounts the in-process profile service and payment
// gateway. They are only served with MOCK_GATEWAY enabled; otherwise the
// storefront must be pointed at the real services.
func registerMockServices(router gin.IRoutes, cfg *config.Config, ledger *payments.Ledger, profiles store.Store, logger *zap.Logger) bool {
	self := "http://localhost:" + cfg.Port
	if !cfg.MockGateway {
		if cfg.GatewayURL == self || cfg.CustomerAPIURL == self {
			logger.Warn("Mock gateway disabled but upstream URLs point at this service",
				zap.String("gateway_url", cfg.GatewayURL),
				zap.String("customer_api_url", cfg.CustomerAPIURL),
			)
		}
		return false
	}

	if cfg.WebhookSecret == "" {
		logger.Warn("Mock gateway enabled without WEBHOOK_SECRET; payment webhooks are unauthenticated")
	}

	profileHandler := handlers.NewProfileHandler(profiles, logger)
	router.GET("/api/customers/:cpf", profileHandler.GetProfile)
	router.PUT("/api/customers/:cpf", profileHandler.PutProfile)

	paymentHandler := handlers.NewPaymentHandler(ledger, cfg.WebhookSecret, logger)
	router.POST("/api/create-pix", paymentHandler.CreatePix)
	router.GET("/api/order-status", paymentHandler.GetOrderStatus)
	router.POST("/api/webhook/payment", paymentHandler.Webhook)

	logger.Info("Mock gateway and profile service mounted")
	return true
}

func initStores(cfg *config.Config, logger *zap.Logger) stores {
	if cfg.StoreBackend == "memory" {
		logger.Warn("Using in-memory store; state is lost on restart")
		return stores{
			durable: store.NewMemoryStore(),
			scratch: store.NewMemoryStore(),
			records: store.NewMemoryStore(),
			close:   func() {},
		}
	}

	rdb, err := store.InitRedis(cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	return stores{
		durable: store.NewRedisStore(rdb, "storefront:", cfg.SessionTTL),
		scratch: store.NewRedisStore(rdb, "storefront:", cfg.ScratchTTL),
		records: store.NewRedisStore(rdb, "storefront:", 0),
		close: func() {
			if err := rdb.Close(); err != nil {
				logger.Error("Failed to close Redis", zap.Error(err))
			} else {
				logger.Info("Redis connection closed gracefully")
			}
		},
	}
}

// gracefulShutdown handles SIGINT/SIGTERM and shuts down all services gracefully
func gracefulShutdown(
	srv *http.Server,
	cancel context.CancelFunc,
	sessions *session.Manager,
	worker *syncqueue.Worker,
	producer sarama.SyncProducer,
	consumer sarama.Consumer,
	kv stores,
	shutdownTracing func(),
	logger *zap.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received. Exiting...")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Stop HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	// Stop the janitor and the Kafka consumer loop
	cancel()

	// Stop coupon countdowns and pending profile refreshes
	sessions.Close()
	logger.Info("Sessions closed")

	// Drain queued customer syncs
	if worker != nil {
		worker.Stop(ctx)
		logger.Info("Sync worker stopped")
	}

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("Failed to close Kafka consumer", zap.Error(err))
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("Failed to close Kafka producer", zap.Error(err))
		} else {
			logger.Info("Kafka producer closed gracefully")
		}
	}

	kv.close()

	// Shutdown tracing
	shutdownTracing()
	logger.Info("Storefront Service exited gracefully")
}

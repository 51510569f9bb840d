package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port   string
	AppEnv string

	StoreBackend  string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	ScratchTTL    time.Duration
	SessionIdle   time.Duration

	SyncTransport     string
	SyncWorkers       int
	SyncMaxRetries    int
	SyncBackoff       time.Duration
	KafkaBroker       string
	CustomerSyncTopic string
	OrderEventsTopic  string
	EventsEnabled     bool

	GatewayURL     string
	GatewayTimeout time.Duration
	CustomerAPIURL string

	// MockGateway mounts the in-process payment ledger and profile API.
	MockGateway   bool
	WebhookSecret string

	PixKey       string
	MerchantName string
	MerchantCity string

	TracingEnabled bool
	JaegerEndpoint string
}

// Load reads an optional .env file and then the process environment.
func Load(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	port := getEnv("PORT", "8080")
	self := "http://localhost:" + port
	appEnv := getEnv("APP_ENV", "production")

	return &Config{
		Port:   port,
		AppEnv: appEnv,

		StoreBackend:  getEnv("STORE_BACKEND", "redis"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt(logger, "REDIS_DB", 0),
		SessionTTL:    getDuration(logger, "SESSION_TTL", 30*24*time.Hour),
		ScratchTTL:    getDuration(logger, "SCRATCH_TTL", 2*time.Hour),
		SessionIdle:   getDuration(logger, "SESSION_IDLE", 30*time.Minute),

		SyncTransport:     getEnv("SYNC_TRANSPORT", "memory"),
		SyncWorkers:       getInt(logger, "SYNC_WORKERS", 2),
		SyncMaxRetries:    getInt(logger, "SYNC_MAX_RETRIES", 3),
		SyncBackoff:       getDuration(logger, "SYNC_BACKOFF", time.Second),
		KafkaBroker:       getEnv("KAFKA_BROKER", "localhost:9092"),
		CustomerSyncTopic: getEnv("CUSTOMER_SYNC_TOPIC", "customer_sync"),
		OrderEventsTopic:  getEnv("ORDER_EVENTS_TOPIC", "order_events"),
		EventsEnabled:     getBool(logger, "EVENTS_ENABLED", false),

		GatewayURL:     getEnv("GATEWAY_URL", self),
		GatewayTimeout: getDuration(logger, "GATEWAY_TIMEOUT", 10*time.Second),
		CustomerAPIURL: getEnv("CUSTOMER_API_URL", self),

		MockGateway:   getBool(logger, "MOCK_GATEWAY", appEnv == "development"),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		PixKey:       getEnv("PIX_KEY", "pix@loja.example.com"),
		MerchantName: getEnv("MERCHANT_NAME", "Loja"),
		MerchantCity: getEnv("MERCHANT_CITY", "Sao Paulo"),

		TracingEnabled: getBool(logger, "TRACING_ENABLED", false),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(logger *zap.Logger, key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("Invalid integer in environment, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Int("default", defaultValue),
		)
		return defaultValue
	}
	return v
}

func getBool(logger *zap.Logger, key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("Invalid boolean in environment, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Bool("default", defaultValue),
		)
		return defaultValue
	}
	return v
}

func getDuration(logger *zap.Logger, key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("Invalid duration in environment, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Duration("default", defaultValue),
		)
		return defaultValue
	}
	return v
}

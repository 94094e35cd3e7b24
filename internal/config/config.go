package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=payments sslmode=disable"

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	AutoMigrate bool
	RedisAddr   string
	LogLevel    string

	KafkaBrokers       []string
	KafkaCallbackTopic string
	KafkaEventsTopic   string
	KafkaGroupID       string

	JWTSecret      string
	TokenTTL       time.Duration
	CallbackSecret string

	GatewayBaseURL    string
	GatewayAppID      string
	GatewaySecret     string
	GatewayAPIVersion string
	GatewayReturnURL  string
	GatewayTimeout    time.Duration

	Currency     string
	BusinessName string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	SMSAPIURL   string
	SMSAPIKey   string
	SMSSenderID string

	ReceiptDir      string
	ReceiptBaseURL  string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKeyID   string
	S3SecretKey     string
	S3PresignExpiry time.Duration

	CORSAllowedOrigins []string
	TrustedProxies     []string
	OTLPEndpoint       string

	DispatchTimeout time.Duration
	ChannelTimeout  time.Duration
	OrderRateLimit  int
	CacheTTL        time.Duration
}

// Load reads an optional .env file and the process environment once. The
// returned Config is passed to constructors; nothing else reads the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN: getEnv("POSTGRES_DSN", defaultPostgresDSN),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		KafkaBrokers:       splitList(getEnv("KAFKA_BROKER", "localhost:9092")),
		KafkaCallbackTopic: getEnv("KAFKA_CALLBACK_TOPIC", "payment-callbacks"),
		KafkaEventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "transactions"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "payment-service"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		CallbackSecret: os.Getenv("CALLBACK_SECRET"),

		GatewayBaseURL:    getEnv("GATEWAY_BASE_URL", "https://sandbox.cashfree.com/pg"),
		GatewayAppID:      os.Getenv("GATEWAY_APP_ID"),
		GatewaySecret:     os.Getenv("GATEWAY_SECRET"),
		GatewayAPIVersion: getEnv("GATEWAY_API_VERSION", "2022-09-01"),
		GatewayReturnURL:  os.Getenv("GATEWAY_RETURN_URL"),

		Currency:     getEnv("CURRENCY", "INR"),
		BusinessName: getEnv("BUSINESS_NAME", "FB Pay Business"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: os.Getenv("MAIL_FROM"),

		SMSAPIURL:   getEnv("SMS_API_URL", "https://www.fast2sms.com/dev/bulkV2"),
		SMSAPIKey:   os.Getenv("SMS_API_KEY"),
		SMSSenderID: getEnv("SMS_SENDER_ID", "TXTIND"),

		ReceiptDir:     getEnv("RECEIPT_DIR", "receipts"),
		ReceiptBaseURL: os.Getenv("RECEIPT_BASE_URL"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "auto"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:  os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:    os.Getenv("S3_SECRET_ACCESS_KEY"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "https://fbpaybusiness.netlify.app")),
		TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.AutoMigrate, err = getBool("AUTO_MIGRATE", false); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.OrderRateLimit, err = getInt("ORDER_RATE_LIMIT", 30); err != nil {
		return nil, err
	}
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"TOKEN_TTL", 7 * 24 * time.Hour, &cfg.TokenTTL},
		{"GATEWAY_TIMEOUT", 10 * time.Second, &cfg.GatewayTimeout},
		{"S3_PRESIGN_EXPIRY", 7 * 24 * time.Hour, &cfg.S3PresignExpiry},
		{"DISPATCH_TIMEOUT", 30 * time.Second, &cfg.DispatchTimeout},
		{"CHANNEL_TIMEOUT", 10 * time.Second, &cfg.ChannelTimeout},
		{"CACHE_TTL", time.Minute, &cfg.CacheTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CallbackSecret == "" {
		slog.Warn("CALLBACK_SECRET is not set, gateway callbacks are accepted unsigned")
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"gateway_base_url", cfg.GatewayBaseURL,
		"receipt_storage", cfg.ReceiptStorage())
	return cfg, nil
}

// DatabaseDSN resolves only the Postgres DSN, for tools that do not need the
// rest of the service configuration.
func DatabaseDSN() string {
	_ = godotenv.Load()
	return getEnv("POSTGRES_DSN", defaultPostgresDSN)
}

// ReceiptStorage names the receipt backend selected by the config.
func (c *Config) ReceiptStorage() string {
	if c.S3Bucket != "" {
		return "s3"
	}
	return "file"
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/PaymentServiceTochka/internal/api"
	"github.com/honeynil/PaymentServiceTochka/internal/config"
	"github.com/honeynil/PaymentServiceTochka/internal/handler"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/auth"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/gateway"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/kafka"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/notify"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/storage"
	"github.com/honeynil/PaymentServiceTochka/internal/observability"
	core "github.com/honeynil/PaymentServiceTochka/internal/repository/postgres"
	service "github.com/honeynil/PaymentServiceTochka/internal/services"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Логи, метрики, трейсы
	shutdownTracing, metricsHandler, err := observability.Setup(ctx, "payment-service", cfg)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		slog.Error("failed to connect to Postgres", "error", err)
		return err
	}
	if cfg.AutoMigrate {
		if err := core.Migrate(ctx, db); err != nil {
			return err
		}
		slog.Info("schema migrated")
	}

	transactionRepo := core.NewPostgresTransactionRepository(db)
	principalRepo := core.NewPostgresPrincipalRepository(db)

	// Redis is optional: without it the list is read from Postgres and
	// order creation is not rate limited.
	var redisClient redis.RedisClient
	if rc, err := redis.NewClient(ctx, cfg.RedisAddr); err != nil {
		slog.Warn("running without Redis", "error", err)
	} else {
		redisClient = rc
		defer rc.Close()
	}

	var producer kafka.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewProducer(cfg.KafkaBrokers)
		producer = p
		defer p.Close()
	}

	receiptStore, err := newReceiptStore(ctx, cfg)
	if err != nil {
		return err
	}

	dispatcher := &service.NotificationDispatcher{
		Renderer:       notify.NewPDFRenderer(cfg.BusinessName),
		Store:          receiptStore,
		Business:       cfg.BusinessName,
		Currency:       cfg.Currency,
		ChannelTimeout: cfg.ChannelTimeout,
	}
	if cfg.SMTPHost != "" {
		dispatcher.Mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		}, cfg.BusinessName)
	} else {
		slog.Warn("SMTP_HOST is not set, receipt emails are disabled")
	}
	if cfg.SMSAPIKey != "" {
		dispatcher.SMS = notify.NewFast2SMSSender(notify.Fast2SMSConfig{
			URL:      cfg.SMSAPIURL,
			APIKey:   cfg.SMSAPIKey,
			SenderID: cfg.SMSSenderID,
		})
	} else {
		slog.Warn("SMS_API_KEY is not set, SMS notifications are disabled")
	}

	tokens, err := auth.NewTokenAuthority(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	gw := gateway.NewCashfreeClient(gateway.CashfreeConfig{
		BaseURL:    cfg.GatewayBaseURL,
		AppID:      cfg.GatewayAppID,
		Secret:     cfg.GatewaySecret,
		APIVersion: cfg.GatewayAPIVersion,
		ReturnURL:  cfg.GatewayReturnURL,
		Timeout:    cfg.GatewayTimeout,
	})

	orders := service.NewOrderService(gw, transactionRepo, redisClient, cfg.Currency)
	recon := service.NewReconciliationService(transactionRepo, redisClient, producer, dispatcher, service.ReconciliationConfig{
		EventsTopic:     cfg.KafkaEventsTopic,
		Currency:        cfg.Currency,
		DispatchTimeout: cfg.DispatchTimeout,
	})
	authSvc := service.NewAuthService(principalRepo, tokens)
	reports := service.NewReportService(transactionRepo, redisClient, cfg.CacheTTL)

	var consumer *kafka.Consumer
	var consumerDone <-chan struct{}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaCallbackTopic != "" {
		consumer = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaCallbackTopic, cfg.KafkaGroupID, recon)
		consumerDone = consumer.Start(ctx)
	}

	routerCfg := api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        metricsHandler,
	}
	if cfg.ReceiptStorage() == "file" {
		routerCfg.ReceiptDir = cfg.ReceiptDir
	}
	if redisClient != nil {
		routerCfg.OrderLimit = api.NewRateLimiter(redisClient, "orders", cfg.OrderRateLimit, time.Minute, cfg.TrustedProxies)
	}

	h := handler.NewHandler(orders, recon, authSvc, reports, auth.NewCallbackVerifier(cfg.CallbackSecret))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(h, auth.NewAccessGuard(tokens), routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if consumer != nil {
		// ctx is cancelled, so an in-flight settlement fails fast on the store.
		<-consumerDone
		consumer.Close()
	}
	// No new settlements can start past this point, so every dispatch is
	// counted before Wait.
	recon.Wait()
	slog.Info("server stopped")
	return nil
}

func newReceiptStore(ctx context.Context, cfg *config.Config) (storage.ReceiptStore, error) {
	if cfg.ReceiptStorage() == "s3" {
		return storage.NewS3ReceiptStore(ctx, storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKeyID:   cfg.S3AccessKeyID,
			SecretKey:     cfg.S3SecretKey,
			PresignExpiry: cfg.S3PresignExpiry,
		})
	}
	return storage.NewFileReceiptStore(cfg.ReceiptDir, cfg.ReceiptBaseURL)
}

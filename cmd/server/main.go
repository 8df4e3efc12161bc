package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billpay-be/internal/auth"
	"billpay-be/internal/config"
	"billpay-be/internal/db"
	"billpay-be/internal/events"
	"billpay-be/internal/idempotency"
	"billpay-be/internal/logger"
	"billpay-be/internal/middleware"
	"billpay-be/internal/payment"
	"billpay-be/internal/payment/checkout"
	"billpay-be/internal/payment/webhook"
	"billpay-be/internal/paymentrequest"
	"billpay-be/internal/receipt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// infra holds the optional backing services. Zero values disable them.
type infra struct {
	nrApp     *newrelic.Application
	idemStore idempotency.Store
	publisher events.Publisher
}

type handlers struct {
	checkout *checkout.Handler
	webhook  *webhook.Handler
	requests *paymentrequest.Handler
	receipts *receipt.Handler
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if !cfg.GatewayConfigured() {
		logger.L().Warn("Razorpay credentials not configured; order creation will fail")
	}

	nrApp := newRelicApp(cfg)

	database := initDBFunc(cfg)
	defer database.Close()

	deps := connectInfra(cfg, nrApp)
	defer deps.publisher.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      newServer(cfg, database, deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("Server running", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-quit:
		logger.L().Info("Shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if nrApp != nil {
		nrApp.Shutdown(cfg.ShutdownTimeout)
	}
	logger.L().Info("Server exited")
	return nil
}

func newRelicApp(cfg *config.Config) *newrelic.Application {
	if !cfg.NewRelicEnabled || cfg.NewRelicLicenseKey == "" {
		return nil
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.NewRelicAppName),
		newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		logger.L().Error("Failed to initialize New Relic", zap.Error(err))
		return nil
	}
	logger.L().Info("New Relic enabled", zap.String("app", cfg.NewRelicAppName))
	return app
}

// connectInfra dials Redis and Kafka when configured. Redis being down
// leaves idempotency to the database constraint.
func connectInfra(cfg *config.Config, nrApp *newrelic.Application) infra {
	deps := infra{
		nrApp:     nrApp,
		publisher: events.New(cfg.KafkaBrokers, cfg.KafkaPaymentTopic),
	}

	if cfg.RedisAddr == "" {
		logger.L().Info("Redis not configured; idempotency cache disabled")
		return deps
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nrApp)
	if err != nil {
		logger.L().Warn("Redis unavailable; idempotency cache disabled", zap.Error(err))
		return deps
	}
	deps.idemStore = idempotency.NewRedisStore(client)
	return deps
}

func newServer(cfg *config.Config, database *sql.DB, deps infra) http.Handler {
	paymentRepo := payment.NewRepository(database)
	gateway := payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL)
	paymentSvc := payment.NewService(paymentRepo, gateway, deps.publisher)

	requestSvc := paymentrequest.NewService(paymentrequest.NewRepository(database), paymentrequest.LinkConfig{
		PublicAppURL: cfg.PublicAppURL,
		UPIVPA:       cfg.UPIVPA,
		PayeeName:    cfg.UPIPayeeName,
	})
	receiptSvc := receipt.NewService(receipt.NewRepository(database), paymentSvc)

	h := handlers{
		checkout: checkout.NewHandler(paymentSvc),
		webhook:  webhook.NewWebhookHandler(paymentSvc, paymentRepo, cfg.RazorpayWebhookSecret),
		requests: paymentrequest.NewHandler(requestSvc),
		receipts: receipt.NewHandler(receiptSvc),
	}

	return setupRouter(cfg, h, auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience), deps)
}

func setupRouter(cfg *config.Config, h handlers, verifier middleware.TokenVerifier, deps infra) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, handler http.Handler) {
		mux.Handle(newrelic.WrapHandle(deps.nrApp, pattern, handler))
	}
	limited := middleware.RateLimit(cfg.InternalSecretKey)
	protected := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(verifier)(limited(idempotency.Middleware(deps.idemStore)(fn)))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	handle("POST /api/payments/orders", protected(h.checkout.CreateOrder))
	handle("GET /api/payments", protected(h.checkout.ListPayments))
	handle("GET /api/payments/{paymentId}", protected(h.checkout.GetPayment))
	handle("POST /api/payments/{paymentId}/receipt", protected(h.receipts.Generate))
	handle("GET /api/payments/{paymentId}/receipt", protected(h.receipts.Get))
	handle("POST /api/payment-requests", protected(h.requests.Create))
	handle("GET /api/payment-requests", protected(h.requests.List))
	handle("POST /api/webhooks/razorpay", limited(http.HandlerFunc(h.webhook.PaymentWebhookHandler)))

	var root http.Handler = mux
	root = middleware.CORS(cfg.CORSAllowedOrigin)(root)
	root = middleware.Recovery(root)
	root = middleware.LoggingMiddleware(root)
	root = logger.RequestIDMiddleware(root)
	return root
}

// Package app wires the storefront together: configuration, database,
// gateways, HTTP server, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hntran/storefront/internal/domain/coupon"
	"github.com/hntran/storefront/internal/domain/order"
	"github.com/hntran/storefront/internal/domain/payment"
	"github.com/hntran/storefront/internal/gateway/momo"
	"github.com/hntran/storefront/internal/gateway/vnpay"
	"github.com/hntran/storefront/internal/handler"
	"github.com/hntran/storefront/internal/mailer"
	"github.com/hntran/storefront/internal/repository"
	"github.com/hntran/storefront/pkg/health"
	"github.com/hntran/storefront/pkg/httpmiddleware"
)

// nopMailer is used when no SMTP host is configured. Confirmations are
// logged instead of sent.
type nopMailer struct{}

func (nopMailer) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	zctx.From(ctx).Info("Mail disabled, skipping order confirmation",
		zap.String("order_code", o.Code))
	return nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Payment gateways. Misconfigured credentials fail here, not on the
	// first checkout.
	vnpayGW, err := vnpay.New(vnpay.Config{
		BaseURL:    cfg.VNPay.BaseURL,
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		ReturnURL:  cfg.VNPay.ReturnURL,
		Version:    cfg.VNPay.Version,
		Command:    cfg.VNPay.Command,
		CurrCode:   cfg.VNPay.CurrCode,
		Locale:     cfg.VNPay.Locale,
		TimeZone:   cfg.VNPay.TimeZone,
	})
	if err != nil {
		return errors.Wrap(err, "create vnpay gateway")
	}
	momoGW, err := momo.New(momo.Config{
		Endpoint:    cfg.MoMo.Endpoint,
		PartnerCode: cfg.MoMo.PartnerCode,
		AccessKey:   cfg.MoMo.AccessKey,
		SecretKey:   cfg.MoMo.SecretKey,
		ReturnURL:   cfg.MoMo.ReturnURL,
		NotifyURL:   cfg.MoMo.NotifyURL,
	})
	if err != nil {
		return errors.Wrap(err, "create momo gateway")
	}

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)
	reportRepo := repository.NewReportRepository(pool)

	// Order confirmation mail.
	var confirmations payment.Mailer = nopMailer{}
	if cfg.SMTP.Host != "" {
		confirmations = mailer.New(mailer.Config{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			FromAddress: cfg.SMTP.FromAddress,
			FromName:    cfg.SMTP.FromName,
		})
	}

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	orderService := order.NewService(productRepo, couponValidator, orderRepo)
	settlementService := payment.NewService(paymentRepo, attemptRepo, orderService, confirmations)

	// HTTP handlers.
	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		productRepo,
		orderService,
		settlementService,
		attemptRepo,
		vnpayGW,
		momoGW,
		reportRepo,
	)
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, securityHandler.RequireScope("reports"))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

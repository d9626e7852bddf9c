package main

import (
	"context"
	"net/http"

	"linepay-gateway/internal/auditlog"
	"linepay-gateway/internal/config"
	"linepay-gateway/internal/db"
	"linepay-gateway/internal/linepay"
	"linepay-gateway/internal/logger"
	"linepay-gateway/internal/metrics"
	"linepay-gateway/internal/middleware"
	"linepay-gateway/internal/order"
	"linepay-gateway/internal/payment"
	"linepay-gateway/internal/payment/confirm"
	"linepay-gateway/internal/settings"
	"linepay-gateway/internal/utils"

	"go.uber.org/zap"
)

type metaProvider interface {
	Meta(ctx context.Context) payment.Meta
}

func setupRouter(
	payHandler *payment.Handler,
	confirmHandler *confirm.Handler,
	gateway metaProvider,
	requireAdmin func(http.Handler) http.Handler,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /checkout/linepay/pay", payHandler.HandlePay)
	mux.HandleFunc("GET /checkout/linepay/meta", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, gateway.Meta(r.Context()), http.StatusOK)
	})

	mux.HandleFunc("GET /payments/linepay/confirm", confirmHandler.HandleReturn)
	mux.HandleFunc("GET /payments/linepay/cancel", confirmHandler.HandleCancel)

	mux.Handle("POST /admin/linepay/refund", requireAdmin(http.HandlerFunc(payHandler.HandleRefund)))

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, metrics.Snapshot(), http.StatusOK)
	})

	return mux
}

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := db.InitDB(cfg)
	defer database.Close()

	settingsSvc, err := settings.NewService(settings.NewRepository(database), cfg.EncryptionKey)
	if err != nil {
		log.Fatal("Invalid encryption key", zap.Error(err))
	}

	// Surface incomplete credentials at boot instead of on the first
	// checkout. The gateway still fails closed either way.
	if err := settingsSvc.Validate(context.Background()); err != nil {
		log.Warn("LINE Pay credentials are not fully configured", zap.Error(err))
	}

	audit := auditlog.NewSink(database)
	lpClient := linepay.NewClient(settingsSvc, audit)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo)

	gateway := payment.NewLinePayGateway(lpClient, settingsSvc, orderRepo, audit, cfg.SiteURL, cfg.CheckoutURL)
	payHandler := payment.NewHandler(gateway, orderRepo)
	confirmHandler := confirm.NewHandler(orderRepo, orderSvc, lpClient, audit, cfg.ReceiptURL, cfg.CheckoutURL)

	mux := setupRouter(payHandler, confirmHandler, gateway, middleware.RequireAdmin(cfg.JWTSecret))

	handler := middleware.CORS(cfg.SiteURL)(
		middleware.RateLimitMiddleware(
			middleware.LoggingMiddleware(mux),
		),
	)

	log.Info("LINE Pay gateway listening", zap.String("port", cfg.AppPort))
	if err := http.ListenAndServe(":"+cfg.AppPort, handler); err != nil {
		log.Fatal("Server stopped", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/config"
	"github.com/vasiliy-maslov/winex/internal/dashboard"
	"github.com/vasiliy-maslov/winex/internal/db"
	winexHttp "github.com/vasiliy-maslov/winex/internal/handler/http"
	"github.com/vasiliy-maslov/winex/internal/notify"
	"github.com/vasiliy-maslov/winex/internal/order"
	"github.com/vasiliy-maslov/winex/internal/payment"
)

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil || cfg.App.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.App.Name).Logger()
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg)

	log.Info().Str("env", cfg.App.Env).Str("timezone", cfg.App.Timezone).Msg("winex starting...")

	reportDB, err := db.ConnectReporting(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect reporting database")
	}
	defer reportDB.Close()

	if err := db.ApplyMigrations(reportDB, cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pg, err := db.New(ctx, cfg.Postgres)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	var gateway payment.Gateway = payment.OfflineGateway{}
	if cfg.Payment.GatewayURL != "" {
		gateway = payment.NewHTTPGateway(cfg.Payment.GatewayURL, cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.Timeout)
		log.Info().Str("gateway_url", cfg.Payment.GatewayURL).Msg("Using HTTP payment gateway")
	} else {
		log.Warn().Msg("PAYMENT_GATEWAY_URL is not set, charges are recorded offline")
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Notify.AMQPURL != "" {
		amqpNotifier, err := notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	}

	pricing := cart.Pricing{TaxRate: cfg.Pricing.TaxRate, ServiceFee: cfg.Pricing.ServiceFee}
	loc := cfg.Location()

	catalogSvc := catalog.NewService(catalog.NewRepository(pg.Pool))
	cartSvc := cart.NewService(cart.NewRepository(pg.Pool), catalogSvc, pricing)
	orderSvc := order.NewService(order.NewPostgresStore(pg.Pool), gateway, notifier, pricing,
		order.WithCurrency(cfg.Pricing.Currency),
		order.WithLocation(loc),
	)
	dashboardSvc := dashboard.NewService(dashboard.NewRepository(reportDB, loc), catalogSvc,
		dashboard.WithDisplayLimit(cfg.Dashboard.DisplayLimit),
		dashboard.WithLocation(loc),
	)

	if cfg.App.StaffTokenHash == "" {
		log.Warn().Msg("STAFF_TOKEN_HASH is not set, staff routes will reject every request")
	}

	router := winexHttp.NewRouter(winexHttp.RouterConfig{
		Cart:           winexHttp.NewCartHandler(cartSvc, catalogSvc),
		Orders:         winexHttp.NewOrderHandler(orderSvc),
		Dashboard:      winexHttp.NewDashboardHandler(dashboardSvc, loc),
		StaffTokenHash: cfg.App.StaffTokenHash,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/api"
	"github.com/Ajaydeep123/TradeOpx/internal/config"
	"github.com/Ajaydeep123/TradeOpx/internal/correlator"
	"github.com/Ajaydeep123/TradeOpx/internal/transport/kafka"
)

// Gateway process: HTTP front door. Validates shape, forwards through the
// correlator, maps engine responses to HTTP statuses.
func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := kafka.New(cfg.KafkaBrokers, "api-server", log)
	defer broker.Close()

	corr := correlator.New(broker, broker, cfg.RequestTimeout, log)
	if err := corr.Start(ctx); err != nil {
		log.Fatal("failed to start correlator", zap.Error(err))
	}

	handler := api.NewHandler(corr, log)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", handler.Routes())

	srv := &http.Server{
		Addr:    cfg.GatewayAddr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting gateway", zap.String("addr", cfg.GatewayAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

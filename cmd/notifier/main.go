package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/config"
	"github.com/Ajaydeep123/TradeOpx/internal/transport/kafka"
	"github.com/Ajaydeep123/TradeOpx/internal/ws"
)

// Notifier process: relays market-data bus messages to subscribed WebSocket
// clients.
func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := kafka.New(cfg.KafkaBrokers, "websocket-server", log)
	defer broker.Close()

	hub := ws.NewHub(broker, log)
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error("hub stopped", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)

	srv := &http.Server{Addr: cfg.NotifierAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting notifier", zap.String("addr", cfg.NotifierAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("notifier failed", zap.Error(err))
	}
}

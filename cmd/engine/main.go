package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/auth"
	"github.com/Ajaydeep123/TradeOpx/internal/config"
	"github.com/Ajaydeep123/TradeOpx/internal/engine"
	"github.com/Ajaydeep123/TradeOpx/internal/transport/kafka"
)

// Engine process: the single authoritative writer. One consumer on the request
// queue, one dispatch goroutine, all state in memory.
func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := kafka.New(cfg.KafkaBrokers, "engine", log)
	defer broker.Close()

	authSvc := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	eng := engine.New(authSvc, broker, broker, log)

	log.Info("starting engine", zap.Strings("brokers", cfg.KafkaBrokers))
	eng.Run(ctx)
}

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"natours/api/internal/cache"
	"natours/api/internal/config"
	"natours/api/internal/log"
	"natours/api/internal/queue"
	"natours/api/internal/tasks"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewProcessor(tasks.NewLogSender(logger), cfg.Reset.URLBase, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Reset.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)
	logger.Info().Str("stream", cfg.Reset.Stream).Msg("reset delivery worker started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited")
}

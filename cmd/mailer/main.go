// Command mailer consumes the notifications queue and writes each rendered
// mail to the outbox directory.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/authcore/internal/config"
	"github.com/iliyamo/authcore/internal/queue"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg).With().Str("component", "mailer").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer := queue.NewMailer(cfg.OutboxDir, cfg.ResetLinkBase)
	log.Info().Str("queue", cfg.NotificationQueue).Str("outbox", cfg.OutboxDir).Msg("starting")

	err := queue.StartNotificationConsumer(ctx, cfg.RabbitMQURL, cfg.NotificationQueue, mailer, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("consumer stopped")
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/admin-dashboard/internal/core/events"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "events",
	Short: "Event management commands",
	Long:  `Consume auth events from RabbitMQ or publish a test event through the forwarder`,
}

var consumeEventsCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume and log auth events",
	Run: func(cmd *cobra.Command, args []string) {
		consumeEvents()
	},
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long:  `Publish a test event through the event bus and, when configured, to RabbitMQ`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var eventData string

func consumeEvents() {
	cfg := mustLoadConfig()
	lg := logger.LoggerWrapper()

	if cfg.Events.AMQPURL == "" {
		fmt.Fprintln(os.Stderr, "events.amqp_url is not configured")
		os.Exit(1)
	}

	fwd, conn, err := events.DialAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.Queue, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to RabbitMQ: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = fwd.Close()
		_ = conn.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("consuming auth events", "queue", cfg.Events.Queue)
	err = events.Consume(ctx, conn, cfg.Events.Queue, lg, func(ctx context.Context, env events.Envelope) error {
		lg.InfoContext(ctx, "auth event",
			"event_id", env.ID,
			"event_type", env.Type,
			"timestamp", env.Timestamp,
			"data", env.Data)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		lg.Error("event consumer stopped", "error", err)
		os.Exit(1)
	}
	lg.Info("event consumer shutdown complete")
}

func publishTestEvent(eventType string) {
	cfg := mustLoadConfig()
	lg := logger.LoggerWrapper()

	bus := events.NewEventBus(lg)
	bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	if cfg.Events.AMQPURL != "" {
		fwd, conn, err := events.DialAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.Queue, lg)
		if err != nil {
			lg.Warn("rabbitmq unavailable, publishing locally only", "error", err)
		} else {
			defer func() {
				_ = fwd.Close()
				_ = conn.Close()
			}()
			bus.Subscribe(eventType, fwd.Handle)
		}
	}

	testEvent := events.NewAuthEvent(eventType, map[string]interface{}{
		"message": eventData,
		"source":  "cli-command",
	})

	lg.Info("publishing test event", "event_type", eventType, "event_id", testEvent.ID)

	if err := bus.PublishSync(context.Background(), testEvent); err != nil {
		lg.Error("failed to publish event", "error", err)
		return
	}

	lg.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")

	eventCmd.AddCommand(consumeEventsCmd)
	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}

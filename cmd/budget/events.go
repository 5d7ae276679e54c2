package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/log"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Consume item events from the queue and log them",
		Args:  cobra.NoArgs,
		RunE:  runEvents,
	}
}

func runEvents(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Bootstrap(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required to consume events")
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	err = client.ConsumeItemEvents(ctx, logItemEvent(logger.WithComponent(log.ComponentEvents)))
	if errors.Is(err, context.Canceled) {
		logger.Info("Event consumer stopped", log.FieldOperation, log.OpShutdown)
		return nil
	}
	return err
}

func logItemEvent(logger *log.Logger) func(context.Context, *amqp.ItemEvent) error {
	return func(ctx context.Context, e *amqp.ItemEvent) error {
		args := []any{
			log.FieldEventKind, e.Kind,
			log.FieldItemID, e.ItemID,
			"timestamp", e.Timestamp,
			log.FieldOperation, log.OpConsume,
		}
		if e.Item != nil {
			args = append(args,
				log.FieldCategory, e.Item.Category,
				log.FieldAmount, e.Item.Amount,
				log.FieldCurrency, e.Item.Currency,
				log.FieldItemType, e.Item.Type)
		}
		logger.InfoContext(ctx, "Item event", args...)
		return nil
	}
}

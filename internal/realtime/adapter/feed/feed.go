// Package feed pipes this gateway's exclusive RabbitMQ queue into the hub.
package feed

import (
	"context"
	"fmt"

	"deliveryhub/internal/realtime/app/core"
	"deliveryhub/internal/realtime/app/services"
	"deliveryhub/internal/xpkg/broker"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/logger"
)

type Feed struct {
	mb    *broker.RabbitMQ
	hub   *services.Hub
	mylog logger.Logger
}

func New(mb *broker.RabbitMQ, hub *services.Hub, mylog logger.Logger) *Feed {
	return &Feed{mb: mb, hub: hub, mylog: mylog.Action("feed")}
}

// Run consumes until ctx is done. A closed delivery channel is an error.
func (f *Feed) Run(ctx context.Context) error {
	queue, err := f.mb.DeclareExclusiveQueue(map[string][]string{
		events.RowChangesExchange: {"#"},
		events.AlertsExchange:     {"#"},
	})
	if err != nil {
		return fmt.Errorf("declare gateway queue: %w", err)
	}
	deliveries, err := f.mb.Consume(ctx, queue, "")
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	f.mylog.Info("listening", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return core.ErrFeedClosed
			}
			if err := f.hub.Route(d.Exchange, d.Body); err != nil {
				f.mylog.Warn("dropping message", "exchange", d.Exchange, "routing_key", d.RoutingKey, "err", err.Error())
			}
			if err := d.Ack(false); err != nil {
				f.mylog.Error("Failed to ack", err)
			}
		}
	}
}

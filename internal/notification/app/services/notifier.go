package services

import (
	"context"
	"encoding/json"
	"fmt"

	"deliveryhub/internal/alerts"
	"deliveryhub/internal/notification/app/core"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type Notifier struct {
	mb     core.IPublisher
	pusher core.IPusher
	mylog  logger.Logger
}

// NewNotifier builds a notifier. pusher may be nil when no webhook is configured.
func NewNotifier(mb core.IPublisher, pusher core.IPusher, mylog logger.Logger) *Notifier {
	return &Notifier{mb: mb, pusher: pusher, mylog: mylog}
}

// Handle resolves the alerts of one message body and fans them out.
// Decode errors wrap core.ErrBadPayload; any other error means the message should be retried.
func (n *Notifier) Handle(ctx context.Context, body []byte) (int, error) {
	var c events.RowChange
	if err := json.Unmarshal(body, &c); err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrBadPayload, err)
	}
	if c.Table == "" || c.Type == "" {
		return 0, fmt.Errorf("%w: table and type are required", core.ErrBadPayload)
	}

	list := alerts.Resolve(c)
	if len(list) == 0 {
		return 0, nil
	}
	log := n.mylog.Action("notification_received").With("table", c.Table, "type", c.Type, "change_id", c.ID)

	for _, a := range list {
		if err := n.mb.PublishJSON(ctx, events.AlertsExchange, a.RoutingKey(), a); err != nil {
			return 0, fmt.Errorf("publish alert %s to %s: %w", a.Event, a.Recipient, err)
		}
		httpx.AlertsDispatched.WithLabelValues(a.Event).Inc()

		if a.Push && n.pusher != nil {
			if err := n.pusher.Push(ctx, a); err != nil {
				// the in-app alert is already out, a lost push is not worth a redelivery
				log.Warn("push failed", "event", a.Event, "recipient", a.Recipient, "err", err.Error())
			}
		}
		log.Debug("alert sent", "event", a.Event, "recipient", a.Recipient, "push", a.Push)
	}
	log.Info("alerts dispatched", "count", len(list))
	return len(list), nil
}

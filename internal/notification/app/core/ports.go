package core

import (
	"context"

	"deliveryhub/internal/xpkg/events"
)

type IPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, v any) error
}

// IPusher delivers an alert to devices outside the app.
type IPusher interface {
	Push(ctx context.Context, a events.Alert) error
}

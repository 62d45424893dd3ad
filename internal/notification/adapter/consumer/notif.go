package consumer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"deliveryhub/internal/notification/adapter/push"
	"deliveryhub/internal/notification/app/core"
	"deliveryhub/internal/notification/app/services"
	"deliveryhub/internal/xpkg/broker"
	"deliveryhub/internal/xpkg/config"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Notification struct {
	cfg    *config.Config
	params *core.SubscriberParams
	mylog  logger.Logger
	mb     *broker.RabbitMQ

	notifier     *services.Notifier
	ctx          context.Context
	notifyCancel context.CancelFunc

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewNotification(
	ctx context.Context,
	notifyCancel context.CancelFunc,
	cfg *config.Config,
	params *core.SubscriberParams,
	mylog logger.Logger,
) *Notification {
	return &Notification{
		ctx:          ctx,
		notifyCancel: notifyCancel,
		cfg:          cfg,
		params:       params,
		mylog:        mylog,
	}
}

// Run connects to RabbitMQ and consumes notifications until the context is cancelled.
func (n *Notification) Run() error {
	mylog := n.mylog.Action("Run-notifications")

	mb, err := broker.New(n.ctx, n.cfg.RMQ, n.mylog, n.params.Prefetch)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	n.mu.Lock()
	n.mb = mb
	n.mu.Unlock()
	mylog.Action("mb_connected").Info("Successful message broker connection")

	var pusher core.IPusher
	if n.cfg.Push.WebhookURL != "" {
		pusher = push.NewWebhook(n.cfg.Push.WebhookURL, n.cfg.Push.Timeout)
		mylog.Info("push webhook enabled", "timeout", n.cfg.Push.Timeout.String())
	}
	n.notifier = services.NewNotifier(mb, pusher, n.mylog)

	messageBus, err := mb.Consume(n.ctx, events.NotificationsQueue, n.params.WorkerName)
	if err != nil {
		return fmt.Errorf("failed to consume message from rabbitmq: %w", err)
	}

	if n.params.MetricsPort > 0 {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			mux := http.NewServeMux()
			mux.Handle("GET /health", httpx.Health())
			mux.Handle("GET /metrics", httpx.MetricsHandler())
			if err := httpx.Serve(n.ctx, n.params.MetricsPort, mux, n.mylog); err != nil {
				n.mylog.Action("metrics_server_failed").Error("Metrics server stopped", err)
			}
		}()
	}

	n.work(messageBus)
	return nil
}

func (n *Notification) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.mylog.Action("graceful_shutdown_started").Info("Shutting down")

	n.wg.Wait()

	if n.mb != nil {
		if err := n.mb.Close(); err != nil {
			n.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		n.mylog.Action("mb_closed").Info("Message broker closed")
	}

	n.mylog.Action("graceful_shutdown_completed").Info("Successfully shutted down")
	return nil
}

func (n *Notification) work(notifCh <-chan amqp.Delivery) {
	for {
		select {
		case <-n.ctx.Done():
			n.mylog.Action("work_shutdown").Info("Stopping message consumption due to context cancel")
			return

		case msg, ok := <-notifCh:
			if !ok {
				n.mylog.Action("work_shutdown").Warn("delivery channel closed, app is shutting down")
				n.notifyCancel()
				return
			}
			n.wg.Add(1)
			go func(msg amqp.Delivery) {
				defer n.wg.Done()
				n.processMsg(msg)
			}(msg)
		}
	}
}

// processMsg acks handled messages, dead-letters undecodable ones and requeues the rest.
func (n *Notification) processMsg(msg amqp.Delivery) {
	ctx, cancel := context.WithTimeout(n.ctx, core.WaitTime*time.Second)
	defer cancel()

	_, err := n.notifier.Handle(ctx, msg.Body)
	switch {
	case err == nil:
		if err := msg.Ack(false); err != nil {
			n.mylog.Action("Ack").Error("Failed to ack", err)
			n.checkBroker()
		}
		return
	case errors.Is(err, core.ErrBadPayload):
		n.mylog.Action("processMsg").Error("Bad message, sending to dead letter queue", err)
		n.nack(msg, false)
	default:
		n.mylog.Action("processMsg").Error("Failed to dispatch alerts, requeueing", err)
		n.nack(msg, true)
	}
}

func (n *Notification) nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		n.mylog.Action("Nack").Error("Failed to nack", err)
		n.checkBroker()
	}
}

func (n *Notification) checkBroker() {
	if err := n.mb.IsAlive(); err != nil {
		n.mylog.Action("Nack").Info("no point to live, app is shutting down")
		n.notifyCancel()
	}
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const reconnInterval = 5 * time.Second

type RabbitMQ struct {
	ctx          context.Context
	cfg          *config.RabbitMQ
	conn         *amqp.Connection
	ch           *amqp.Channel
	mylog        logger.Logger
	reconnecting bool
	mu           sync.Mutex

	prefetch int
}

// New connects, enables publisher confirms and declares the shared topology.
func New(ctx context.Context, rabbitmqCfg *config.RabbitMQ, mylog logger.Logger, prefetch int) (*RabbitMQ, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	r := &RabbitMQ{
		ctx:      ctx,
		cfg:      rabbitmqCfg,
		mylog:    mylog,
		prefetch: prefetch,
	}
	if err := r.connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrMBConn, err)
	}
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.cfg.URL())
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return err
	}

	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		conn.Close()
		return err
	}

	if err := declareTopology(ch); err != nil {
		conn.Close()
		return fmt.Errorf("declare topology: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.ch = ch
	r.reconnecting = false
	r.mu.Unlock()
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{events.RowChangesExchange, amqp.ExchangeTopic},
		{events.AlertsExchange, amqp.ExchangeTopic},
		{events.DeadLetterExchange, amqp.ExchangeFanout},
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return err
		}
	}

	dlArgs := amqp.Table{"x-dead-letter-exchange": events.DeadLetterExchange}
	queues := []struct {
		name     string
		args     amqp.Table
		exchange string
		key      string
	}{
		{events.DeadLetterQueue, nil, events.DeadLetterExchange, ""},
		{events.DispatchQueue, dlArgs, events.RowChangesExchange, "orders.*"},
		{events.NotificationsQueue, dlArgs, events.RowChangesExchange, "#"},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return err
		}
		if err := ch.QueueBind(q.name, q.key, q.exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *RabbitMQ) IsAlive() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return xerrors.ErrMBConn
	}
	if r.ch == nil || r.ch.IsClosed() {
		return xerrors.ErrMBCh
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %v", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %v", err)
		}
	}
	return nil
}

// Publish sends a persistent JSON message and waits for the broker confirm.
func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if err := r.IsAlive(); err != nil {
		r.mylog.Action("publish").Error("connection between rabbitmq is closed", err)
		go r.reconnect(r.ctx)
		return err
	}

	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait publisher confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("message to %s/%s was nacked by broker", exchange, routingKey)
	}
	return nil
}

func (r *RabbitMQ) PublishJSON(ctx context.Context, exchange, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Publish(ctx, exchange, routingKey, body)
}

func (r *RabbitMQ) Consume(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	return ch.ConsumeWithContext(ctx, queue, consumer, false, false, false, false, nil)
}

// DeclareExclusiveQueue declares a server-named queue that lives as long as this connection
// and binds it to every exchange/key pair given.
func (r *RabbitMQ) DeclareExclusiveQueue(bindings map[string][]string) (string, error) {
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", err
	}
	for exchange, keys := range bindings {
		for _, key := range keys {
			if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
				return "", fmt.Errorf("bind %s to %s/%s: %w", q.Name, exchange, key, err)
			}
		}
	}
	return q.Name, nil
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	t := time.NewTicker(reconnInterval)
	defer t.Stop()
	log := r.mylog.Action("rabbitmq_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err == nil {
				log.Info("rabbitmq reconnected")
				return
			}
			log.Info("rabbitmq failed to reconnect")

		case <-ctx.Done():
			r.mu.Lock()
			r.reconnecting = false
			r.mu.Unlock()
			return
		}
	}
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"deliveryhub/internal/dispatch/adapter/db"
	"deliveryhub/internal/dispatch/app/core"
	"deliveryhub/internal/dispatch/app/services"
	"deliveryhub/internal/xpkg/broker"
	"deliveryhub/internal/xpkg/cache"
	"deliveryhub/internal/xpkg/config"
	xdb "deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// positionTTL only matters for writers; the worker reads and removes.
const positionTTL = 2 * time.Minute

type Worker struct {
	cfg   *config.Config
	mylog logger.Logger

	workerParams *core.WorkerParams
	dispatcher   *services.Dispatcher
	db           *xdb.DB
	mb           *broker.RabbitMQ
	rdb          *redis.Client

	ctx          context.Context
	notifyCancel context.CancelFunc

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewWorker(
	notifyCtx context.Context,
	notifyCancel context.CancelFunc,
	cfg *config.Config,
	workerParams *core.WorkerParams,
	mylog logger.Logger,
) *Worker {
	return &Worker{
		ctx:          notifyCtx,
		notifyCancel: notifyCancel,
		cfg:          cfg,
		workerParams: workerParams,
		mylog:        mylog,
	}
}

// Run connects dependencies and consumes until the context is cancelled.
func (w *Worker) Run() error {
	mylog := w.mylog.Action("run-worker")

	if err := w.initialize(); err != nil {
		return err
	}

	deliveries, err := w.mb.Consume(w.ctx, events.DispatchQueue, w.workerParams.WorkerName)
	if err != nil {
		mylog.Action("consume_failed").Error("Failed to consume dispatch queue", err)
		return fmt.Errorf("consume %s: %w", events.DispatchQueue, err)
	}
	mylog.Info("dispatch worker started", "worker_name", w.workerParams.WorkerName, "prefetch", w.workerParams.Prefetch)

	if w.workerParams.MetricsPort > 0 {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			mux := http.NewServeMux()
			mux.Handle("GET /health", httpx.Health())
			mux.Handle("GET /metrics", httpx.MetricsHandler())
			if err := httpx.Serve(w.ctx, w.workerParams.MetricsPort, mux, w.mylog); err != nil {
				w.mylog.Action("metrics_server_failed").Error("Metrics server stopped", err)
			}
		}()
	}

	w.work(deliveries)
	return nil
}

func (w *Worker) initialize() error {
	mylog := w.mylog.Action("run-worker")

	d, err := xdb.Start(w.ctx, w.cfg.DB, w.mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	w.db = d
	mylog.Action("db_connected").Info("Successful database connection")

	mb, err := broker.New(w.ctx, w.cfg.RMQ, w.mylog, w.workerParams.Prefetch)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	w.mb = mb
	mylog.Action("mb_connected").Info("Successful message broker connection")

	rdb, err := cache.NewRedisClient(w.ctx, w.cfg.Redis.Addr, w.cfg.Redis.Password, w.cfg.Redis.DB)
	if err != nil {
		mylog.Action("redis_connection_failed").Error("Failed to connect to redis", err)
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	w.rdb = rdb

	w.dispatcher = services.NewDispatcher(
		db.NewAssignRepo(d),
		geo.NewStore(rdb, positionTTL),
		w.workerParams.RadiusKm,
		w.workerParams.WorkerName,
		w.mylog,
	)
	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mylog.Action("graceful_shutdown_started").Info("Shutting down")

	// deferred requeues nack as soon as ctx is done
	w.wg.Wait()

	if w.rdb != nil {
		w.rdb.Close()
	}
	if w.mb != nil {
		if err := w.mb.Close(); err != nil {
			w.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		w.mylog.Action("mb_closed").Info("Message broker closed")
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.mylog.Action("db_close_failed").Error("failed to close database", err)
			return fmt.Errorf("db close %w", err)
		}
		w.mylog.Action("db_closed").Info("Database closed")
	}

	w.mylog.Action("graceful_shutdown_completed").Info("Successfully shutted down")
	return nil
}

func (w *Worker) work(deliveries <-chan amqp.Delivery) {
	log := w.mylog.Action("work")
	ticker := time.NewTicker(w.workerParams.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			log.Debug("main work is done")
			return

		case msg, ok := <-deliveries:
			if !ok {
				log.Warn("delivery channel closed, app is shutting down")
				w.notifyCancel()
				return
			}
			w.handle(msg)

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(w.ctx, core.WaitTime*time.Second)
			if _, err := w.dispatcher.SweepStale(ctx, w.workerParams.StaleAfter); err != nil {
				w.mylog.Action("sweep_stale").Error("Failed to sweep stale drivers", err)
			}
			cancel()
		}
	}
}

func (w *Worker) handle(msg amqp.Delivery) {
	log := w.mylog.Action("processMsg")

	change, err := services.Decode(msg.Body)
	if err != nil {
		log.Error("Failed to decode message, sending to dead letter queue", err)
		w.nack(msg, false)
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, core.WaitTime*time.Second)
	outcome, err := w.dispatcher.Handle(ctx, change)
	cancel()

	if err != nil {
		log.Error("Failed to dispatch order", err)
		if errors.Is(err, xerrors.ErrDBConn) {
			w.mylog.Warn("db conn lost, trying reconnecting")
			if err := w.db.Reconnect(); err != nil {
				w.mylog.Warn("reconnecting failed, app is shutting down")
				w.notifyCancel()
			}
		}
		w.requeueLater(msg)
		return
	}

	if outcome == services.NoDriver {
		w.requeueLater(msg)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", err)
		w.checkBroker()
	}
}

// requeueLater holds the message for the retry interval so other messages keep
// flowing, then puts it back on the queue.
func (w *Worker) requeueLater(msg amqp.Delivery) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		t := time.NewTimer(w.workerParams.RetryInterval)
		defer t.Stop()
		select {
		case <-t.C:
		case <-w.ctx.Done():
		}
		w.nack(msg, true)
	}()
}

func (w *Worker) nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		w.mylog.Action("Nack").Error("Failed to nack", err)
		w.checkBroker()
	}
}

func (w *Worker) checkBroker() {
	if err := w.mb.IsAlive(); err != nil {
		w.mylog.Action("Nack").Info("no point to live, app is shutting down")
		w.notifyCancel()
	}
}

package dispatch

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deliveryhub/internal/dispatch/adapter/worker"
	"deliveryhub/internal/dispatch/app/core"
	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

type params struct {
	workerParams *core.WorkerParams
	configPath   string
	cfg          *config.Config
}

// Execute starts the dispatch worker
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, cancel := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	params, err := parseParams(args)
	if err != nil {
		if !errors.Is(err, xerrors.ErrHelp) {
			mylog.Action("command_parse_failed").Error("Invalid command received", err)
		}
		return err
	}
	mylog.Action("command_parse_completed").Debug("Received params", "worker_name", params.workerParams.WorkerName, "config_path", params.configPath)

	if err := validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	w := worker.NewWorker(newCtx, cancel, params.cfg, params.workerParams, mylog.With("worker_name", params.workerParams.WorkerName))

	runErr := w.Run()
	if runErr != nil {
		mylog.Action("worker_failed").Error("Error running dispatch worker", runErr)
	}
	cancel()
	if err := w.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	hostname, _ := os.Hostname()

	fs := flag.NewFlagSet("dispatch-worker", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	workerName := fs.String("worker-name", "dispatch-"+hostname, "Unique name of this worker")
	prefetch := fs.Int("prefetch", 10, "RabbitMQ prefetch count")
	heartbeat := fs.Duration("heartbeat-interval", 30*time.Second, "How often stale drivers are swept")
	staleAfter := fs.Duration("stale-after", 2*time.Minute, "Online drivers silent this long go offline")
	radius := fs.Float64("radius-km", 5, "Search radius around the restaurant")
	retry := fs.Duration("retry-interval", 15*time.Second, "Wait before requeueing an order with no driver")
	metricsPort := fs.Int("metrics-port", 0, "Port for /metrics and /health, 0 disables")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, xerrors.ErrHelp
		}
		return nil, xerrors.ErrParseCmd
	}

	if *showHelp {
		fs.Usage()
		return nil, xerrors.ErrHelp
	}

	return &params{
		workerParams: &core.WorkerParams{
			WorkerName:        *workerName,
			Prefetch:          *prefetch,
			HeartbeatInterval: *heartbeat,
			StaleAfter:        *staleAfter,
			RadiusKm:          *radius,
			RetryInterval:     *retry,
			MetricsPort:       *metricsPort,
		},
		configPath: *configPath,
	}, nil
}

// validateParams validates params
func validateParams(params *params) error {
	wp := params.workerParams
	if wp.WorkerName == "" {
		return fmt.Errorf("worker name: %w", xerrors.ErrFieldIsEmpty)
	}
	if wp.Prefetch <= 0 || wp.Prefetch > 1000 {
		return fmt.Errorf("prefetch must be in [1, 1000]: %d", wp.Prefetch)
	}
	if wp.HeartbeatInterval < time.Second {
		return fmt.Errorf("heartbeat interval must be at least 1s: %v", wp.HeartbeatInterval)
	}
	if wp.StaleAfter <= wp.HeartbeatInterval {
		return fmt.Errorf("stale-after (%v) must exceed heartbeat interval (%v)", wp.StaleAfter, wp.HeartbeatInterval)
	}
	if wp.RadiusKm <= 0 || wp.RadiusKm > 100 {
		return fmt.Errorf("radius must be in (0, 100] km: %v", wp.RadiusKm)
	}
	if wp.RetryInterval < time.Second {
		return fmt.Errorf("retry interval must be at least 1s: %v", wp.RetryInterval)
	}
	if wp.MetricsPort < 0 || wp.MetricsPort >= 65536 {
		return fmt.Errorf("metrics port must be in [0: 65,535]: %d", wp.MetricsPort)
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return nil
}

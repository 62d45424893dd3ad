package notification

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"deliveryhub/internal/notification/adapter/consumer"
	"deliveryhub/internal/notification/app/core"
	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

type params struct {
	subParams  *core.SubscriberParams
	configPath string
	cfg        *config.Config
}

// Execute runs the notification subscriber
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

	if err := validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	n := consumer.NewNotification(newCtx, cancel, params.cfg, params.subParams, mylog)

	runErr := n.Run()
	if runErr != nil {
		mylog.Action("subscriber_failed").Error("Error running notification subscriber", runErr)
	}
	cancel()
	if err := n.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func parseParams(args []string) (*params, error) {
	hostname, _ := os.Hostname()

	fs := flag.NewFlagSet("notification-subscriber", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	workerName := fs.String("worker-name", "notify-"+hostname, "Consumer tag of this subscriber")
	prefetch := fs.Int("prefetch", 20, "RabbitMQ prefetch count")
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
		subParams: &core.SubscriberParams{
			WorkerName:  *workerName,
			Prefetch:    *prefetch,
			MetricsPort: *metricsPort,
		},
		configPath: *configPath,
	}, nil
}

func validateParams(params *params) error {
	sp := params.subParams
	if sp.WorkerName == "" {
		return fmt.Errorf("worker name: %w", xerrors.ErrFieldIsEmpty)
	}
	if sp.Prefetch <= 0 || sp.Prefetch > 1000 {
		return fmt.Errorf("prefetch must be in [1, 1000]: %d", sp.Prefetch)
	}
	if sp.MetricsPort < 0 || sp.MetricsPort >= 65536 {
		return fmt.Errorf("metrics port must be in [0: 65,535]: %d", sp.MetricsPort)
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return nil
}

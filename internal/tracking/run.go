package tracking

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"deliveryhub/internal/tracking/api/http"
	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

type params struct {
	trackingParams *core.TrackingParams
	configPath     string
	cfg            *config.Config
}

// Execute starts the tracking service
func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, close := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer close()

	params, err := parseParams(args)
	if err != nil {
		if !errors.Is(err, xerrors.ErrHelp) {
			mylog.Action("command_parse_failed").Error("Invalid command received", err)
		}
		return err
	}
	mylog.Action("command_parse_completed").Debug("Received params", "port", params.trackingParams.Port, "config_path", params.configPath)

	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	server := http.NewServer(newCtx, params.cfg, params.trackingParams, mylog)
	runErr := server.Run()
	if err := server.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		mylog.Action("tracking_service_failed").Error("Server failed unexpectedly", runErr)
		return runErr
	}
	mylog.Action("server_stopped").Info("Server exited normally")
	return nil
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("tracking-service", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	port := fs.Int("port", 3002, "Port to run the tracking service")
	maxConcurrent := fs.Int("max-concurrent", 100, "Max concurrent requests")
	rate := fs.Float64("rate", 5, "Requests per second allowed per client")
	burst := fs.Int("burst", 10, "Burst size of the per-client rate limit")
	positionTTL := fs.Duration("position-ttl", 2*time.Minute, "How long a driver position stays valid without updates")

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
		trackingParams: &core.TrackingParams{
			Port:          *port,
			MaxConcurrent: *maxConcurrent,
			Rate:          *rate,
			Burst:         *burst,
			PositionTTL:   *positionTTL,
		},
		configPath: *configPath,
	}, nil
}

// validateParams validates params
func validateParams(params *params) error {
	tp := params.trackingParams
	if tp.Port <= 0 || tp.Port >= 65536 {
		return fmt.Errorf("port must be in [1: 65,535]: %d", tp.Port)
	}
	if tp.MaxConcurrent <= 0 {
		return fmt.Errorf("max number of concurrent requests must be positive: %d", tp.MaxConcurrent)
	}
	if tp.Rate <= 0 || tp.Burst <= 0 {
		return fmt.Errorf("rate and burst must be positive: %v, %d", tp.Rate, tp.Burst)
	}
	if tp.PositionTTL < 10*time.Second {
		return fmt.Errorf("position ttl must be at least 10s: %v", tp.PositionTTL)
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return cfg.RequireAuth()
}

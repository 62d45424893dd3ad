package admin

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"deliveryhub/internal/admin/api/http"
	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

type params struct {
	adminParams *core.AdminParams
	configPath  string
	cfg         *config.Config
}

// Execute starts the admin service
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
	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_validation_completed").Info("Successfully validate params")

	server := http.NewServer(newCtx, params.cfg, params.adminParams, mylog)
	runErr := server.Run()
	if err := server.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		mylog.Action("admin_service_failed").Error("Server failed unexpectedly", runErr)
		return runErr
	}
	mylog.Action("server_stopped").Info("Server exited normally")
	return nil
}

// parseParams parse params from terminal
func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("admin-service", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	port := fs.Int("port", 3004, "Port to run the admin service")
	maxConcurrent := fs.Int("max-concurrent", 20, "Max concurrent requests")
	rate := fs.Float64("rate", 10, "Requests per second allowed per client")
	burst := fs.Int("burst", 20, "Burst size of the per-client rate limit")

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
		adminParams: &core.AdminParams{
			Port:          *port,
			MaxConcurrent: *maxConcurrent,
			Rate:          *rate,
			Burst:         *burst,
		},
		configPath: *configPath,
	}, nil
}

// validateParams validates params
func validateParams(params *params) error {
	adminParams := params.adminParams
	if adminParams.Port <= 0 || adminParams.Port >= 65536 {
		return fmt.Errorf("port must be in [1: 65,535]: %d", adminParams.Port)
	}
	if adminParams.MaxConcurrent <= 0 {
		return fmt.Errorf("max number of concurrent requests must be positive: %d", adminParams.MaxConcurrent)
	}
	if adminParams.Rate <= 0 || adminParams.Burst <= 0 {
		return fmt.Errorf("rate and burst must be positive: %v, %d", adminParams.Rate, adminParams.Burst)
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return cfg.RequireAuth()
}

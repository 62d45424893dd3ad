package realtime

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"deliveryhub/internal/realtime/api/http"
	"deliveryhub/internal/realtime/app/core"
	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

type params struct {
	gatewayParams *core.GatewayParams
	configPath    string
	cfg           *config.Config
}

// Execute starts the realtime gateway
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

	server := http.NewServer(newCtx, params.cfg, params.gatewayParams, mylog)
	runErr := server.Run()
	if err := server.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		mylog.Action("realtime_gateway_failed").Error("Server failed unexpectedly", runErr)
		return runErr
	}
	mylog.Action("server_stopped").Info("Server exited normally")
	return nil
}

func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("realtime-gateway", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")

	port := fs.Int("port", 3006, "Port to run the realtime gateway")
	maxClients := fs.Int("max-clients", 10000, "Max connected websocket clients")

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
		gatewayParams: &core.GatewayParams{
			Port:       *port,
			MaxClients: *maxClients,
		},
		configPath: *configPath,
	}, nil
}

func validateParams(params *params) error {
	gp := params.gatewayParams
	if gp.Port <= 0 || gp.Port >= 65536 {
		return fmt.Errorf("port must be in [1: 65,535]: %d", gp.Port)
	}
	if gp.MaxClients <= 0 {
		return fmt.Errorf("max clients must be positive: %d", gp.MaxClients)
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg
	return cfg.RequireAuth()
}

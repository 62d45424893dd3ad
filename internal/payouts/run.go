package payouts

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"deliveryhub/internal/referral"
	"deliveryhub/internal/xpkg/cache"
	"deliveryhub/internal/xpkg/config"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/lock"
	"deliveryhub/internal/xpkg/logger"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type params struct {
	configPath  string
	schedule    string
	once        bool
	metricsPort int
	cfg         *config.Config
}

// Execute runs the payout scheduler
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
	mylog.Action("command_validation_completed").Info("Successfully validate params", "schedule", params.schedule, "once", params.once)

	d, err := db.Start(newCtx, params.cfg.DB, mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	defer d.Close()

	rdb, err := cache.NewRedisClient(newCtx, params.cfg.Redis.Addr, params.cfg.Redis.Password, params.cfg.Redis.DB)
	if err != nil {
		mylog.Action("redis_connection_failed").Error("Failed to connect to redis", err)
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()

	locker := NewRedisLocker(lock.NewLocker(rdb))
	service := FromConfig(NewRepo(d.GetPool()), locker, params.cfg.Payouts, mylog)
	referrals := referral.NewService(referral.NewRepo(d.GetPool()), referral.Rules{
		MinOrders:     params.cfg.Referral.MinOrders,
		MinOrderCents: params.cfg.Referral.MinOrderCents,
		RewardCents:   params.cfg.Referral.RewardCents,
	}, mylog)
	scheduler := NewScheduler(service, referrals, locker, params.schedule, mylog)

	if params.once {
		_, err := scheduler.RunOnce(newCtx)
		return err
	}

	g, gctx := errgroup.WithContext(newCtx)
	g.Go(func() error { return scheduler.Run(gctx) })
	if params.metricsPort > 0 {
		g.Go(func() error {
			mux := http.NewServeMux()
			mux.Handle("GET /health", httpx.Health())
			mux.Handle("GET /metrics", httpx.MetricsHandler())
			return httpx.Serve(gctx, params.metricsPort, mux, mylog)
		})
	}
	if err := g.Wait(); err != nil {
		mylog.Action("scheduler_failed").Error("Payout scheduler failed", err)
		return err
	}
	return nil
}

func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("payout-scheduler", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	schedule := fs.String("schedule", "", "Cron spec, overrides payouts.schedule")
	once := fs.Bool("once", false, "Run a single pass and exit")
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
		configPath:  *configPath,
		schedule:    *schedule,
		once:        *once,
		metricsPort: *metricsPort,
	}, nil
}

func validateParams(params *params) error {
	if params.metricsPort < 0 || params.metricsPort >= 65536 {
		return fmt.Errorf("metrics port must be in [0: 65,535]: %d", params.metricsPort)
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	params.cfg = cfg

	if params.schedule == "" {
		params.schedule = cfg.Payouts.Schedule
	}
	if _, err := cron.ParseStandard(params.schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", params.schedule, err)
	}
	return nil
}

// Package tools holds the one-shot modes: schema migration and development tokens.
package tools

import (
	"context"
	"errors"
	"flag"

	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/migrations"
)

type migrateParams struct {
	configPath string
	down       bool
}

// Migrate applies the embedded schema, or rolls it back with --down.
func Migrate(_ context.Context, mylog logger.Logger, args []string) error {
	params, err := parseMigrateParams(args)
	if err != nil {
		if !errors.Is(err, xerrors.ErrHelp) {
			mylog.Action("command_parse_failed").Error("Invalid command received", err)
		}
		return err
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}

	if params.down {
		return migrations.Down(cfg.DB.DSN(), mylog)
	}
	return migrations.Up(cfg.DB.DSN(), mylog)
}

func parseMigrateParams(args []string) (*migrateParams, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	down := fs.Bool("down", false, "Roll back every migration")

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
	return &migrateParams{configPath: *configPath, down: *down}, nil
}

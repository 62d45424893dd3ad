package tools

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type tokenParams struct {
	configPath   string
	userID       string
	role         string
	restaurantID string
}

// IssueToken prints a signed token for local development.
func IssueToken(_ context.Context, mylog logger.Logger, args []string, out io.Writer) error {
	params, err := parseTokenParams(args)
	if err != nil {
		if !errors.Is(err, xerrors.ErrHelp) {
			mylog.Action("command_parse_failed").Error("Invalid command received", err)
		}
		return err
	}
	if err := validateTokenParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}

	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	if err := cfg.RequireAuth(); err != nil {
		return err
	}

	auth := httpx.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	token, err := auth.IssueToken(params.userID, params.role, params.restaurantID)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	mylog.Action("token_issued").Info("token issued", "user_id", params.userID, "role", params.role)
	_, err = fmt.Fprintln(out, token)
	return err
}

func parseTokenParams(args []string) (*tokenParams, error) {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	userID := fs.String("user", "", "User id placed in the sub claim")
	role := fs.String("role", httpx.RoleCustomer, "customer, restaurant, driver or admin")
	restaurantID := fs.String("restaurant", "", "Restaurant id of a restaurant owner")

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
	return &tokenParams{
		configPath:   *configPath,
		userID:       *userID,
		role:         *role,
		restaurantID: *restaurantID,
	}, nil
}

func validateTokenParams(p *tokenParams) error {
	if p.userID == "" {
		return fmt.Errorf("user: %w", xerrors.ErrFieldIsEmpty)
	}
	switch p.role {
	case httpx.RoleCustomer, httpx.RoleDriver, httpx.RoleAdmin:
	case httpx.RoleRestaurant:
		if p.restaurantID == "" {
			return fmt.Errorf("restaurant is required for restaurant owners: %w", xerrors.ErrFieldIsEmpty)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", xerrors.ErrInvalidInput, p.role)
	}
	return nil
}

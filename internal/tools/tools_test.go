package tools

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "a-long-enough-development-secret"

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: "+secret+"\n"), 0o600))
	t.Setenv("JWT_SECRET", "")
	return path
}

func TestIssueToken(t *testing.T) {
	path := writeConfig(t)
	var out bytes.Buffer

	err := IssueToken(context.Background(), logger.Discard(), []string{"--config-path", path, "--user", "u-2", "--role", "restaurant", "--restaurant", "r-1"}, &out)
	require.NoError(t, err)

	auth := httpx.NewAuthenticator(secret, "deliveryhub", time.Hour)
	id, err := auth.Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, httpx.Identity{UserID: "u-2", Role: httpx.RoleRestaurant, RestaurantID: "r-1"}, id)
}

func TestIssueToken_Validation(t *testing.T) {
	path := writeConfig(t)
	var out bytes.Buffer
	ctx := context.Background()

	err := IssueToken(ctx, logger.Discard(), []string{"--config-path", path}, &out)
	assert.ErrorIs(t, err, xerrors.ErrFieldIsEmpty)

	err = IssueToken(ctx, logger.Discard(), []string{"--config-path", path, "--user", "u-2", "--role", "restaurant"}, &out)
	assert.ErrorIs(t, err, xerrors.ErrFieldIsEmpty)

	err = IssueToken(ctx, logger.Discard(), []string{"--config-path", path, "--user", "u-2", "--role", "chef"}, &out)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	err = IssueToken(ctx, logger.Discard(), []string{"--help"}, &out)
	assert.ErrorIs(t, err, xerrors.ErrHelp)
	assert.Empty(t, out.String())
}

func TestParseMigrateParams(t *testing.T) {
	p, err := parseMigrateParams([]string{"--down", "--config-path", "prod.yaml"})
	require.NoError(t, err)
	assert.True(t, p.down)
	assert.Equal(t, "prod.yaml", p.configPath)

	p, err = parseMigrateParams(nil)
	require.NoError(t, err)
	assert.False(t, p.down)

	_, err = parseMigrateParams([]string{"--sideways"})
	assert.ErrorIs(t, err, xerrors.ErrParseCmd)

	err = Migrate(context.Background(), logger.Discard(), []string{"--config-path", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

package payouts

import (
	"os"
	"path/filepath"
	"testing"

	xerrors "deliveryhub/internal/xpkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	p, err := parseParams(nil)
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p.configPath)
	assert.False(t, p.once)
	assert.Zero(t, p.metricsPort)

	p, err = parseParams([]string{"--once", "--schedule", "0 3 * * *"})
	require.NoError(t, err)
	assert.True(t, p.once)
	assert.Equal(t, "0 3 * * *", p.schedule)

	_, err = parseParams([]string{"--help"})
	assert.ErrorIs(t, err, xerrors.ErrHelp)
	_, err = parseParams([]string{"--unknown"})
	assert.ErrorIs(t, err, xerrors.ErrParseCmd)
}

func TestValidateParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("payouts:\n  schedule: \"@daily\"\n"), 0o600))

	p, err := parseParams([]string{"--config-path", path})
	require.NoError(t, err)
	require.NoError(t, validateParams(p))
	assert.Equal(t, "@daily", p.schedule)

	p, err = parseParams([]string{"--config-path", path, "--schedule", "*/5 * * * *"})
	require.NoError(t, err)
	require.NoError(t, validateParams(p))
	assert.Equal(t, "*/5 * * * *", p.schedule)

	for _, args := range [][]string{
		{"--config-path", path, "--schedule", "every tuesday"},
		{"--config-path", path, "--metrics-port", "70000"},
		{"--config-path", filepath.Join(t.TempDir(), "missing.yaml")},
	} {
		p, err := parseParams(args)
		require.NoError(t, err)
		assert.Error(t, validateParams(p), args)
	}
}

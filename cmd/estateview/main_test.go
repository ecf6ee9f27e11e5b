package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/estateview/internal/analytics"
	"github.com/wesm/estateview/internal/config"
	"github.com/wesm/estateview/internal/db"
)

// isolateEnv points the data dir at a fresh temp dir and clears
// the other environment overrides.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvAPIToken, "")
	t.Setenv(config.EnvRefreshInterval, "")
	return dir
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name            string
		args            []string
		wantHost        string
		wantPort        int
		wantGranularity analytics.Granularity
		wantNoPersist   bool
	}{
		{
			name:            "DefaultArgs",
			args:            []string{},
			wantHost:        "127.0.0.1",
			wantPort:        8090,
			wantGranularity: analytics.Monthly,
		},
		{
			name: "ExplicitFlags",
			args: []string{
				"--host", "0.0.0.0", "--port", "9090",
				"--granularity", "weekly", "--no-persist",
			},
			wantHost:        "0.0.0.0",
			wantPort:        9090,
			wantGranularity: analytics.Weekly,
			wantNoPersist:   true,
		},
		{
			name:            "PartialFlags",
			args:            []string{"--port", "3000"},
			wantHost:        "127.0.0.1",
			wantPort:        3000,
			wantGranularity: analytics.Monthly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolateEnv(t)

			cmd := &cobra.Command{}
			config.RegisterFlags(cmd.Flags())
			config.RegisterServeFlags(cmd.Flags())
			require.NoError(t, cmd.Flags().Parse(tt.args))

			cfg, err := loadConfig(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantPort, cfg.Port)
			assert.Equal(t, tt.wantGranularity, cfg.Granularity)
			assert.Equal(t, tt.wantNoPersist, cfg.NoPersist)
			assert.Equal(t, dir, cfg.DataDir)
			assert.Equal(t, filepath.Join(dir, "estateview.db"), cfg.DBPath)
		})
	}
}

func TestLoadConfig_CreatesDataDir(t *testing.T) {
	isolateEnv(t)
	dir := filepath.Join(t.TempDir(), "nested", "data")

	cmd := &cobra.Command{}
	config.RegisterFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--data-dir", dir}))

	_, err := loadConfig(cmd)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRequestFromConfig(t *testing.T) {
	req := requestFromConfig(config.Config{
		Granularity: analytics.Yearly, ActivityLimit: 7,
	})
	assert.Equal(t, analytics.Yearly, req.Granularity)
	assert.Equal(t, 7, req.ActivityLimit)
	assert.True(t, req.Filters.IsZero())
}

// execute runs the root command with args and returns its
// output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"serve", "export", "activities", "snapshots",
		"prune", "login", "version",
	} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	isolateEnv(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "estateview dev"), out)
}

func TestLoginCommand(t *testing.T) {
	dir := isolateEnv(t)

	_, err := execute(t, "login", "--token", "  secret  ")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"api_token": "secret"`)

	_, err = execute(t, "login")
	require.Error(t, err)
}

func TestSnapshotsCommand(t *testing.T) {
	dir := isolateEnv(t)

	d, err := db.Open(filepath.Join(dir, "estateview.db"))
	require.NoError(t, err)
	seedSnapshots(t, d, 3)
	require.NoError(t, d.Close())

	out, err := execute(t, "snapshots", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "snap-2")
	assert.Contains(t, out, "snap-1")
	assert.NotContains(t, out, "snap-0")
	assert.Contains(t, out, "2 of 3 snapshots")

	_, err = execute(t, "snapshots", "--limit", "0")
	require.Error(t, err)
}

func TestPrintSnapshotsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSnapshots(&buf, nil, 0))
	assert.Equal(t, "No snapshots stored.\n", buf.String())
}

func TestPruneCommand_RequiresFilter(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "prune")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one filter")
}

func TestPruneCommand_KeepWithYes(t *testing.T) {
	dir := isolateEnv(t)

	d, err := db.Open(filepath.Join(dir, "estateview.db"))
	require.NoError(t, err)
	seedSnapshots(t, d, 4)
	require.NoError(t, d.Close())

	out, err := execute(t, "prune", "--keep", "1", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 3 snapshots")

	d, err = db.Open(filepath.Join(dir, "estateview.db"))
	require.NoError(t, err)
	defer d.Close()
	n, err := d.CountSnapshots(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

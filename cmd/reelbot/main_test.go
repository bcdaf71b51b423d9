package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelbot/internal/audit"
	"reelbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENABLE_TELEGRAM", "TELEGRAM_BOT_TOKEN", "TELEGRAM_ALLOW_FROM", "TELEGRAM_POLL_TIMEOUT",
		"ENABLE_HTTP", "HTTP_HOST", "HTTP_PORT",
		"RAPIDAPI_KEY", "RAPIDAPI_HOST", "RAPIDAPI_PATH", "RAPIDAPI_TIMEOUT_SECONDS",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED", "AUDIT_ENABLED", "AUDIT_DB_PATH",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { configPath = "" })
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "resolve", "config", "doctor", "stats", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "reelbot "+version+"\n", out)
}

func TestResolveCmd_PipelineReplies(t *testing.T) {
	clearEnv(t)
	cfg := filepath.Join(t.TempDir(), "config.json")

	out, err := execute(t, "--config", cfg, "resolve", "https://www.instagram.com/reel/Abc123/")
	require.NoError(t, err)
	assert.Equal(t, domain.TextNotConfigured+"\n", out)

	t.Setenv("RAPIDAPI_KEY", "k")
	out, err = execute(t, "--config", cfg, "resolve", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, domain.TextNoLink+"\n", out)

	out, err = execute(t, "--config", cfg, "resolve", "https://instagram.com/p/XYZ/")
	require.NoError(t, err)
	assert.Equal(t, domain.TextNoReelID+"\n", out)
}

func TestResolveCmd_RequiresText(t *testing.T) {
	_, err := execute(t, "resolve")
	assert.Error(t, err)
}

func TestConfigCmd_InitShowSet(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.json")

	out, err := execute(t, "--config", cfgPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, cfgPath+"\n", out)

	_, err = execute(t, "--config", cfgPath, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, cfgPath)

	_, err = execute(t, "--config", cfgPath, "config", "init")
	assert.Error(t, err, "init must not overwrite without --force")
	_, err = execute(t, "--config", cfgPath, "config", "init", "--force")
	require.NoError(t, err)

	_, err = execute(t, "--config", cfgPath, "config", "set", "http.port", "9090")
	require.NoError(t, err)
	out, err = execute(t, "--config", cfgPath, "config", "get", "http.port")
	require.NoError(t, err)
	assert.Equal(t, "9090\n", out)

	t.Setenv("RAPIDAPI_KEY", "supersecretkey")
	out, err = execute(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "supersecretkey")
	assert.Contains(t, out, `"port": 9090`)

	// Secrets from the environment are not persisted by set.
	_, err = execute(t, "--config", cfgPath, "config", "set", "logging.level", "debug")
	require.NoError(t, err)
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecretkey")
}

func TestDoctorCmd(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("ENABLE_TELEGRAM", "false")
	t.Setenv("HTTP_HOST", "127.0.0.1")
	t.Setenv("HTTP_PORT", "0")
	t.Setenv("AUDIT_ENABLED", "true")
	t.Setenv("AUDIT_DB_PATH", filepath.Join(dir, "audit.db"))

	out, err := execute(t, "--config", filepath.Join(dir, "config.json"), "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "[WARN] Config file")
	assert.Contains(t, out, "[WARN] RapidAPI key")
	assert.Contains(t, out, "[PASS] Audit database")
	assert.Contains(t, out, "0 failed")
}

func TestDoctorCmd_FailsOnInvalidConfig(t *testing.T) {
	clearEnv(t)
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "config.json"), "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "[FAIL] Config validation")
}

func TestStatsCmd_AuditDisabled(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "config.json"), "stats")
	assert.Error(t, err)
}

func TestPrintStats(t *testing.T) {
	store, err := audit.NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, domain.AuditEntry{Channel: "telegram", Outcome: domain.OutcomeResolved, ReelID: "Abc123", LatencyMs: 42}))
	require.NoError(t, store.Record(ctx, domain.AuditEntry{Channel: "http", Outcome: domain.OutcomeNoLink}))

	var out bytes.Buffer
	require.NoError(t, printStats(ctx, &out, store, time.Hour, 5))
	s := out.String()
	assert.Regexp(t, `resolved\s+1`, s)
	assert.Regexp(t, `no_link\s+1`, s)
	assert.Regexp(t, `total\s+2`, s)
	assert.Contains(t, s, "Abc123")
}

func TestConfigCmd_List(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:ABCDEFGHIJ")
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "config.json"), "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "http.port = 8080\n")
	assert.Contains(t, out, "rapidapi.path = /reel_download\n")
	assert.Contains(t, out, "telegram.token = 1234****GHIJ\n")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader reads so host settings don't leak in.
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

func validConfig() *Config {
	cfg := Defaults()
	cfg.Telegram.Token = "123:abc"
	return cfg
}

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_DefaultsNeedTelegramToken(t *testing.T) {
	err := Validate(Defaults())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTelegramToken)
}

func TestValidate_TelegramDisabledNeedsNoToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Enabled = false
	require.NoError(t, Validate(cfg))
}

func TestValidate_NoAdapters(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Enabled = false
	cfg.HTTP.Enabled = false
	assert.ErrorIs(t, Validate(cfg), ErrNoAdapters)
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = -1
	assert.Error(t, Validate(cfg))

	cfg.HTTP.Port = 70000
	assert.Error(t, Validate(cfg))
}

func TestValidate_Logging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "loud"
	assert.Error(t, Validate(cfg))

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, Validate(cfg))

	for _, lvl := range []string{"debug", "INFO", "warn", "error"} {
		cfg = validConfig()
		cfg.Logging.Level = lvl
		assert.NoError(t, Validate(cfg), lvl)
	}
}

func TestValidate_Audit(t *testing.T) {
	cfg := validConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DBPath = ""
	assert.Error(t, Validate(cfg))
}

func TestValidate_MissingAPIKeyIsOnlyAWarning(t *testing.T) {
	cfg := validConfig()
	cfg.RapidAPI.Key = ""
	require.NoError(t, Validate(cfg))
	assert.NotEmpty(t, Warnings(cfg))
}

// --- Load / Save ---

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("RAPIDAPI_KEY", "rk")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "rk", cfg.RapidAPI.Key)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
}

func TestLoad_EnvToggles(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_TELEGRAM", "false")
	t.Setenv("ENABLE_HTTP", "true")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("TELEGRAM_ALLOW_FROM", "1, 2 ,3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.Enabled)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, FlexStringList{"1", "2", "3"}, cfg.Telegram.AllowFrom)
}

func TestLoad_MissingTokenIsFatal(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTelegramToken)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"telegram": {"enabled": true, "token": "file-token", "allowFrom": [123, "456"]},
		"http": {"port": 7000}
	}`), 0o600))
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, 7000, cfg.HTTP.Port)
	assert.Equal(t, FlexStringList{"123", "456"}, cfg.Telegram.AllowFrom)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  enabled: false
http:
  host: 127.0.0.1
  port: 8181
rapidapi:
  key: ${TEST_RAPIDAPI_KEY:-fallback}
logging:
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "127.0.0.1:8181", cfg.HTTP.Addr())
	assert.Equal(t, "fallback", cfg.RapidAPI.Key)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	_, err := Read(path)
	assert.Error(t, err)
}

func TestSaveRead_RoundTrip(t *testing.T) {
	clearEnv(t)
	for _, name := range []string{"config.json", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			original := validConfig()
			original.HTTP.Port = 9191
			original.Telegram.AllowFrom = FlexStringList{"42"}
			require.NoError(t, Save(path, original))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			loaded, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, 9191, loaded.HTTP.Port)
			assert.Equal(t, "123:abc", loaded.Telegram.Token)
			assert.Equal(t, FlexStringList{"42"}, loaded.Telegram.AllowFrom)
		})
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("REELBOT_TEST_VAR", "value")
	assert.Equal(t, "x=value", ExpandEnvVars("x=${REELBOT_TEST_VAR}"))
	assert.Equal(t, "x=dflt", ExpandEnvVars("x=${REELBOT_UNSET_VAR:-dflt}"))
	assert.Equal(t, "x=${REELBOT_UNSET_VAR}", ExpandEnvVars("x=${REELBOT_UNSET_VAR}"))
}

// --- Accessors ---

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = "1234567890:ABCDEFGH"
	cfg.RapidAPI.Key = "short"

	s := Sanitize(cfg)
	assert.Equal(t, "1234****EFGH", s.Telegram.Token)
	assert.Equal(t, "***", s.RapidAPI.Key)
	assert.Equal(t, "1234567890:ABCDEFGH", cfg.Telegram.Token, "original must not change")
}

func TestGetSetByPath(t *testing.T) {
	cfg := validConfig()

	v, err := GetByPath(cfg, "http.port")
	require.NoError(t, err)
	assert.EqualValues(t, 8080, v)

	require.NoError(t, SetByPath(cfg, "http.port", "9999"))
	assert.Equal(t, 9999, cfg.HTTP.Port)

	require.NoError(t, SetByPath(cfg, "telegram.enabled", "false"))
	assert.False(t, cfg.Telegram.Enabled)

	require.NoError(t, SetByPath(cfg, "telegram.allowFrom", "1, 2"))
	assert.Equal(t, FlexStringList{"1", "2"}, cfg.Telegram.AllowFrom)

	_, err = GetByPath(cfg, "nope.nothing")
	assert.Error(t, err)
	_, err = GetByPath(cfg, "http.port.deeper")
	assert.Error(t, err)
}

func TestSetByPath_RejectsUnknownAndMistyped(t *testing.T) {
	cfg := validConfig()

	assert.Error(t, SetByPath(cfg, "http.bogus", "1"), "unknown keys are not created")
	assert.Error(t, SetByPath(cfg, "nope.port", "1"))
	assert.Error(t, SetByPath(cfg, "http", "1"), "sections cannot be overwritten")
	assert.Error(t, SetByPath(cfg, "http.port", "eighty"))
	assert.Error(t, SetByPath(cfg, "audit.enabled", "maybe"))
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestListPaths(t *testing.T) {
	paths := ListPaths(validConfig())
	assert.EqualValues(t, 8080, paths["http.port"])
	assert.Equal(t, "instagram-scraper-api3.p.rapidapi.com", paths["rapidapi.host"])
	assert.NotContains(t, paths, "http")
}

func TestReadFile_IgnoresEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rapidapi":{"key":"${RAPIDAPI_KEY}"},"http":{"port":9000}}`), 0o600))
	t.Setenv("RAPIDAPI_KEY", "from-env")
	t.Setenv("HTTP_PORT", "7000")

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "${RAPIDAPI_KEY}", cfg.RapidAPI.Key)
	assert.Equal(t, 9000, cfg.HTTP.Port)

	cfg, err = Read(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.RapidAPI.Key)
	assert.Equal(t, 7000, cfg.HTTP.Port)
}

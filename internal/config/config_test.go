package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/role"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFromCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadFromPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: https://api.campus.test\n  timeout: 10s\nrefresh:\n  lookahead: 2m\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.campus.test", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Refresh.Lookahead)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval, "unset fields keep defaults")
	assert.Equal(t, StoreFile, cfg.Store.Backend)
}

func TestLoadFromInvalid(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("api: [unterminated"), 0o600))
	_, err := LoadFrom(broken)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileUnmarshal))

	badStore := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(badStore, []byte("store:\n  backend: keychain\n"), 0o600))
	_, err = LoadFrom(badStore)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	require.NoError(t, cfg.Set("routes.landing.manager", "/colleagues"))
	require.NoError(t, cfg.Set("routes.access./materials", "Teacher, Learning Advisor"))
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvAPIURL:     "http://127.0.0.1:9000",
		EnvAPITimeout: "3",
		EnvLogLevel:   "debug",
		EnvStore:      StoreMemory,
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)

	err = Default().ApplyEnv(envMap(map[string]string{EnvAPITimeout: "soon"}))
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)

	home, err := Home()
	require.NoError(t, err)
	assert.Equal(t, dir, home)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)

	assert.Equal(t, filepath.Join(dir, "logs", "campus.log"), Default().LogFile(dir))
}

func TestLoadAppliesEnvironment(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	t.Setenv(EnvAPIURL, "http://env.campus.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env.campus.test", cfg.API.BaseURL)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CAMPUS_API_URL=http://dotenv.campus.test\nCAMPUS_LOG_LEVEL=warn\n"), 0o600))

	t.Setenv(EnvAPIURL, "")
	require.NoError(t, os.Unsetenv(EnvAPIURL))
	t.Setenv(EnvLogLevel, "error")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "http://dotenv.campus.test", os.Getenv(EnvAPIURL))
	assert.Equal(t, "error", os.Getenv(EnvLogLevel), "existing variables win over .env")
}

func TestGetSet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"api.base_url", "https://campus.example", "https://campus.example"},
		{"api.timeout", "8s", "8s"},
		{"api.timeout", "12", "12s"},
		{"logging.level", "warn", "warn"},
		{"logging.format", "json", "json"},
		{"logging.file", "/var/log/campus.log", "/var/log/campus.log"},
		{"store.backend", "memory", "memory"},
		{"refresh.interval", "1m", "1m0s"},
		{"refresh.lookahead", "30s", "30s"},
		{"token.expiry_margin", "5s", "5s"},
		{"routes.landing.learning_advisor", "/contracts", "/contracts"},
		{"routes.access./colleagues", "manager,teacher", "manager,teacher"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Set(tt.key, tt.value))
			got, err := cfg.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	cfg := Default()

	err := cfg.Set("budget.max_cost", "3")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigKey))

	err = cfg.Set("store.backend", "keychain")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	assert.Equal(t, StoreFile, cfg.Store.Backend, "rejected value leaves config unchanged")

	err = cfg.Set("refresh.interval", "often")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))

	err = cfg.Set("routes.landing.janitor", "/home")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigKey))

	_, err = cfg.Get("nope")
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigKey))
}

func TestLanding(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Set("routes.landing.manager", "/colleagues"))

	landing := cfg.Landing()
	assert.Equal(t, "/colleagues", landing.For(role.Manager))
	assert.Equal(t, "/home", landing.For(role.Teacher))
	assert.Equal(t, "/home", landing.For(role.LearningAdvisor))
}

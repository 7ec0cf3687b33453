package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8093, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 30, cfg.Session.IdleMinutes)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadParsesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
llm:
  provider: mock
session:
  store: sqlite
  sqlitePath: /tmp/sessions.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, "loopback", cfg.Server.Bind, "unset fields get defaults")
	assert.Equal(t, 45, cfg.LLM.TimeoutSeconds)
}

func TestLoadDefaultsSQLitePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ROAMLINE_HOME", home)

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
session:
  store: sqlite
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "sessions", "roamline.db"), cfg.Session.SQLitePath)

		cfg.LLM.APIKey = "sk-x"
		assert.Empty(t, Validate(&cfg), "defaulted path satisfies validation")
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("ROAMLINE_SESSION_STORE", "sqlite")

		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "sessions", "roamline.db"), cfg.Session.SQLitePath)
	})

	t.Run("explicit path wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
session:
  store: sqlite
  sqlitePath: /tmp/mine.db
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/mine.db", cfg.Session.SQLitePath)
	})
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROAMLINE_SERVER_PORT", "7777")
	t.Setenv("ROAMLINE_LLM_PROVIDER", "mock")
	t.Setenv("ROAMLINE_LOG_LEVEL", "DEBUG")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestExpandSensitiveFields(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  apiKey: ${TEST_OPENAI_KEY}
places:
  apiKey: ${UNSET_VAR_XYZ}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", cfg.LLM.APIKey)
	assert.Equal(t, "${UNSET_VAR_XYZ}", cfg.Places.APIKey, "unset vars stay verbatim")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantKey string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad bind", func(c *Config) { c.Server.Bind = "everywhere" }, "server.bind"},
		{"custom bind needs host", func(c *Config) { c.Server.Bind = "custom" }, "server.host"},
		{"bad llm provider", func(c *Config) { c.LLM.Provider = "llama" }, "llm.provider"},
		{"openai needs key", func(c *Config) { c.LLM.APIKey = "" }, "llm.apiKey"},
		{"bad store", func(c *Config) { c.Session.Store = "redis" }, "session.store"},
		{"sqlite needs path", func(c *Config) { c.Session.Store = "sqlite" }, "session.sqlitePath"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.LLM.APIKey = "sk-x"
			tc.mutate(&cfg)

			issues := Validate(&cfg)
			require.NotEmpty(t, issues)
			paths := make([]string, 0, len(issues))
			for _, i := range issues {
				paths = append(paths, i.Path)
			}
			assert.Contains(t, paths, tc.wantKey)
		})
	}

	t.Run("valid config has no issues", func(t *testing.T) {
		cfg := Defaults()
		cfg.LLM.APIKey = "sk-x"
		assert.Empty(t, Validate(&cfg))
	})
}

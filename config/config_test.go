package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_RepositoryConfig(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadFrom("local", ".")
	require.NoError(t, err)

	assert.Equal(t, "scrumboard", cfg.DB.Name)
	assert.Equal(t, "local-development-secret", cfg.JWT.Secret)
	assert.Equal(t, 100*time.Millisecond, cfg.DB.SlowQueryThreshold)
	assert.Equal(t, "@every 5m", cfg.Scheduler.OverdueSpec)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("MQ_URL", "amqp://rabbit:5672/")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := LoadFrom("local", ".")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, ":9999", cfg.Server.Port)
	assert.Equal(t, "amqp://rabbit:5672/", cfg.MQ.URL)
	assert.True(t, cfg.OTel.Enabled)
}

func TestLoadFrom_DefaultsFillMissingKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(`
db:
  name: board
jwt:
  secret: s3cret
`), 0o600))

	cfg, err := LoadFrom("", dir)
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: true},
		{name: "missing db name", mutate: func(c *Config) { c.DB.Name = "" }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.Outbox.BatchSize = 0 }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWT.Secret = "x"
			cfg.DB.Name = "board"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

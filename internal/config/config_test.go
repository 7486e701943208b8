package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.Secret)
}

func TestLoadDefaultsToSQLiteFile(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "fiado.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Reports.CacheTTL)
	assert.Equal(t, ":8080", cfg.Address())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://fiado@localhost/fiado")
	t.Setenv("REPORT_CACHE_TTL", "2m")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://fiado@localhost/fiado", cfg.Database.URL)
	assert.Equal(t, 2*time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, ":9090", cfg.Address())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("REPORT_CACHE_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

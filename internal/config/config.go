package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	AllowedOrigin string
	Database      DatabaseConfig
	Redis         RedisConfig
	Reports       ReportsConfig
	Auth          AuthConfig
	LogLevel      string
	MetricsPrefix string
	SeedDemoData  bool
}

type DatabaseConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver       string
	Path         string
	URL          string
	MaxOpenConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ReportsConfig struct {
	CacheTTL    time.Duration
	RefreshSpec string
}

type AuthConfig struct {
	Secret         string
	AccessTokenTTL time.Duration

	// OwnerUsername and OwnerPassword bootstrap the owner account on an empty store.
	OwnerUsername string
	OwnerPassword string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_PATH", "fiado.db")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REPORT_CACHE_TTL", "30s")
	viper.SetDefault("REPORT_REFRESH_SPEC", "0 */5 * * * *")
	viper.SetDefault("AUTH_SECRET", "")
	viper.SetDefault("ACCESS_TOKEN_TTL", "8h")
	viper.SetDefault("OWNER_USERNAME", "owner")
	viper.SetDefault("OWNER_PASSWORD", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("METRICS_PREFIX", "fiado")
	viper.SetDefault("SEED_DEMO", false)

	cacheTTL, err := time.ParseDuration(viper.GetString("REPORT_CACHE_TTL"))
	if err != nil {
		return Config{}, fmt.Errorf("REPORT_CACHE_TTL: %w", err)
	}
	tokenTTL, err := time.ParseDuration(viper.GetString("ACCESS_TOKEN_TTL"))
	if err != nil {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_TTL: %w", err)
	}

	driver := strings.ToLower(strings.TrimSpace(viper.GetString("DB_DRIVER")))
	switch driver {
	case "sqlite", "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be sqlite, postgres or memory, got %q", driver)
	}

	maxOpen := viper.GetInt("DB_MAX_OPEN_CONNS")
	if maxOpen < 1 {
		maxOpen = 10
	}

	cfg := Config{
		Port:          viper.GetString("PORT"),
		AllowedOrigin: viper.GetString("ALLOWED_ORIGIN"),
		Database: DatabaseConfig{
			Driver:       driver,
			Path:         viper.GetString("DB_PATH"),
			URL:          viper.GetString("DATABASE_URL"),
			MaxOpenConns: maxOpen,
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Reports: ReportsConfig{
			CacheTTL:    cacheTTL,
			RefreshSpec: strings.TrimSpace(viper.GetString("REPORT_REFRESH_SPEC")),
		},
		Auth: AuthConfig{
			Secret:         strings.TrimSpace(viper.GetString("AUTH_SECRET")),
			AccessTokenTTL: tokenTTL,
			OwnerUsername:  strings.TrimSpace(viper.GetString("OWNER_USERNAME")),
			OwnerPassword:  viper.GetString("OWNER_PASSWORD"),
		},
		LogLevel:      viper.GetString("LOG_LEVEL"),
		MetricsPrefix: viper.GetString("METRICS_PREFIX"),
		SeedDemoData:  viper.GetBool("SEED_DEMO"),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

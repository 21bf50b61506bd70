package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath           string
	ServerPort       string
	LogLevel         string
	HiscoresBaseURL  string
	SchedulerEnabled bool
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "osrs-tracker.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HiscoresBaseURL:  getEnv("HISCORES_BASE_URL", "https://secure.runescape.com"),
		SchedulerEnabled: getEnv("SCHEDULER_ENABLED", "true") == "true",
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("hiscores_base_url", cfg.HiscoresBaseURL).
		Bool("scheduler_enabled", cfg.SchedulerEnabled).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)

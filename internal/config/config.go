package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"share-service/internal/MinIO"
	"share-service/internal/events"
	"share-service/pkg/database/postgres"
	"share-service/pkg/database/redis"
)

type Config struct {
	HTTPPort      string        `env:"HTTP_PORT" env-default:"8080"`
	JWTSecret     string        `env:"JWT_TOKEN" env-default:""`
	SweepInterval time.Duration `env:"GRANT_SWEEP_INTERVAL" env-default:"10m"`
	Postgres      postgres.Config
	Redis         redis.Config
	MinIO         MinIO.Config
	NATS          events.Config
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(".env", &cfg); err != nil {
		// No .env in the environment-driven deployments; fall back to the
		// process environment.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_TOKEN must be set")
	}
	return &cfg, nil
}

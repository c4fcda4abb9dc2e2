package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
		AdminRole string `yaml:"admin_role"`
	} `yaml:"auth"`
	Scoring struct {
		FixedPassThreshold float64 `yaml:"fixed_pass_threshold"`
		ClampTimeTaken     *bool   `yaml:"clamp_time_taken"`
	} `yaml:"scoring"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`
	Seed struct {
		Path string `yaml:"path"`
	} `yaml:"seed"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error: the service can run from env alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	applyEnv(&cfg, os.LookupEnv)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("PORT", &cfg.Server.Port)
	set("POSTGRES_URL", &cfg.Postgres.URL)
	set("REDIS_ADDR", &cfg.Redis.Addr)
	set("JWT_SECRET", &cfg.Auth.JWTSecret)
	set("LOG_LEVEL", &cfg.Log.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = "admin"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Scoring.ClampTimeTaken == nil {
		clamp := true
		cfg.Scoring.ClampTimeTaken = &clamp
	}
}

// ClampTimeTaken reports whether reported durations are capped at the quiz limit.
func (c Config) ClampTimeTaken() bool {
	return c.Scoring.ClampTimeTaken == nil || *c.Scoring.ClampTimeTaken
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

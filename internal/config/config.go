// Package config loads service settings from the environment.
//
// A `.env` file in the working directory is loaded first when present.
// Every value has a default so the service starts with no environment at all.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration object.
//
// Environment variables map onto koanf keys by lowercasing and turning the
// first underscore into a dot: DB_HOST -> db.host, INIT_RETRY_DELAY -> init.retry_delay.
type Config struct {
	Port string         `koanf:"port" validate:"required"`
	DB   DatabaseConfig `koanf:"db" validate:"required"`
	Init InitConfig     `koanf:"init" validate:"required"`
	Log  LogConfig      `koanf:"log" validate:"required"`
	CORS CORSConfig     `koanf:"cors" validate:"required"`
}

type DatabaseConfig struct {
	Driver       string `koanf:"driver" validate:"required,oneof=mysql postgres sqlite"`
	Host         string `koanf:"host" validate:"required"`
	Port         int    `koanf:"port" validate:"required,min=1,max=65535"`
	User         string `koanf:"user" validate:"required"`
	Password     string `koanf:"password"`
	Name         string `koanf:"name" validate:"required"`
	SSLMode      string `koanf:"ssl_mode"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns int    `koanf:"max_idle_conns" validate:"min=0"`
}

// InitConfig controls the startup connection retry loop.
type InitConfig struct {
	Retries    int           `koanf:"retries" validate:"min=1"`
	RetryDelay time.Duration `koanf:"retry_delay" validate:"min=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
	File   string `koanf:"file"`
}

type CORSConfig struct {
	AllowedOrigins string `koanf:"allowed_origins" validate:"required"`
}

// Origins splits the comma separated origin list.
func (c CORSConfig) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Default returns the settings used when no environment is provided.
func Default() *Config {
	return &Config{
		Port: "3000",
		DB: DatabaseConfig{
			Driver:       "mysql",
			Host:         "db",
			Port:         3306,
			User:         "root",
			Password:     "password",
			Name:         "studentdb",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 10,
		},
		Init: InitConfig{
			Retries:    5,
			RetryDelay: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		CORS: CORSConfig{
			AllowedOrigins: "*",
		},
	}
}

var envPrefixes = []string{"PORT", "DB_", "INIT_", "LOG_", "CORS_"}

// envKey maps an environment variable to its koanf key. Unrelated
// variables map to "" and are skipped by the provider.
func envKey(s string) string {
	for _, p := range envPrefixes {
		if s == p || (strings.HasSuffix(p, "_") && strings.HasPrefix(s, p)) {
			return strings.Replace(strings.ToLower(s), "_", ".", 1)
		}
	}
	return ""
}

// Load reads the environment over Default and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

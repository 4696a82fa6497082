// Package config loads application configuration.
//
// Priority: ENV > YAML file > defaults (env-default tags).
// The YAML path comes from CONFIG_PATH (fallback "./config.yaml"); when the
// fallback file does not exist, configuration is read from ENV + defaults.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	CORS   CORSConfig   `yaml:"cors"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int    `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     int    `yaml:"read_timeout_s"   env:"SERVER_READ_TIMEOUT_S"   env-default:"15"`
	WriteTimeout    int    `yaml:"write_timeout_s"  env:"SERVER_WRITE_TIMEOUT_S"  env-default:"15"`
	IdleTimeout     int    `yaml:"idle_timeout_s"   env:"SERVER_IDLE_TIMEOUT_S"   env-default:"60"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_s" env:"SERVER_SHUTDOWN_TIMEOUT_S" env-default:"30"`
	StaticDir       string `yaml:"static_dir"       env:"SERVER_STATIC_DIR"       env-default:"./web/dist"`
}

// StoreConfig selects and configures the document store backend.
//
// Backend is one of "memory", "file", "sqlite". Passphrase, when set,
// wraps the chosen backend in the encryption envelope.
type StoreConfig struct {
	Backend    string `yaml:"backend"     env:"STORE_BACKEND"     env-default:"file"`
	DataDir    string `yaml:"data_dir"    env:"STORE_DATA_DIR"    env-default:"./data"`
	SQLitePath string `yaml:"sqlite_path" env:"STORE_SQLITE_PATH" env-default:"./data/records.db"`
	Passphrase string `yaml:"passphrase"  env:"STORE_PASSPHRASE"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:5173,http://localhost:8080"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// Package config loads server configuration from an optional YAML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Log     LogConfig     `yaml:"log"`
	Auth    AuthConfig    `yaml:"auth"`
	Billing BillingConfig `yaml:"billing"`
	Media   MediaConfig   `yaml:"media"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	// Token is the bearer token required on the HTTP surface. Empty
	// disables authentication.
	Token string `yaml:"token"`
}

type BillingConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	Conf           string `yaml:"conf"`
	Retries        int    `yaml:"retries"`
	RetryDelaySecs int    `yaml:"retry_delay_secs"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

type MediaConfig struct {
	CarImagesDir   string `yaml:"car_images_dir"`
	EntryImagesDir string `yaml:"entry_images_dir"`
	ExitVideosDir  string `yaml:"exit_videos_dir"`
}

// Load reads configuration from an optional YAML file and environment
// variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "parkline.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Billing: BillingConfig{
			BaseURL:        "https://api.parkonic.com/api/street-parking/v2",
			Retries:        3,
			RetryDelaySecs: 1,
			TimeoutSecs:    10,
		},
		Media: MediaConfig{
			CarImagesDir:   "car_images",
			EntryImagesDir: "entry_images",
			ExitVideosDir:  "exit_videos",
		},
	}

	if path := os.Getenv("PARKLINE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("PARKLINE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PARKLINE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PARKLINE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("PARKLINE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("PARKLINE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if token := os.Getenv("PARKLINE_AUTH_TOKEN"); token != "" {
		cfg.Auth.Token = token
	}
	if url := os.Getenv("PARKLINE_BILLING_URL"); url != "" {
		cfg.Billing.BaseURL = url
	}
	if token := os.Getenv("PARKLINE_BILLING_TOKEN"); token != "" {
		cfg.Billing.Token = token
	}
	if conf := os.Getenv("PARKLINE_BILLING_CONF"); conf != "" {
		cfg.Billing.Conf = conf
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

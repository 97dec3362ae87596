package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ProvidersConfig points at the external services the pipeline calls.
type ProvidersConfig struct {
	ContentAPIURL string `yaml:"content_api_url"`
	ContentAPIKey string `yaml:"content_api_key"`
	ContentModel  string `yaml:"content_model"`
	ImageAPIURL   string `yaml:"image_api_url"`
	ImageAPIKey   string `yaml:"image_api_key"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// EngineConfig holds the knobs for the background-work engine.
type EngineConfig struct {
	// SweepInterval is how often the due-post publisher scans for pending
	// posts whose due time has passed.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// MaxPublishAttempts caps retries for one scheduled post before it is
	// marked terminally failed.
	MaxPublishAttempts int `yaml:"max_publish_attempts"`
	// BulkWorkers is the number of bulk operations processed concurrently.
	// Items inside one operation are always sequential.
	BulkWorkers int `yaml:"bulk_workers"`
	// BulkItemDelay throttles consecutive remote calls within one bulk
	// operation.
	BulkItemDelay time.Duration `yaml:"bulk_item_delay"`
	// BulkQueueSize bounds how many submitted operations can wait for a
	// worker.
	BulkQueueSize int `yaml:"bulk_queue_size"`
	// CollaboratorTimeout bounds every single external call (generation,
	// metadata, images, publish, feed fetch).
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout"`
	// DefaultTimezone is used for schedules created without one.
	DefaultTimezone string `yaml:"default_timezone"`
}

var AppConfig *Config

func Load(path string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: 8989,
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Path: "./data/content-panel.db",
		},
		JWT: JWTConfig{
			Secret: "change-this-secret-in-production",
			Expiry: 24 * time.Hour,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin123",
			Email:    "admin@localhost",
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			SweepInterval:       time.Minute,
			MaxPublishAttempts:  3,
			BulkWorkers:         1,
			BulkItemDelay:       time.Second,
			BulkQueueSize:       64,
			CollaboratorTimeout: 60 * time.Second,
			DefaultTimezone:     "UTC",
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(config)
			AppConfig = config
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	applyEnv(config)
	AppConfig = config
	return config, nil
}

func applyEnv(config *Config) {
	if port := os.Getenv("CONTENT_PANEL_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			config.Server.Port = p
		}
	}
	if secret := os.Getenv("CONTENT_PANEL_JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}
	if level := os.Getenv("CONTENT_PANEL_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if key := os.Getenv("CONTENT_API_KEY"); key != "" {
		config.Providers.ContentAPIKey = key
	}
	if key := os.Getenv("IMAGE_API_KEY"); key != "" {
		config.Providers.ImageAPIKey = key
	}
}

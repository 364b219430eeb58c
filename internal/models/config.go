package models

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

type TaggingConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Config struct {
	ServerAddr    string        `yaml:"server_addr"`
	DatabaseURL   string        `yaml:"database_url"`
	KafkaBroker   string        `yaml:"kafka_broker"`
	KafkaTopic    string        `yaml:"kafka_topic"`
	KafkaGroup    string        `yaml:"kafka_group"`
	StoragePath   string        `yaml:"storage_path"`
	PreviewDir    string        `yaml:"preview_dir"`
	DefaultFormat string        `yaml:"default_format"`
	WarmWidths    []int         `yaml:"warm_widths"`
	MaxWidth      int           `yaml:"max_width"`
	WarmSchedule  string        `yaml:"warm_schedule"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	Tagging       TaggingConfig `yaml:"tagging"`
}

// DefaultWarmWidths are the widths the site templates request.
var DefaultWarmWidths = []int{400, 500, 600, 700, 800, 900, 1000, 1200, 2500}

func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.KafkaGroup == "" {
		c.KafkaGroup = "preview-warmup-group"
	}
	if c.StoragePath == "" {
		c.StoragePath = "media"
	}
	if c.PreviewDir == "" {
		c.PreviewDir = filepath.Join(c.StoragePath, "preview")
	}
	if c.DefaultFormat == "" {
		c.DefaultFormat = "webp"
	}
	if len(c.WarmWidths) == 0 {
		c.WarmWidths = append([]int(nil), DefaultWarmWidths...)
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = 4000
	}
	if c.Tagging.Timeout == 0 {
		c.Tagging.Timeout = 60 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

// Validate reports the first config value the service cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.MaxWidth < 0 {
		return fmt.Errorf("max_width must not be negative, got %d", c.MaxWidth)
	}
	for _, w := range c.WarmWidths {
		if w <= 0 {
			return fmt.Errorf("warm_widths must be positive, got %d", w)
		}
	}
	if c.Tagging.Enabled && c.Tagging.Endpoint == "" {
		return fmt.Errorf("tagging.endpoint is required when tagging is enabled")
	}
	switch c.DefaultFormat {
	case "webp", "jpeg", "jpg", "png":
	default:
		return fmt.Errorf("unsupported default_format %q", c.DefaultFormat)
	}
	return nil
}

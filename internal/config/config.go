package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultTimezone = "Asia/Jakarta"

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		Timezone                    string  `yaml:"timezone"`
		GracePeriodMinutes          int     `yaml:"grace_period_minutes"`
		AutoCompleteIntervalSeconds int     `yaml:"auto_complete_interval_seconds"`
		AutoCompleteBatchSize       int     `yaml:"auto_complete_batch_size"`
		AutoCompleteRatePerSecond   float64 `yaml:"auto_complete_rate_per_second"`
	} `yaml:"booking"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportDir     string `yaml:"export_dir"`
		ExportOnStart bool   `yaml:"export_on_start"`
	} `yaml:"audit"`

	Fields []FieldConfig `yaml:"fields"`
	Users  []UserConfig  `yaml:"users"`
}

// BackupConfig controls periodic SQLite snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// FieldConfig seeds one bookable field.
type FieldConfig struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	OpenTime  string `yaml:"open_time"`
	CloseTime string `yaml:"close_time"`
	Active    *bool  `yaml:"active"`
}

// IsActive defaults to true when the flag is omitted.
func (f FieldConfig) IsActive() bool {
	return f.Active == nil || *f.Active
}

// UserConfig seeds one user and their role.
type UserConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/fieldbooking.db"
	}
	if cfg.Booking.Timezone == "" {
		cfg.Booking.Timezone = defaultTimezone
	}
	if _, err = time.LoadLocation(cfg.Booking.Timezone); err != nil {
		return nil, fmt.Errorf("booking.timezone: %w", err)
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "booking-transitions"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location returns the wall-clock zone booking dates and times are expressed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GracePeriod() time.Duration {
	if c.Booking.GracePeriodMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Booking.GracePeriodMinutes) * time.Minute
}

func (c *Config) AutoCompleteInterval() time.Duration {
	if c.Booking.AutoCompleteIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Booking.AutoCompleteIntervalSeconds) * time.Second
}

func (c *Config) AutoCompleteBatchSize() int {
	if c.Booking.AutoCompleteBatchSize <= 0 {
		return 500
	}
	return c.Booking.AutoCompleteBatchSize
}

func (c *Config) AutoCompleteRate() float64 {
	if c.Booking.AutoCompleteRatePerSecond <= 0 {
		return 50
	}
	return c.Booking.AutoCompleteRatePerSecond
}

func (c *Config) HTTPPort() int {
	if c.HTTP.Port == 0 {
		return 8080
	}
	return c.HTTP.Port
}

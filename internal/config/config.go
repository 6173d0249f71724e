// Package config loads the service configuration from YAML with
// environment variable overrides for deploy-time secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Pipeline struct {
		// Routes are directed "IST-JFK" pairs; the reverse direction is
		// fetched automatically.
		Routes          []string      `yaml:"routes" validate:"required,min=1,dive,len=7"`
		TickInterval    time.Duration `yaml:"tick_interval" default:"30m"`
		LookaheadDays   int           `yaml:"lookahead_days" default:"30" validate:"gt=0"`
		DetectWorkers   int           `yaml:"detect_workers" default:"4" validate:"gt=0"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	} `yaml:"pipeline"`

	Source struct {
		// Type selects the fare source: "http" or "stub".
		Type        string        `yaml:"type" default:"http" validate:"oneof=http stub"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
		MinInterval time.Duration `yaml:"min_interval" default:"1s"`
	} `yaml:"source"`

	Currency struct {
		Reference string             `yaml:"reference" default:"TRY"`
		Rates     map[string]float64 `yaml:"rates"`
		// RatesURL enables live rate refresh when set.
		RatesURL        string        `yaml:"rates_url"`
		RefreshInterval time.Duration `yaml:"refresh_interval" default:"1h"`
	} `yaml:"currency"`

	Combiner struct {
		LongHaulMinutes int `yaml:"long_haul_minutes" default:"360" validate:"gt=0"`
		ShortStay       struct {
			MinNights int `yaml:"min_nights" default:"2"`
			MaxNights int `yaml:"max_nights" default:"7"`
		} `yaml:"short_stay"`
		LongStay struct {
			MinNights int `yaml:"min_nights" default:"5"`
			MaxNights int `yaml:"max_nights" default:"14"`
		} `yaml:"long_stay"`
	} `yaml:"combiner"`

	Detection struct {
		PercentEnabled   bool    `yaml:"percent_enabled" default:"true"`
		PercentThreshold float64 `yaml:"percent_threshold" default:"15" validate:"gt=0"`
		ZScoreEnabled    bool    `yaml:"zscore_enabled" default:"true"`
		ZScoreThreshold  float64 `yaml:"zscore_threshold" default:"2" validate:"gt=0"`
		MinSamples       int     `yaml:"min_samples" default:"10" validate:"gt=1"`
		PriceCeiling     float64 `yaml:"price_ceiling"`
		PriceBucketSize  float64 `yaml:"price_bucket_size" default:"100" validate:"gt=0"`
	} `yaml:"detection"`

	Alerts struct {
		DedupeRetention time.Duration `yaml:"dedupe_retention" default:"24h"`
		MaxRetries      uint64        `yaml:"max_retries" default:"3"`
		RetryInterval   time.Duration `yaml:"retry_interval" default:"2s"`
	} `yaml:"alerts"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic" default:"farewatch.alerts"`
	} `yaml:"kafka"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	ClickHouse struct {
		Addr     string `yaml:"addr"`
		Database string `yaml:"database" default:"farewatch"`
		User     string `yaml:"user" default:"default"`
		Password string `yaml:"password"`
	} `yaml:"clickhouse"`

	Archive struct {
		Enabled bool   `yaml:"enabled"`
		Bucket  string `yaml:"bucket"`
		Prefix  string `yaml:"prefix" default:"fares"`
		Region  string `yaml:"region" default:"us-east-1"`
		// Endpoint overrides the S3 endpoint for MinIO-style deployments.
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"archive"`

	Retention struct {
		Fares        time.Duration `yaml:"fares" default:"720h"`
		Combinations time.Duration `yaml:"combinations" default:"720h"`
		Alerts       time.Duration `yaml:"alerts" default:"2160h"`
	} `yaml:"retention"`

	Logging struct {
		Level   string `yaml:"level" default:"info"`
		Console bool   `yaml:"console" default:"true"`
		// File enables a rotating file sink when set.
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"30"`
	} `yaml:"logging"`
}

// Load reads, defaults, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and endpoints
// with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FAREWATCH_ROUTES"); v != "" {
		c.Pipeline.Routes = strings.Split(v, ",")
	}
	if v := os.Getenv("FARE_API_KEY"); v != "" {
		c.Source.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_ADDR"); v != "" {
		c.ClickHouse.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("AWS_S3_BUCKET"); v != "" {
		c.Archive.Bucket = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		c.Archive.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		c.Archive.SecretKey = v
	}

	return c, nil
}

// Validate checks structural constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Source.Type == "http" && c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required when source.type is http")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}
	if c.Combiner.ShortStay.MinNights > c.Combiner.ShortStay.MaxNights {
		return fmt.Errorf("combiner.short_stay window is inverted")
	}
	if c.Combiner.LongStay.MinNights > c.Combiner.LongStay.MaxNights {
		return fmt.Errorf("combiner.long_stay window is inverted")
	}
	return nil
}

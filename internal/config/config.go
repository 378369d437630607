// Package config provides configuration loading, validation, and defaults
// for the wagate gateway. Values come from a YAML file overridden by
// WAGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all components
// of the gateway: logging, HTTP surface, WhatsApp client, media pipeline,
// PDF processing, send-history database, and the orphan-file sweep.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Media    MediaConfig    `mapstructure:"media"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	Database DatabaseConfig `mapstructure:"database"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// HTTPConfig controls the REST listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"         validate:"required"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=1m"`
}

// WhatsAppConfig controls the whatsmeow client and its on-disk session store.
type WhatsAppConfig struct {
	SessionDB    string `mapstructure:"session_db"    validate:"required"`
	DownloadsDir string `mapstructure:"downloads_dir" validate:"required"`
}

// MediaConfig controls the conversion pipeline. The 64 MiB payload ceiling is
// fixed by the transport and is not configurable.
type MediaConfig struct {
	FFmpegPath     string        `mapstructure:"ffmpeg_path"     validate:"required"`
	ConvertTimeout time.Duration `mapstructure:"convert_timeout" validate:"min=1s,max=30m"`
}

// PDFConfig controls the external PDF-processing command invoked by the watcher.
type PDFConfig struct {
	Command string        `mapstructure:"command" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

// DatabaseConfig controls the send-history SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// SummaryConfig controls the optional Gemini caption generator for forwarded
// PDFs. Summaries are disabled when APIKey is empty.
type SummaryConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

// SweepConfig controls the periodic sweep of orphaned files in the downloads
// directory.
type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"min=1m"`
	MaxAge   time.Duration `mapstructure:"max_age"  validate:"min=1m"`
}

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. The YAML file at path (optional)
// 3. WAGATE_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("WAGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything has a default or an
		// environment override.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("whatsapp.session_db", "session.db")
	v.SetDefault("whatsapp.downloads_dir", "downloads")

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.convert_timeout", 2*time.Minute)

	v.SetDefault("pdf.command", "process_pdf.py")
	v.SetDefault("pdf.timeout", 30*time.Second)

	v.SetDefault("database.path", "wagate.db")

	v.SetDefault("summary.model", "gemini-2.0-flash")
	v.SetDefault("summary.timeout", time.Minute)

	v.SetDefault("sweep.interval", 30*time.Minute)
	v.SetDefault("sweep.max_age", 2*time.Hour)
}

// Package app wires the booking and download dialogues into a Telegram bot.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/bookingbot/app/media"
	coreconfig "github.com/m3rciful/bookingbot/core/config"
	coredatabase "github.com/m3rciful/bookingbot/core/database"
)

// DownloadConfig controls the yt-dlp fetcher.
type DownloadConfig struct {
	Dir            string `yaml:"dir" envconfig:"DOWNLOAD_DIR"`
	YtdlpPath      string `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	MaxFileMB      int    `yaml:"max_file_mb" envconfig:"DOWNLOAD_MAX_FILE_MB"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"DOWNLOAD_TIMEOUT_SECONDS"`
}

// Timeout returns the per-invocation yt-dlp timeout.
func (c DownloadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Download DownloadConfig      `yaml:"download"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path and the environment into a validated Config.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the core section and fills download defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if c.Download.MaxFileMB < 0 || c.Download.TimeoutSeconds < 0 {
		return fmt.Errorf("download.max_file_mb and download.timeout_seconds must be >= 0")
	}
	if c.Download.MaxFileMB == 0 {
		c.Download.MaxFileMB = media.DefaultMaxFileMB
	}
	if strings.TrimSpace(c.Download.Dir) == "" {
		c.Download.Dir = "downloads"
	}
	if strings.TrimSpace(c.Database.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	return nil
}

// Package config loads and validates the clipcourier configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultCeilingBytes    = 49 * 1024 * 1024
	DefaultSendsPerSecond  = 1.0
	DefaultYtdlpPath       = "yt-dlp"
	DefaultScratchRoot     = "scratch"
	DefaultFetchTimeout    = 600
	DefaultVideoLowHeight  = 480
	DefaultVideoHighHeight = 1080
	DefaultAudioFormat     = "mp3"
	DefaultAudioBitrate    = "192K"
	DefaultSendRetries     = 3
	DefaultJanitorMaxAge   = "6h"
	DefaultJanitorSpec     = "@hourly"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Telegram TelegramConfig `toml:"telegram"`
	Fetch    FetchConfig    `toml:"fetch"`
	Transfer TransferConfig `toml:"transfer"`
	Janitor  JanitorConfig  `toml:"janitor"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type TelegramConfig struct {
	BotToken       string  `toml:"bot_token" validate:"required"`
	CeilingBytes   int64   `toml:"ceiling_bytes" validate:"gt=0"`
	SendsPerSecond float64 `toml:"sends_per_second" validate:"gt=0"`
}

type FetchConfig struct {
	YtdlpPath       string `toml:"ytdlp_path" validate:"required"`
	CookiesFile     string `toml:"cookies_file"`
	ScratchRoot     string `toml:"scratch_root" validate:"required"`
	TimeoutSeconds  int    `toml:"timeout_seconds" validate:"gt=0"`
	VideoLowHeight  int    `toml:"video_low_height" validate:"gt=0"`
	VideoHighHeight int    `toml:"video_high_height" validate:"gt=0"`
	AudioFormat     string `toml:"audio_format" validate:"required"`
	AudioBitrate    string `toml:"audio_bitrate" validate:"required"`
}

type TransferConfig struct {
	SendRetries uint `toml:"send_retries" validate:"gt=0"`
}

type JanitorConfig struct {
	MaxAge   string `toml:"max_age" validate:"required"`
	Schedule string `toml:"schedule" validate:"required"`
}

// Timeout returns the per-fetch timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MaxAgeDuration parses the janitor max age; Validate guarantees it parses.
func (c JanitorConfig) MaxAgeDuration() (time.Duration, error) {
	return time.ParseDuration(c.MaxAge)
}

// Load reads the config file at path, falling back to defaults for anything
// not set. A missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telegram: TelegramConfig{
			CeilingBytes:   DefaultCeilingBytes,
			SendsPerSecond: DefaultSendsPerSecond,
		},
		Fetch: FetchConfig{
			YtdlpPath:       DefaultYtdlpPath,
			ScratchRoot:     DefaultScratchRoot,
			TimeoutSeconds:  DefaultFetchTimeout,
			VideoLowHeight:  DefaultVideoLowHeight,
			VideoHighHeight: DefaultVideoHighHeight,
			AudioFormat:     DefaultAudioFormat,
			AudioBitrate:    DefaultAudioBitrate,
		},
		Transfer: TransferConfig{
			SendRetries: DefaultSendRetries,
		},
		Janitor: JanitorConfig{
			MaxAge:   DefaultJanitorMaxAge,
			Schedule: DefaultJanitorSpec,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the loaded config against its struct tags plus the
// constraints the tags cannot express.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Janitor.MaxAgeDuration(); err != nil {
		return fmt.Errorf("invalid janitor max_age: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"fixfur/internal/core/domain"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken      string
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	Port               int
	LogLevel           zerolog.Level
	SystemPrompt       string
	Workers            int64
	MediaTimeout       time.Duration
	UpstreamTimeout    time.Duration
	HandlerTimeout     time.Duration
	ChunkSize          int
}

// env maps config keys to the environment variables that override them.
var env = map[string]string{
	"telegram.bot_token":         "TELEGRAM_BOT_TOKEN",
	"openai.api_key":             "OPENAI_API_KEY",
	"openai.base_url":            "OPENAI_BASE_URL",
	"openai.model":               "OPENAI_MODEL",
	"openai.transcription_model": "OPENAI_TRANSCRIPTION_MODEL",
	"server.port":                "PORT",
	"bot.log_level":              "LOG_LEVEL",
	"bot.system_prompt":          "BOT_SYSTEM_PROMPT",
	"bot.workers":                "BOT_WORKERS",
	"bot.media_timeout":          "BOT_MEDIA_TIMEOUT",
	"bot.upstream_timeout":       "BOT_UPSTREAM_TIMEOUT",
	"bot.handler_timeout":        "BOT_HANDLER_TIMEOUT",
	"bot.chunk_size":             "BOT_CHUNK_SIZE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("server.port", 10000)
	v.SetDefault("bot.log_level", "info")
	v.SetDefault("bot.system_prompt", domain.DefaultSystemPrompt)
	v.SetDefault("bot.workers", 8)
	v.SetDefault("bot.media_timeout", "60s")
	v.SetDefault("bot.upstream_timeout", "90s")
	v.SetDefault("bot.handler_timeout", "5m")
	v.SetDefault("bot.chunk_size", domain.TelegramMessageLimit)
}

// Load reads config.toml from the given paths (if present) and the environment. Missing
// credentials are reported as a ConfigMissing error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
	}

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("could not read config file: %w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var missing []error
	for _, key := range []string{"telegram.bot_token", "openai.api_key"} {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, fmt.Errorf("%w: %s (env %s)", domain.ErrMissingConfig, key, env[key]))
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewTurnError(domain.ConfigMissing, errors.Join(missing...))
	}

	cfg := &Config{
		TelegramToken:      strings.TrimSpace(v.GetString("telegram.bot_token")),
		APIKey:             strings.TrimSpace(v.GetString("openai.api_key")),
		BaseURL:            v.GetString("openai.base_url"),
		Model:              v.GetString("openai.model"),
		TranscriptionModel: v.GetString("openai.transcription_model"),
		Port:               v.GetInt("server.port"),
		LogLevel:           parseLogLevel(v.GetString("bot.log_level")),
		SystemPrompt:       v.GetString("bot.system_prompt"),
		Workers:            v.GetInt64("bot.workers"),
		ChunkSize:          v.GetInt("bot.chunk_size"),
	}

	var err error
	if cfg.MediaTimeout, err = parseDuration(v, "bot.media_timeout"); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = parseDuration(v, "bot.upstream_timeout"); err != nil {
		return nil, err
	}
	if cfg.HandlerTimeout, err = parseDuration(v, "bot.handler_timeout"); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("bot.workers must be positive, got %d", cfg.Workers)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("bot.chunk_size must be positive, got %d", cfg.ChunkSize)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}

	return d, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

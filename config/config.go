// Package config loads the giftcode CLI settings.
//
// Sources, lowest priority first: built-in defaults, an optional YAML file,
// and GIFTCODE_* environment variables. Nested keys are separated by an
// underscore in the environment, e.g. GIFTCODE_RETRY_MAXATTEMPTS sets
// retry.maxattempts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	client "github.com/peteraglen/giftcode-client"
)

const EnvPrefix = "GIFTCODE_"

type Config struct {
	API    APIConfig    `koanf:"api"`
	Retry  RetryConfig  `koanf:"retry"`
	Alerts AlertsConfig `koanf:"alerts"`
	Log    LogConfig    `koanf:"log"`
}

type APIConfig struct {
	BaseURL   string        `koanf:"baseurl" validate:"required,url"`
	Secret    string        `koanf:"secret" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	WarmUp    time.Duration `koanf:"warmup" validate:"gte=0"`
	BusyCode  int           `koanf:"busycode" validate:"gte=0"`
	RateLimit float64       `koanf:"ratelimit" validate:"gte=0"`
}

type RetryConfig struct {
	MaxAttempts int           `koanf:"maxattempts" validate:"gte=0,lte=100"`
	BaseDelay   time.Duration `koanf:"basedelay" validate:"gte=0"`
}

// AlertsConfig enables the Slack Manager notifier when URL is set.
type AlertsConfig struct {
	URL         string `koanf:"url" validate:"omitempty,url"`
	Token       string `koanf:"token"`
	RetryAlerts bool   `koanf:"retryalerts"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

func defaults() map[string]any {
	return map[string]any{
		"api.timeout":        "30s",
		"api.warmup":         "1500ms",
		"api.busycode":       client.DefaultBusyCode,
		"api.ratelimit":      0,
		"retry.maxattempts":  client.DefaultMaxAttempts,
		"retry.basedelay":    client.DefaultBaseDelay.String(),
		"alerts.retryalerts": true,
		"log.level":          "info",
		"log.pretty":         false,
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	return load(path, os.Environ)
}

func load(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return strings.ReplaceAll(key, "_", "."), value
		},
		EnvironFunc: environ,
	})

	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}

	return errors.New(strings.Join(msgs, "; "))
}

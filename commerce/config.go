package commerce

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "COMMERCE_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// Settings holds the tunables of the commerce workflows.
type Settings struct {
	// OrderNumberPrefix is prepended to generated order numbers.
	OrderNumberPrefix string `koanf:"order_number_prefix"`

	// CurrencyCode is the ISO currency code stamped on orders.
	CurrencyCode string `koanf:"currency_code"`

	// EventPrefix namespaces published event names; empty means no
	// prefix.
	EventPrefix string `koanf:"event_prefix"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		OrderNumberPrefix: "ORD-",
		CurrencyCode:      "usd",
	}
}

// LoadSettings loads settings with the following priority: environment
// variables (highest), an optional YAML file, then built-in defaults.
//
// Environment variables use the COMMERCE_ prefix:
// COMMERCE_ORDER_NUMBER_PREFIX, COMMERCE_CURRENCY_CODE, ...
func LoadSettings(path string) (Settings, error) {
	k := koanf.New(Delimiter)

	defaults := DefaultSettings()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"order_number_prefix": defaults.OrderNumberPrefix,
		"currency_code":       defaults.CurrencyCode,
		"event_prefix":        defaults.EventPrefix,
	}, Delimiter), nil); err != nil {
		return Settings{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Settings{}, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, Delimiter, func(s string) string {
		// COMMERCE_ORDER_NUMBER_PREFIX -> order_number_prefix
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("load env vars: %w", err)
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}

	return settings, nil
}

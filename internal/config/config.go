package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	BaseURL          string `mapstructure:"BASE_URL" validate:"required,url"`
	ManagementSiteID string `mapstructure:"MANAGEMENT_SITE_ID"`
	CurrentPlatform  string `mapstructure:"CURRENT_PLATFORM"`
	CurrentUser      string `mapstructure:"CURRENT_USER"`

	// RefreshDelay is the wait between a confirmed creation and the forced
	// list refresh. The backend's read-after-write window is unknown.
	RefreshDelay time.Duration `mapstructure:"REFRESH_DELAY" validate:"gte=0"`
	// HTTPTimeout of zero means no client-side timeout.
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT" validate:"gte=0"`

	BadgerDBPath string `mapstructure:"BADGERDB_PATH" validate:"required"`

	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile  string `mapstructure:"LOG_FILE"`

	TelegramBotToken  string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BrowserControlURL string `mapstructure:"BROWSER_CONTROL_URL"`
	PageURLMatch      string `mapstructure:"PAGE_URL_MATCH"`
	MetricsAddr       string `mapstructure:"METRICS_ADDR"`
}

var defaults = map[string]any{
	"BASE_URL":            "http://localhost:5000",
	"MANAGEMENT_SITE_ID":  "",
	"CURRENT_PLATFORM":    "",
	"CURRENT_USER":        "",
	"REFRESH_DELAY":       "1s",
	"HTTP_TIMEOUT":        "0s",
	"BADGERDB_PATH":       "./badger_data",
	"LOG_LEVEL":           "info",
	"LOG_FILE":            "",
	"TELEGRAM_BOT_TOKEN":  "",
	"BROWSER_CONTROL_URL": "",
	"PAGE_URL_MATCH":      "/customer/",
	"METRICS_ADDR":        "",
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Defaults make every key known to viper, so AutomaticEnv can
	// override keys that never appear in the file.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("LINKBOARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	config.LogLevel = strings.ToLower(config.LogLevel)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks field constraints declared in the struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

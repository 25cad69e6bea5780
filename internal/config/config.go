package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "HIVE_EXPLORER"
	defaultHTTPAddress         = "0.0.0.0:8080"
	defaultDatabasePath        = "hive-explorer.db"
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
	defaultHiveAPIURL          = "https://api.hive.blog"
	defaultHiveTimeoutSeconds  = 10
	defaultHiveCacheTTLSeconds = 30
	defaultFlowTimeoutSeconds  = 30
	defaultNotificationSeconds = 5
	defaultIdleMinutes         = 30
	defaultCookieName          = "hive_explorer_session"
	defaultTokenTTLMinutes     = 60
	defaultWriteRateLimit      = "30-M"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	LogFormat          string
	HiveAPIURL         string
	HiveRequestTimeout time.Duration
	HiveCacheTTL       time.Duration
	KeychainRelayURL   string
	FlowTimeout        time.Duration
	NotificationTTL    time.Duration
	ControllerIdleTTL  time.Duration
	SigningSecret      string
	SessionCookieName  string
	SessionTokenTTL    time.Duration
	WriteRateLimit     string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("hive.api_url", defaultHiveAPIURL)
	configViper.SetDefault("hive.request_timeout_seconds", defaultHiveTimeoutSeconds)
	configViper.SetDefault("hive.cache_ttl_seconds", defaultHiveCacheTTLSeconds)
	configViper.SetDefault("keychain.relay_url", "")
	configViper.SetDefault("flow.timeout_seconds", defaultFlowTimeoutSeconds)
	configViper.SetDefault("notifications.ttl_seconds", defaultNotificationSeconds)
	configViper.SetDefault("flow.idle_minutes", defaultIdleMinutes)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("ratelimit.writes", defaultWriteRateLimit)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          configViper.GetString("log.format"),
		HiveAPIURL:         strings.TrimSpace(configViper.GetString("hive.api_url")),
		HiveRequestTimeout: seconds(configViper.GetInt("hive.request_timeout_seconds")),
		HiveCacheTTL:       seconds(configViper.GetInt("hive.cache_ttl_seconds")),
		KeychainRelayURL:   strings.TrimSpace(configViper.GetString("keychain.relay_url")),
		FlowTimeout:        seconds(configViper.GetInt("flow.timeout_seconds")),
		NotificationTTL:    seconds(configViper.GetInt("notifications.ttl_seconds")),
		ControllerIdleTTL:  time.Duration(configViper.GetInt("flow.idle_minutes")) * time.Minute,
		SigningSecret:      configViper.GetString("auth.signing_secret"),
		SessionCookieName:  configViper.GetString("auth.cookie_name"),
		SessionTokenTTL:    time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		WriteRateLimit:     strings.TrimSpace(configViper.GetString("ratelimit.writes")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if _, err := url.ParseRequestURI(c.HiveAPIURL); err != nil {
		return fmt.Errorf("hive.api_url is invalid: %w", err)
	}
	if c.KeychainRelayURL != "" {
		if _, err := url.ParseRequestURI(c.KeychainRelayURL); err != nil {
			return fmt.Errorf("keychain.relay_url is invalid: %w", err)
		}
	}
	if c.HiveRequestTimeout <= 0 {
		return fmt.Errorf("hive.request_timeout_seconds must be positive")
	}
	if c.FlowTimeout <= 0 {
		return fmt.Errorf("flow.timeout_seconds must be positive")
	}
	if c.NotificationTTL <= 0 {
		return fmt.Errorf("notifications.ttl_seconds must be positive")
	}
	if c.ControllerIdleTTL <= 0 {
		return fmt.Errorf("flow.idle_minutes must be positive")
	}
	if c.SessionTokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	return nil
}

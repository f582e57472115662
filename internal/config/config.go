package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "GAZETTE"
	defaultHTTPAddress = "0.0.0.0:8000"
	defaultBackend     = BackendFile
	defaultStoragePath = "gazette.json"
	defaultLogLevel    = "info"
	defaultTokenTTL    = 7 * 24 * time.Hour
	defaultCORSOrigins = "*"

	// BackendFile persists the document as a single JSON file.
	BackendFile = "file"
	// BackendSQLite persists the document in an embedded SQLite database.
	BackendSQLite = "sqlite"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	SigningSecret  string
	TokenTTL       time.Duration
	StorageBackend string
	StoragePath    string
	LogLevel       string
	AllowedOrigins []string
	RateLimit      bool
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
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL.String())
	configViper.SetDefault("storage.backend", defaultBackend)
	configViper.SetDefault("storage.path", defaultStoragePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("cors.allowed_origins", defaultCORSOrigins)
	configViper.SetDefault("ratelimit.enabled", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		TokenTTL:       configViper.GetDuration("auth.token_ttl"),
		StorageBackend: strings.ToLower(strings.TrimSpace(configViper.GetString("storage.backend"))),
		StoragePath:    configViper.GetString("storage.path"),
		LogLevel:       configViper.GetString("log.level"),
		AllowedOrigins: splitOrigins(configViper.GetString("cors.allowed_origins")),
		RateLimit:      configViper.GetBool("ratelimit.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.StoragePath) == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.StorageBackend != BackendFile && c.StorageBackend != BackendSQLite {
		return fmt.Errorf("storage.backend must be %q or %q", BackendFile, BackendSQLite)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	return nil
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

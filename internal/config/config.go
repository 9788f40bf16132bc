package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nulzo/edge-gateway/internal/provider"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Log       LogConfig                 `mapstructure:"log"`
	RateLimit RateLimitConfig           `mapstructure:"rate_limit"`
	Tracing   TracingConfig             `mapstructure:"tracing"`
	Routing   RoutingConfig             `mapstructure:"routing"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	CheckUpdates    bool          `mapstructure:"check_updates"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type RoutingConfig struct {
	DefaultProvider string `mapstructure:"default_provider"`
	Strict          bool   `mapstructure:"strict"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// LoadConfig reads configuration from file or environment variables. Each
// descriptor's credential is bound to its own environment variable.
func LoadConfig(descriptors []provider.Descriptor) (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("./internal/config")
	}

	// Default Values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.check_updates", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "edge-gateway")
	v.SetDefault("routing.default_provider", provider.OpenAI)
	v.SetDefault("routing.strict", false)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, d := range descriptors {
		name := strings.ToLower(d.Name)
		if err := v.BindEnv("providers."+name+".api_key", d.CredentialEnv); err != nil {
			return nil, fmt.Errorf("binding %s: %w", d.CredentialEnv, err)
		}
		if err := v.BindEnv("providers."+name+".base_url", strings.ToUpper(name)+"_BASE_URL"); err != nil {
			return nil, fmt.Errorf("binding %s base url: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys
	for name, p := range cfg.Providers {
		if strings.HasPrefix(p.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(p.APIKey, "ENV:")
			// Check process environment first (explicit override)
			val := os.Getenv(envVar)
			if val == "" {
				// Then check viper (which might have it from other sources)
				val = v.GetString(envVar)
			}
			p.APIKey = val
		}
		cfg.Providers[name] = p
	}

	return &cfg, nil
}

// Credentials returns the configured provider secrets.
func (c *Config) Credentials() provider.Credentials {
	creds := make(provider.Credentials, len(c.Providers))
	for name, p := range c.Providers {
		if key := strings.TrimSpace(p.APIKey); key != "" {
			creds[strings.ToLower(name)] = key
		}
	}
	return creds
}

// BaseURLs returns the per-provider base URL overrides.
func (c *Config) BaseURLs() map[string]string {
	urls := make(map[string]string, len(c.Providers))
	for name, p := range c.Providers {
		if p.BaseURL != "" {
			urls[strings.ToLower(name)] = p.BaseURL
		}
	}
	return urls
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

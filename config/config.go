// Package config loads service configuration, environment first: every
// key maps to a FOUNDRY_* variable, with an optional yaml file layered
// underneath and a .env file autoloaded in development.
package config

import (
	"fmt"
	"strings"

	_ "github.com/joho/godotenv/autoload"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `mapstructure:"listen" validate:"required"`

	// NetworkName labels the agent network exposed by the API.
	NetworkName string `mapstructure:"network_name" validate:"required"`

	// OpenAIKey / GoogleAIKey select which providers are usable.
	OpenAIKey   string `mapstructure:"openai_api_key"`
	GoogleAIKey string `mapstructure:"google_ai_api_key"`

	// DefaultModel names the model every catalog agent runs on.
	DefaultModel string `mapstructure:"default_model"`

	// WebSearchKey enables the web search tool.
	WebSearchKey string `mapstructure:"web_search_key"`

	// RedisURL switches session memory from in-process to Redis.
	RedisURL string `mapstructure:"redis_url" validate:"omitempty,uri"`
	// MemoryTTL is the Redis history expiry in seconds, 0 keeps forever.
	MemoryTTL int `mapstructure:"memory_ttl" validate:"min=0"`

	// NATSURL enables cross-process event fanout for chat streams.
	NATSURL string `mapstructure:"nats_url" validate:"omitempty,uri"`

	// OTLPEndpoint turns on trace export; TraceConsole prints spans.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	TraceConsole bool   `mapstructure:"trace_console"`

	// AuthTokens are the accepted bearer tokens; empty disables auth.
	AuthTokens []string `mapstructure:"auth_tokens"`

	// CORSOrigins lists allowed origins for the chat UI.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`

	// MaxTurns caps run-loop turns per chat request.
	MaxTurns int `mapstructure:"max_turns" validate:"min=1"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("listen", ":8100")
	v.SetDefault("network_name", "deanmachines")
	v.SetDefault("default_model", "gpt-4o-mini")
	v.SetDefault("memory_ttl", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("max_turns", 10)
	v.SetDefault("cors_origins", []string{"*"})

	// AutomaticEnv only sees keys viper already knows about
	for _, key := range []string{
		"openai_api_key", "google_ai_api_key", "web_search_key",
		"redis_url", "nats_url", "otlp_endpoint",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("trace_console", false)
	v.SetDefault("auth_tokens", []string{})
}

// Load reads configuration from the environment and, when path is not
// empty, a yaml file. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("FOUNDRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// slices arrive comma-joined when set through the environment
	cfg.AuthTokens = splitCSV(cfg.AuthTokens)
	cfg.CORSOrigins = splitCSV(cfg.CORSOrigins)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func splitCSV(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

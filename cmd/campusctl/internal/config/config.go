package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/schoolops/campus/cmd/campusctl/internal/client"
)

// EnvPrefix is the prefix of every environment variable read by campusctl.
const EnvPrefix = "CAMPUS"

// Settings is the campusctl configuration. Values come from CAMPUS_*
// environment variables and may be overridden by persistent flags.
type Settings struct {
	ServerURL      string        `envconfig:"SERVER" default:"http://localhost:8080/api"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"warn"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"text"`
	NonInteractive bool          `envconfig:"NON_INTERACTIVE"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`

	// SessionStore selects the durable session backend: file, sqlite, redis or memory.
	SessionStore string `envconfig:"SESSION_STORE" default:"file"`
	SessionFile  string `envconfig:"SESSION_FILE"`
	SQLiteDSN    string `envconfig:"SQLITE_DSN"`

	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB"`
	RedisKeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"campus:session"`
	RedisTTL       time.Duration `envconfig:"REDIS_TTL" default:"24h"`

	PolicyFile string `envconfig:"POLICY_FILE"`

	ConsoleAddr      string `envconfig:"CONSOLE_ADDR" default:"127.0.0.1:8090"`
	ConsoleLoginRate int    `envconfig:"CONSOLE_LOGIN_RATE" default:"5"`
}

// Load reads Settings from the environment.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks values that envconfig cannot.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.ServerURL) == "" {
		return fmt.Errorf("server URL must not be empty")
	}
	switch s.SessionStore {
	case "file", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown session store %q (want file, sqlite, redis or memory)", s.SessionStore)
	}
	if s.ConsoleLoginRate <= 0 {
		return fmt.Errorf("console login rate must be positive")
	}
	return nil
}

// StateDir is the per-user directory holding local session data.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".campus"), nil
}

type contextKey string

const configKey contextKey = "campusctl-config"

// GlobalConfig holds shared configuration for all campusctl commands.
// This is injected into the cobra command context by the root command's
// PersistentPreRunE hook and consumed by all subcommands.
type GlobalConfig struct {
	Settings       Settings
	Logger         *slog.Logger
	ClientProvider *client.Provider
}

// InjectConfig adds config to the cobra command context.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from the cobra command context.
// Returns (nil, false) if config is not present.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext retrieves config from context or panics.
// This should only be used in command RunE functions where we know
// the config has been injected by the root command.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("campusctl: config not found in context - this is a bug in campusctl")
	}
	return cfg
}

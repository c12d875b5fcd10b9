// Package config provides Viper-based configuration loading for the broker.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LobbyConfig holds lobby registry and idle reaper settings.
type LobbyConfig struct {
	// CodeLength is the number of characters in generated lobby codes.
	CodeLength int `mapstructure:"code_length"`
	// CodeMaxAttempts bounds unique-code generation retries.
	CodeMaxAttempts int `mapstructure:"code_max_attempts"`
	// IdleThreshold is the inactivity window after which a lobby is reclaimed.
	IdleThreshold time.Duration `mapstructure:"idle_threshold"`
	// ReapInterval is the period between idle sweeps.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// SessionConfig holds session token settings.
type SessionConfig struct {
	// TokenTTL is the advisory validity window for minted session tokens.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// DirectorConfig holds single-player event director timing.
type DirectorConfig struct {
	// GraceDelay is the pause before the first generated event.
	GraceDelay time.Duration `mapstructure:"grace_delay"`
	// EventInterval is the pause between generated events.
	EventInterval time.Duration `mapstructure:"event_interval"`
	// RestartCooldown is the pause before the director resumes after a
	// terminal game event.
	RestartCooldown time.Duration `mapstructure:"restart_cooldown"`
}

// InterpreterConfig holds command interpreter collaborator settings.
type InterpreterConfig struct {
	// APIKey is the Anthropic API key; empty disables the remote interpreter.
	APIKey string `mapstructure:"api_key"`
	// Model is the model identifier used for interpreter calls.
	Model string `mapstructure:"model"`
	// MaxTokens caps the interpreter completion length.
	MaxTokens int `mapstructure:"max_tokens"`
	// Timeout bounds each interpreter call.
	Timeout time.Duration `mapstructure:"timeout"`
	// ParametersFile is the YAML parameter catalog path.
	ParametersFile string `mapstructure:"parameters_file"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Lobby       LobbyConfig       `mapstructure:"lobby"`
	Session     SessionConfig     `mapstructure:"session"`
	Director    DirectorConfig    `mapstructure:"director"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLobby(c.Lobby); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSession(c.Session); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDirector(c.Director); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateInterpreter(c.Interpreter); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLobby(l LobbyConfig) error {
	var errs []string
	if l.CodeLength < 4 || l.CodeLength > 12 {
		errs = append(errs, fmt.Sprintf("lobby.code_length must be 4-12, got %d", l.CodeLength))
	}
	if l.CodeMaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("lobby.code_max_attempts must be >= 1, got %d", l.CodeMaxAttempts))
	}
	if l.IdleThreshold <= 0 {
		errs = append(errs, "lobby.idle_threshold must be > 0")
	}
	if l.ReapInterval <= 0 {
		errs = append(errs, "lobby.reap_interval must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSession(s SessionConfig) error {
	if s.TokenTTL <= 0 {
		return fmt.Errorf("session.token_ttl must be > 0, got %s", s.TokenTTL)
	}
	return nil
}

func validateDirector(d DirectorConfig) error {
	var errs []string
	if d.GraceDelay < 0 {
		errs = append(errs, "director.grace_delay must not be negative")
	}
	if d.EventInterval <= 0 {
		errs = append(errs, "director.event_interval must be > 0")
	}
	if d.RestartCooldown < 0 {
		errs = append(errs, "director.restart_cooldown must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateInterpreter(i InterpreterConfig) error {
	var errs []string
	if i.Model == "" {
		errs = append(errs, "interpreter.model must not be empty")
	}
	if i.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("interpreter.max_tokens must be >= 1, got %d", i.MaxTokens))
	}
	if i.Timeout <= 0 {
		errs = append(errs, "interpreter.timeout must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with GOATSHELL_ prefix
	v.SetEnvPrefix("GOATSHELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("lobby.code_length", 6)
	v.SetDefault("lobby.code_max_attempts", 100)
	v.SetDefault("lobby.idle_threshold", "1h")
	v.SetDefault("lobby.reap_interval", "1h")

	v.SetDefault("session.token_ttl", "1h")

	v.SetDefault("director.grace_delay", "3s")
	v.SetDefault("director.event_interval", "5s")
	v.SetDefault("director.restart_cooldown", "5s")

	v.SetDefault("interpreter.model", "claude-sonnet-4-5")
	v.SetDefault("interpreter.max_tokens", 300)
	v.SetDefault("interpreter.timeout", "15s")
	v.SetDefault("interpreter.parameters_file", "content/parameters.yaml")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

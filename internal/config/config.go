package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Log     LogConfig     `mapstructure:"log"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              int    `mapstructure:"port"`
	BasicAuthUser     string `mapstructure:"basic_auth_user"`     // optional gate in front of every action
	BasicAuthPassword string `mapstructure:"basic_auth_password"`
}

// GitHubConfig holds the OAuth app credentials
type GitHubConfig struct {
	OAuthClientID     string `mapstructure:"oauth_client_id"`
	OAuthClientSecret string `mapstructure:"oauth_client_secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// SandboxConfig holds preview sandbox configuration
type SandboxConfig struct {
	WorkDir        string        `mapstructure:"work_dir"`        // parent of per-session sandbox roots; "" uses the OS temp dir
	InstallCommand string        `mapstructure:"install_command"` // shell-quoted
	DevCommand     string        `mapstructure:"dev_command"`     // shell-quoted
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout"`
}

// Load reads configuration from file and environment variables.
// configFile may be empty, in which case ./config.yaml is used when present.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("sandbox.install_command", "npm install")
	v.SetDefault("sandbox.dev_command", "npm run dev")
	v.SetDefault("sandbox.ready_timeout", 60*time.Second)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FIGCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names the hosted deployment already uses.
	_ = v.BindEnv("server.port", "FIGCODE_SERVER_PORT", "PORT")
	_ = v.BindEnv("github.oauth_client_id", "FIGCODE_GITHUB_OAUTH_CLIENT_ID", "GITHUB_OAUTH_CLIENT_ID")
	_ = v.BindEnv("github.oauth_client_secret", "FIGCODE_GITHUB_OAUTH_CLIENT_SECRET", "GITHUB_OAUTH_CLIENT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Sandbox.ReadyTimeout <= 0 {
		return nil, fmt.Errorf("sandbox.ready_timeout must be positive, got %s", cfg.Sandbox.ReadyTimeout)
	}

	return &cfg, nil
}

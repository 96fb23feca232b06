// Package config provides centralized configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultHTTPTimeout bounds every backend request when http_timeout is unset
// or unparseable.
const DefaultHTTPTimeout = 30 * time.Second

// Config holds all configuration values for dealerdesk.
type Config struct {
	APIURL      string `mapstructure:"api_url" yaml:"api_url"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	HTTPTimeout string `mapstructure:"http_timeout" yaml:"http_timeout"`
	Journal     bool   `mapstructure:"journal" yaml:"journal"`
	PaymentType string `mapstructure:"payment_type" yaml:"payment_type"`
}

var envKeys = []string{
	"api_url",
	"data_dir",
	"log_level",
	"log_file",
	"http_timeout",
	"journal",
	"payment_type",
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars (.env included) > project config > XDG global config > defaults
func Load() (*Config, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("dealerdesk")

	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("data_dir", ".dealerdesk")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("http_timeout", DefaultHTTPTimeout.String())
	v.SetDefault("journal", true)
	v.SetDefault("payment_type", "purchase")

	v.SetEnvPrefix("DEALERDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit ENV bindings for better bool parsing
	for _, key := range envKeys {
		if err := v.BindEnv(key, "DEALERDESK_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values the client cannot run without.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required (set in config file or DEALERDESK_API_URL env var)")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url %q is not an absolute URL", c.APIURL)
	}
	if c.HTTPTimeout != "" {
		if _, err := time.ParseDuration(c.HTTPTimeout); err != nil {
			return fmt.Errorf("http_timeout %q: %w", c.HTTPTimeout, err)
		}
	}
	return nil
}

// Timeout returns the parsed http_timeout, falling back to DefaultHTTPTimeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		return DefaultHTTPTimeout
	}
	return d
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/dealerdesk/dealerdesk.yml or $XDG_CONFIG_HOME/dealerdesk/dealerdesk.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dealerdesk", "dealerdesk.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dealerdesk", "dealerdesk.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "dealerdesk.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

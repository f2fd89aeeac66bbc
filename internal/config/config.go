// Package config builds the immutable runtime configuration from the
// process environment.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultOwner       = "idriskr"
	DefaultRepo        = "portfolio"
	DefaultBranch      = "main"
	DefaultAPIURL      = "https://api.github.com/"
	DefaultAllowOrigin = "*"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultPort        = "8080"
)

// Config is read once at startup and passed explicitly to the handlers.
// Env var names are lowercased to form the koanf keys, e.g. GITHUB_OWNER -> github_owner.
type Config struct {
	// AdminSecret guards inbound writes. Empty means every request is rejected.
	AdminSecret string `koanf:"admin_secret"`
	// GitHubToken authenticates outbound calls. Empty means calls go out
	// unauthenticated and GitHub rejects the write.
	GitHubToken string `koanf:"github_token"`

	Owner  string `koanf:"github_owner" validate:"required"`
	Repo   string `koanf:"github_repo" validate:"required"`
	Branch string `koanf:"github_branch" validate:"required"`
	APIURL string `koanf:"github_api_url" validate:"required,url"`

	AllowOrigin string `koanf:"cors_allow_origin" validate:"required"`
	LogLevel    string `koanf:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat   string `koanf:"log_format" validate:"oneof=json console"`
	Port        string `koanf:"port" validate:"numeric"`
}

// Load reads the environment, applies defaults for empty values and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags. Secrets are not validated here: a missing
// admin secret is reported per request as 401.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Owner = orDefault(c.Owner, DefaultOwner)
	c.Repo = orDefault(c.Repo, DefaultRepo)
	c.Branch = orDefault(c.Branch, DefaultBranch)
	c.APIURL = orDefault(c.APIURL, DefaultAPIURL)
	c.AllowOrigin = orDefault(c.AllowOrigin, DefaultAllowOrigin)
	c.LogLevel = strings.ToLower(orDefault(c.LogLevel, DefaultLogLevel))
	c.LogFormat = strings.ToLower(orDefault(c.LogFormat, DefaultLogFormat))
	c.Port = orDefault(c.Port, DefaultPort)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

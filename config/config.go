package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fieldserve/dispatch/auth"
	"github.com/fieldserve/dispatch/infra/api"
	"github.com/fieldserve/dispatch/infra/stream"
)

// Config is the full configuration of the dispatch-board client.
type Config struct {
	BusinessID string        `json:"business_id"`
	API        api.Config    `json:"api"`
	Stream     stream.Config `json:"stream"`
	Auth       AuthConfig    `json:"auth"`
	Refresh    RefreshConfig `json:"refresh"`
	Metrics    MetricsConfig `json:"metrics"`
}

// Load reads the configuration file (yaml or json) and applies optional
// environment overrides with the FS_ prefix.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides. The callback maps FS_API__TIMEOUT_SECONDS
	// to api.timeout_seconds; the provider splits the result on ".".
	if err := k.Load(env.Provider("FS_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "fs_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.API.SetDefaults()
	cfg.Stream.SetDefaults()
	cfg.Refresh.SetDefaults()
	cfg.Metrics.SetDefaults()
	if cfg.BusinessID == "" {
		return nil, fmt.Errorf("business_id is required")
	}
	if err := cfg.API.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Stream.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Refresh.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AuthConfig selects how the watcher obtains its bearer token.
type AuthConfig struct {
	// Token is a pre-issued bearer token. Takes precedence when set.
	Token string `json:"token"`
	// ClientCred configures the OAuth2 client-credentials flow.
	ClientCred auth.Conf `json:"client_cred"`
}

// Validate checks that one auth method is configured.
func (c AuthConfig) Validate() error {
	if c.Token == "" && (c.ClientCred.ClientID == "" || c.ClientCred.TokenURL == "") {
		return fmt.Errorf("auth requires either token or client_cred")
	}
	return nil
}

// Provider returns the configured token provider.
func (c AuthConfig) Provider() auth.TokenProvider {
	if c.Token != "" {
		return auth.StaticToken(c.Token)
	}
	return auth.NewClientCred(c.ClientCred)
}

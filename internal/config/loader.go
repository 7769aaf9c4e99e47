package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix          = "APP_"
	configFileEnvVar   = "CONFIG_FILE"
	defaultConfigFile  = "config.yaml"
	minSigningSecret   = 32
	secretIDEnvVar     = "AWS_SECRETS_MANAGER_SECRET_ID"
	secretRegionEnvVar = "AWS_SECRETS_MANAGER_REGION"
)

// legacyKeys maps the variable names used by earlier deployments onto config keys.
var legacyKeys = map[string]string{
	"PORT":         "port",
	"SUPABASE_URL": "oauth.backend_url",
	"SUPABASE_KEY": "oauth.backend_key",
	"JWT_SECRET":   "security.signing_secret",
	"FRONTEND_URL": "frontend_url",
}

type loadOptions struct {
	configFile    string
	dotEnvFiles   []string
	skipDotEnv    bool
	secrets       SecretsClient
	secretID      string
	secretsRegion string
}

type LoadOption func(*loadOptions)

// WithConfigFile loads the given YAML file instead of CONFIG_FILE / config.yaml.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// WithDotEnv loads the given .env files before reading the environment.
func WithDotEnv(files ...string) LoadOption {
	return func(o *loadOptions) {
		o.dotEnvFiles = files
	}
}

// WithoutDotEnv skips .env loading.
func WithoutDotEnv() LoadOption {
	return func(o *loadOptions) {
		o.skipDotEnv = true
	}
}

// WithSecretsClient reads secretID from the given Secrets Manager client.
func WithSecretsClient(client SecretsClient, secretID string) LoadOption {
	return func(o *loadOptions) {
		o.secrets = client
		o.secretID = secretID
	}
}

// Load builds the immutable process configuration. Sources are applied in order,
// later ones overriding earlier ones: defaults and legacy variables, the YAML
// file, APP_* environment variables, then the Secrets Manager secret.
func Load(ctx context.Context, opts ...LoadOption) (Config, error) {
	o := loadOptions{
		secretID:      os.Getenv(secretIDEnvVar),
		secretsRegion: os.Getenv(secretRegionEnvVar),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !o.skipDotEnv {
		// A missing .env is normal outside local development.
		_ = godotenv.Load(o.dotEnvFiles...)
	}

	k := koanf.New(".")
	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("[config Load] defaults: %w", err)
	}

	if path := configFilePath(o.configFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("[config Load] file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("[config Load] environment: %w", err)
	}

	if o.secretID != "" {
		client := o.secrets
		if client == nil {
			var err error
			client, err = NewSecretsClient(ctx, o.secretsRegion)
			if err != nil {
				return nil, fmt.Errorf("[config Load] secrets client: %w", err)
			}
		}
		values, err := FetchSecret(ctx, client, o.secretID)
		if err != nil {
			return nil, fmt.Errorf("[config Load] %w", err)
		}
		if err := k.Load(mapProvider(values), nil); err != nil {
			return nil, fmt.Errorf("[config Load] secret %s: %w", o.secretID, err)
		}
	}

	c := &mainConfig{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("[config Load] unmarshal: %w", err)
	}
	if c.OAuth.Providers == nil {
		c.OAuth.Providers = map[string]Provider{}
	}
	c.OAuth.resolveProviders(c.EnvVars.GetBaseURL())

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("[config Load] %w", err)
	}
	return c, nil
}

func defaults() map[string]interface{} {
	d := map[string]interface{}{
		"env":                         "DEV",
		"app_name":                    "SmartGreen",
		"port":                        "8080",
		"base_url":                    "http://localhost:8080",
		"log_level":                   "info",
		"oauth.session_token_ttl":     "60m",
		"oauth.state_ttl":             "10m",
		"oauth.exchange_timeout":      "10s",
		"security.token_issuer":       "smartgreen",
		"security.require_state":      true,
		"security.revoke_on_logout":   true,
		"security.rate_limit.enabled": false,
		"store.driver":                StoreDriverMemory,
		"store.key_prefix":            "smartgreen:",
	}
	for envVar, key := range legacyKeys {
		if v := os.Getenv(envVar); v != "" {
			d[key] = v
		}
	}
	return d
}

func configFilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := os.Getenv(configFileEnvVar); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// envKey turns APP_OAUTH__BACKEND_URL into oauth.backend_url.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// secretKey accepts APP_* names, legacy names and dotted config keys.
func secretKey(s string) string {
	if strings.HasPrefix(s, envPrefix) {
		return envKey(s)
	}
	if key, ok := legacyKeys[s]; ok {
		return key
	}
	return strings.ToLower(s)
}

func (c *mainConfig) validate() error {
	var errs []error
	if len(c.Security.SigningSecret) < minSigningSecret {
		errs = append(errs, fmt.Errorf("security.signing_secret must be at least %d bytes", minSigningSecret))
	}
	if c.OAuth.BackendURL == "" {
		errs = append(errs, errors.New("oauth.backend_url is required"))
	}
	if c.EnvVars.FrontendURL == "" {
		errs = append(errs, errors.New("frontend_url is required"))
	}
	if len(c.OAuth.Providers) == 0 {
		errs = append(errs, errors.New("at least one oauth provider is required"))
	}
	if dp := c.OAuth.DefaultProvider; dp != "" {
		if _, ok := c.OAuth.Providers[dp]; !ok {
			errs = append(errs, fmt.Errorf("oauth.default_provider %q is not configured", dp))
		}
	}
	for name, p := range c.OAuth.Providers {
		if p.ClientID == "" {
			errs = append(errs, fmt.Errorf("oauth.providers.%s.client_id is required", name))
		}
	}
	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}

// mapProvider is a koanf.Provider over flat, dotted keys.
type mapProvider map[string]interface{}

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]interface{}, error) {
	return maps.Unflatten(m, "."), nil
}

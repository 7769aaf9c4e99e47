package config

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetFrontendURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type StoreConfig interface {
	GetStoreDriver() string
	GetRedisURL() string
	GetStoreKeyPrefix() string
}

type mainConfig struct {
	EnvVars  `koanf:",squash"`
	Cors     `koanf:"cors"`
	OAuth    `koanf:"oauth"`
	Security `koanf:"security"`
	Store    `koanf:"store"`
}

var _ Config = (*mainConfig)(nil)

func (c *mainConfig) GetAllowedOrigins() AllowedOrigins {
	return c.Cors.allowedOrigins(c.EnvVars.GetFrontendURL())
}

type Store struct {
	Driver    string `koanf:"driver"`
	RedisURL  string `koanf:"redis_url"`
	KeyPrefix string `koanf:"key_prefix"`
}

const (
	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

func (s Store) GetStoreDriver() string {
	return s.Driver
}

func (s Store) GetRedisURL() string {
	return s.RedisURL
}

func (s Store) GetStoreKeyPrefix() string {
	return s.KeyPrefix
}

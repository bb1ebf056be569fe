package config

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	StorageConfig
	DevAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetAuthBaseURL() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Storage
	DevAuth
}

func New() Config {
	return mainConfig{}
}

package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	TokenConfig
	CacheConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// APIConfig describes the backends the client talks to and how it identifies itself.
type APIConfig interface {
	GetBaseURL() string
	GetAIBaseURL() string
	GetServiceToken() string
	GetServiceName() string
	GetAppOrigin() string
	GetRequestTimeout() time.Duration
	GetRateLimitBackoff() time.Duration
	GetRequestsPerSecond() float64
	GetRequestBurst() int
}

type mainConfig struct {
	EnvVars
	API
	Tokens
	Cache
	Server
}

// New reads configuration from the environment, layered over the YAML file named by
// CONFIG_FILE when one is set. A file that cannot be read is ignored.
func New() Config {
	values, _ := loadFile(GetEnv(configFileVar, ""))
	return newConfig(values)
}

// Load is New with the YAML file given explicitly; a read or parse failure is returned.
func Load(path string) (Config, error) {
	values, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	return newConfig(values), nil
}

func newConfig(values fileValues) Config {
	return mainConfig{
		EnvVars: EnvVars{file: values},
		API:     API{file: values},
		Tokens:  Tokens{file: values},
		Cache:   Cache{file: values},
		Server:  Server{file: values},
	}
}

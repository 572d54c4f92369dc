package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the read-only view of the process configuration handed to every
// component at start up.
type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	StoreConfig
	OIDCConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsProduction() bool
	GetBaseURL() string
	GetLogLevel() string
	GetLogFile() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// Settings holds every configuration value. It is built once by Load and
// never mutated afterwards.
type Settings struct {
	EnvVars  `yaml:"env"`
	Cors     `yaml:"cors"`
	Security `yaml:"security"`
	Store    `yaml:"store"`
	OIDC     `yaml:"oidc"`
}

var _ Config = Settings{}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Settings {
	return Settings{
		EnvVars:  defaultEnvVars(),
		Cors:     defaultCors(),
		Security: defaultSecurity(),
		Store:    defaultStore(),
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE and finally the environment.
func Load() (Settings, error) {
	s := Defaults()

	if path := os.Getenv(configFileVar); path != "" {
		if err := s.loadFile(path); err != nil {
			return Settings{}, err
		}
	}

	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("[config Load] read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("[config Load] parse %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	s.EnvVars.applyEnv(lookup)
	s.Cors.applyEnv(lookup)
	if err := s.Security.applyEnv(lookup); err != nil {
		return err
	}
	if err := s.Store.applyEnv(lookup); err != nil {
		return err
	}
	s.OIDC.applyEnv(lookup)
	return nil
}

// GetSecureCookies sets the Secure attribute on every cookie in production.
func (s Settings) GetSecureCookies() bool {
	return s.IsProduction()
}

package config

import (
	"fmt"
	"strings"
)

const (
	configFileVar = "CONFIG_FILE"
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	envVar        = "ENV"
	baseURLVar    = "BASE_URL"
	logLevelVar   = "LOG_LEVEL"
	logFileVar    = "LOG_FILE"
)

type EnvVars struct {
	Port     string `yaml:"port"`
	AppName  string `yaml:"app_name"`
	Env      string `yaml:"env"`
	BaseURL  string `yaml:"base_url"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

var _ EnvConfig = EnvVars{}

func defaultEnvVars() EnvVars {
	return EnvVars{
		Port:     "8080",
		AppName:  "Findaly",
		Env:      "DEV",
		BaseURL:  "http://localhost:8080",
		LogLevel: "info",
	}
}

func (e *EnvVars) applyEnv(lookup func(string) (string, bool)) {
	setString(lookup, portEnvVar, &e.Port)
	setString(lookup, appNameVar, &e.AppName)
	setString(lookup, envVar, &e.Env)
	setString(lookup, baseURLVar, &e.BaseURL)
	setString(lookup, logLevelVar, &e.LogLevel)
	setString(lookup, logFileVar, &e.LogFile)
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

// IsProduction gates host canonicalization and the Secure cookie attribute.
func (e EnvVars) IsProduction() bool {
	switch e.GetEnv() {
	case "PROD", "PRODUCTION":
		return true
	}
	return false
}

// GetBaseURL returns the public base URL (e.g., "https://findaly.co")
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetLogFile returns the rotating log file path, empty for stdout only.
func (e EnvVars) GetLogFile() string {
	return e.LogFile
}

func setString(lookup func(string) (string, bool), name string, dst *string) {
	if v, ok := lookup(name); ok && v != "" {
		*dst = v
	}
}

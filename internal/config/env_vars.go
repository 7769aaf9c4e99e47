package config

import (
	"strings"
)

type EnvVars struct {
	Environment string `koanf:"env"`
	AppName     string `koanf:"app_name"`
	Port        string `koanf:"port"`
	BaseURL     string `koanf:"base_url"`
	FrontendURL string `koanf:"frontend_url"`
	LogLevel    string `koanf:"log_level"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	if e.AppName == "" {
		return "SmartGreen"
	}
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Environment == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Environment)
}

// GetBaseURL returns the public URL of this service (e.g., "https://api.smartgreen.id").
// Used to build the default OAuth redirect URI.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

// GetFrontendURL returns the URL the browser is sent back to once a session token is issued.
func (e EnvVars) GetFrontendURL() string {
	return strings.TrimRight(e.FrontendURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	if e.LogLevel == "" {
		return "info"
	}
	return e.LogLevel
}

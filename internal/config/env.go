package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by Load. Values here win over the YAML file.
const (
	EnvBackendURL    = "LLAMADOC_URL"
	EnvSettingsStore = "LLAMADOC_SETTINGS_STORE"
	EnvSettingsPath  = "LLAMADOC_SETTINGS_PATH"
	EnvCaptureMode   = "LLAMADOC_CAPTURE_MODE"
	EnvDashboardPort = "DASHBOARD_PORT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvGoogleCreds   = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvGoogleToken   = "GOOGLE_ACCESS_TOKEN"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// envString returns the trimmed value of key, or def if unset or blank.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns the integer value of key, or def if unset or malformed.
func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// applyEnv overlays environment variables onto c.
func (c *Config) applyEnv() {
	c.Backend.URL = envString(EnvBackendURL, c.Backend.URL)
	c.Settings.Store = envString(EnvSettingsStore, c.Settings.Store)
	c.Settings.Path = envString(EnvSettingsPath, c.Settings.Path)
	c.Capture.Mode = envString(EnvCaptureMode, c.Capture.Mode)
	c.Dashboard.Port = envInt(EnvDashboardPort, c.Dashboard.Port)
	c.LogLevel = envString(EnvLogLevel, c.LogLevel)
	c.OpenAI.APIKey = envString(EnvOpenAIKey, c.OpenAI.APIKey)
	c.Google.CredentialsFile = envString(EnvGoogleCreds, c.Google.CredentialsFile)
	c.Google.AccessToken = envString(EnvGoogleToken, c.Google.AccessToken)
	c.Settings.Redis.Addr = envString(EnvRedisAddr, c.Settings.Redis.Addr)
	c.Settings.Redis.Password = envString(EnvRedisPassword, c.Settings.Redis.Password)
}

package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvConfig holds configuration read from environment variables
type EnvConfig struct {
	Port           int
	Env            string
	AccessKey      string
	GeminiAPIKey   string
	UpstreamURL    string
	RequestTimeout int // upstream call timeout in milliseconds
	EnableCORS     bool
	CORSOrigin     string
	TrustedProxies []string
	ConfigFile     string // runtime JSON config path
	// Log file settings
	LogDir        string
	LogFile       string
	LogRotation   string // daily or size
	LogMaxSize    int    // max size of a single log file (MB)
	LogMaxBackups int    // max number of rotated files to keep
	LogMaxAge     int    // max age of rotated files in days
	LogCompress   bool
	LogToConsole  bool
}

// NewEnvConfig creates the environment configuration
func NewEnvConfig() *EnvConfig {
	env := getEnv("ENV", "")
	if env == "" {
		env = getEnv("NODE_ENV", "development")
	}

	return &EnvConfig{
		Port:           getEnvAsInt("PORT", 3000),
		Env:            env,
		AccessKey:      getEnv("ACCESS_KEY", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		UpstreamURL:    getEnv("UPSTREAM_URL", "https://generativelanguage.googleapis.com"),
		RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT", 120000),
		EnableCORS:     getEnv("ENABLE_CORS", "true") != "false",
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		ConfigFile:     getEnv("CONFIG_FILE", ".config/conductor.json"),
		LogDir:         getEnv("LOG_DIR", "logs"),
		LogFile:        getEnv("LOG_FILE", "app.log"),
		LogRotation:    getEnv("LOG_ROTATION", "daily"),
		LogMaxSize:     getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups:  getEnvAsInt("LOG_MAX_BACKUPS", 10),
		LogMaxAge:      getEnvAsInt("LOG_MAX_AGE", 30),
		LogCompress:    getEnv("LOG_COMPRESS", "true") != "false",
		LogToConsole:   getEnv("LOG_TO_CONSOLE", "true") != "false",
	}
}

// IsDevelopment reports whether this is a development environment
func (c *EnvConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction reports whether this is a production environment
func (c *EnvConfig) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an integer or a default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

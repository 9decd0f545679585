package logger

import (
	"io"
	"os"
	"strconv"
)

// EnvConfig is the full logger setup. Output, when set, replaces both stdout
// and the rotating file.
type EnvConfig struct {
	Level       string
	Format      string
	Output      io.Writer
	ServiceName string

	// Environment "local" (or empty) disables the rotating file.
	Environment string

	LogFile     string
	LogFileOnly bool

	// lumberjack rotation: MB per file, files kept, days kept.
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// LoadFromEnv reads LOG_*, SERVICE_NAME and APP_ENV.
func LoadFromEnv() *EnvConfig {
	return &EnvConfig{
		Level:       envString("LOG_LEVEL", "info"),
		Format:      envString("LOG_FORMAT", "json"),
		ServiceName: envString("SERVICE_NAME", "knowledge-app"),
		Environment: envString("APP_ENV", "local"),
		LogFile:     envString("LOG_FILE", "./logs/app.log"),
		LogFileOnly: envParse("LOG_FILE_ONLY", false, strconv.ParseBool),
		MaxSize:     envParse("LOG_MAX_SIZE", 100, strconv.Atoi),
		MaxBackups:  envParse("LOG_MAX_BACKUPS", 7, strconv.Atoi),
		MaxAge:      envParse("LOG_MAX_AGE", 30, strconv.Atoi),
		Compress:    envParse("LOG_COMPRESS", true, strconv.ParseBool),
	}
}

// Override applies the non-empty values of the config file's log section.
func (e *EnvConfig) Override(level, format, file, environment string) *EnvConfig {
	for dst, val := range map[*string]string{
		&e.Level:       level,
		&e.Format:      format,
		&e.LogFile:     file,
		&e.Environment: environment,
	} {
		if val != "" {
			*dst = val
		}
	}
	return e
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envParse returns fallback when key is unset or does not parse.
func envParse[T any](key string, fallback T, parse func(string) (T, error)) T {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := parse(val)
	if err != nil {
		return fallback
	}
	return parsed
}

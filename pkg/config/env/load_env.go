package env

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. ENV_PATH takes precedence over
// defaultPath. A missing file is an error only when running locally.
func LoadDotEnv(env string, defaultPath string) error {
	path := os.Getenv("ENV_PATH")
	if path == "" {
		slog.Debug("ENV_PATH is not set, using default path", "defaultPath", defaultPath)
		path = defaultPath
	}

	if err := godotenv.Load(path); err != nil {
		if isLocal(env) {
			return fmt.Errorf("load %s: %w", path, err)
		}
		slog.Debug("Skipping .env", "env", env, "path", path)
	}
	return nil
}

func isLocal(env string) bool {
	return env == "" || strings.EqualFold(env, "local")
}

// Bool reads key as a boolean, falling back to def when unset or malformed.
func Bool(key string, def bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Ignoring malformed boolean", "key", key, "value", raw)
		return def
	}
	return v
}

// Int reads key as an integer. Unset returns def; malformed is an error.
func Int(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

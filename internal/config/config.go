package config

import (
	"os"
	"path/filepath"
	"sync"
	_ "time/tzdata" // schedule.timezone on hosts without a zoneinfo database

	"fjacquet/budget-sync/internal/logging"

	"github.com/joho/godotenv"
)

var envOnce sync.Once

// LoadEnv loads a .env file from the working directory or its parent, once per
// process. Variables already set in the environment win. It returns the file
// that was loaded, or "" when there was none.
func LoadEnv() string {
	var loaded string
	envOnce.Do(func() {
		for _, candidate := range []string{".env", filepath.Join("..", ".env")} {
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if err := godotenv.Load(candidate); err != nil {
				return
			}
			loaded = candidate
			return
		}
	})
	return loaded
}

// ConfigureLogging builds the application logger from the log section.
func ConfigureLogging(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(config.Log.Level, config.Log.Format)
}

// GetEnv retrieves an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
)

// ClientConfig configures the desktop UI and the detectctl CLI.
type ClientConfig struct {
	APIURL         string
	OutputDir      string
	TimeoutSeconds int
}

// LoadClient reads client settings from .env and the environment.
func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	return &ClientConfig{
		APIURL:         getEnv("API_URL", "http://localhost:8000"),
		OutputDir:      getEnv("OUTPUT_DIR", filepath.Join(".", "ui_outputs")),
		TimeoutSeconds: getEnvAsInt("API_TIMEOUT", 120),
	}
}

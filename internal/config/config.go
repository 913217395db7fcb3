package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendGoCV        = "gocv"
	BackendONNXRuntime = "onnxruntime"
)

// DefaultMaxImagePixels bounds decoded image size when no limit is configured.
const DefaultMaxImagePixels = 50_000_000

type Config struct {
	Host              string
	Port              int
	ModelPath         string
	LabelsPath        string
	InferenceBackend  string
	ONNXRuntimeLib    string
	Device            string  // cpu or cuda
	ConfThreshold     float64 // minimum class score kept by post-processing
	IoUThreshold      float64
	InputSize         int
	MaxDetections     int
	InferenceWorkers  int // model instances shared by all requests
	MaxUploadMB       int
	MaxImagePixels    int // width*height accepted before decoding
	CORSOrigins       []string
	LogDirectory      string
	ArchiveDirectory  string
	ArchiveBufferSize int
	ArchiveFlushEvery int // seconds
	HistoryDSN        string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	return &Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnvAsInt("PORT", 8000),
		ModelPath:         getEnv("MODEL_PATH", filepath.Join(".", "models", "yolov8n.onnx")),
		LabelsPath:        getEnv("MODEL_LABELS", ""),
		InferenceBackend:  strings.ToLower(getEnv("INFERENCE_BACKEND", BackendGoCV)),
		ONNXRuntimeLib:    getEnv("ONNXRUNTIME_LIB", ""),
		Device:            strings.ToLower(getEnv("DEVICE", "cpu")),
		ConfThreshold:     getEnvAsFloat("CONF_THRESHOLD", 0.25),
		IoUThreshold:      getEnvAsFloat("IOU_THRESHOLD", 0.7),
		InputSize:         getEnvAsInt("INPUT_SIZE", 640),
		MaxDetections:     getEnvAsInt("MAX_DETECTIONS", 300),
		InferenceWorkers:  getEnvAsInt("INFERENCE_WORKERS", 1),
		MaxUploadMB:       getEnvAsInt("MAX_UPLOAD_MB", 32),
		MaxImagePixels:    getEnvAsInt("MAX_IMAGE_PIXELS", DefaultMaxImagePixels),
		CORSOrigins:       getEnvAsList("CORS_ORIGINS", []string{"*"}),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		ArchiveDirectory:  getEnv("ARCHIVE_DIR", ""),
		ArchiveBufferSize: getEnvAsInt("ARCHIVE_BUFFER_LIMIT", 10),
		ArchiveFlushEvery: getEnvAsInt("ARCHIVE_FLUSH_INTERVAL", 30),
		HistoryDSN:        getEnv("HISTORY_DSN", ""),
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be in 1..65535, got %d", c.Port))
	}
	if c.ModelPath == "" {
		errs = append(errs, errors.New("MODEL_PATH is required"))
	}
	switch c.InferenceBackend {
	case BackendGoCV, BackendONNXRuntime:
	default:
		errs = append(errs, fmt.Errorf("unknown INFERENCE_BACKEND %q", c.InferenceBackend))
	}
	switch c.Device {
	case "cpu", "cuda":
	default:
		errs = append(errs, fmt.Errorf("unknown DEVICE %q", c.Device))
	}
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		errs = append(errs, fmt.Errorf("CONF_THRESHOLD must be in [0,1], got %v", c.ConfThreshold))
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		errs = append(errs, fmt.Errorf("IOU_THRESHOLD must be in (0,1], got %v", c.IoUThreshold))
	}
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		errs = append(errs, fmt.Errorf("INPUT_SIZE must be a positive multiple of 32, got %d", c.InputSize))
	}
	if c.InferenceWorkers <= 0 {
		errs = append(errs, fmt.Errorf("INFERENCE_WORKERS must be positive, got %d", c.InferenceWorkers))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels))
	}
	if c.HistoryDSN != "" && c.ArchiveDirectory == "" {
		errs = append(errs, errors.New("HISTORY_DSN requires ARCHIVE_DIR"))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes is the request body limit for /predict.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ArchiveEnabled reports whether predictions are kept on disk.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveDirectory != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

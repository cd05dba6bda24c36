// Package config loads process configuration from the environment,
// following the teacher's configs.LoadConfig() idiom (godotenv + typed
// getEnv* helpers) generalized to the grounded-OCR pipeline's variables.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-configurable knob spec.md §6 names.
type Config struct {
	// Model runtime (Local inference backend)
	ModelPath             string
	TensorParallelSize    int
	GPUMemoryUtilization  float64
	MaxModelLen           int
	EnforceEager          bool

	// Storage & persistence
	DatabaseURL string // Mongo connection URI
	RedisURL    string // broker
	StorageDir  string
	UploadDir   string
	CeleryQueue string // broker queue/list name

	// Pipeline tuning
	PDFMaxConcurrency int
	BaseSize          int
	ImageSize         int
	CropMode          bool
	ImagePrompt       string
	PDFPrompt         string

	// Remote inference backend
	InternalAPIToken     string
	WorkerRemoteInferURL string

	// HTTP server
	Port           string
	AllowedOrigins string

	// Object storage mirror (supplemented feature)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load reads .env (if present) then the process environment, applying the
// same defaults as original_source/backend/app/config.py.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		ModelPath:            getEnv("MODEL_PATH", ""),
		TensorParallelSize:   getEnvInt("TENSOR_PARALLEL_SIZE", 1),
		GPUMemoryUtilization: getEnvFloat("GPU_MEMORY_UTILIZATION", 0.75),
		MaxModelLen:          getEnvInt("MAX_MODEL_LEN", 8192),
		EnforceEager:         getEnvBool("ENFORCE_EAGER", false),

		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StorageDir:  getEnv("STORAGE_DIR", "./data"),
		UploadDir:   getEnv("UPLOAD_DIR", "./data/uploads"),
		CeleryQueue: getEnv("CELERY_QUEUE", "ocr_tasks"),

		PDFMaxConcurrency: getEnvInt("PDF_MAX_CONCURRENCY", 20),
		BaseSize:          getEnvInt("BASE_SIZE", 1024),
		ImageSize:         getEnvInt("IMAGE_SIZE", 640),
		CropMode:          getEnvBool("CROP_MODE", true),
		ImagePrompt:       getEnv("IMAGE_PROMPT", "<image>\nFree OCR."),
		PDFPrompt:         getEnv("PDF_PROMPT", "<image>\n<|grounding|>\nConvert the document to markdown."),

		InternalAPIToken:     getEnv("INTERNAL_API_TOKEN", ""),
		WorkerRemoteInferURL: getEnv("WORKER_REMOTE_INFER_URL", ""),

		Port:           getEnv("PORT", "8000"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "ocr-results"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
	}

	log.Println("configuration loaded")
	return cfg
}

// UsesRemoteInference reports whether WORKER_REMOTE_INFER_URL selects the
// Remote Inference Client backend over the Local one.
func (c *Config) UsesRemoteInference() bool {
	return c.WorkerRemoteInferURL != ""
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

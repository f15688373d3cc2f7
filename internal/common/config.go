package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	OCR      OCRConfig      `yaml:"ocr"`
	Layout   LayoutConfig   `yaml:"layout"`
	Extract  ExtractConfig  `yaml:"extract"`
	Clean    CleanConfig    `yaml:"clean"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// CacheConfig selects and tunes the result cache backing store.
type CacheConfig struct {
	Driver          string        `yaml:"driver"` // "sqlite" | "postgres" | "memory"
	Path            string        `yaml:"path"`   // sqlite database file
	DSN             string        `yaml:"dsn"`    // postgres connection string
	MaxConns        int32         `yaml:"max_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// OCRConfig holds recognition engine configuration. Language, DPI, PSM and
// OEM all feed the fingerprint: changing any of them must miss the cache.
type OCRConfig struct {
	Engine    string        `yaml:"engine"`    // "tesseract" (subprocess) | "gosseract" (in-process, -tags gosseract)
	Tesseract string        `yaml:"tesseract"` // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string        `yaml:"pdftoppm"`  // binary name or absolute path; if empty -> "pdftoppm"
	Language  string        `yaml:"language"`  // default "eng"
	DPI       int           `yaml:"dpi"`       // rasterization DPI, default 300
	PSM       int           `yaml:"psm"`       // page segmentation mode; 6 suits uniform blocks
	OEM       int           `yaml:"oem"`       // 1 = LSTM; 0 = engine default
	MaxPages  int           `yaml:"max_pages"` // 0 = no limit
	Timeout   time.Duration `yaml:"timeout"`   // per recognize call
}

// LayoutConfig tunes the geometric classifier.
type LayoutConfig struct {
	MinTableConfidence float64 `yaml:"min_table_confidence"` // below this a grid is treated as prose
	MinGapPx           int     `yaml:"min_gap_px"`           // vertical whitespace that splits prose regions
	MarginPx           int     `yaml:"margin_px"`            // page margin excluded from regions
}

// ExtractConfig tunes stitching.
type ExtractConfig struct {
	LowConfidence float64       `yaml:"low_confidence"` // lines/cells below this are flagged
	RetryDelay    time.Duration `yaml:"retry_delay"`    // pause before the single OCR retry
}

// CleanConfig holds the Ollama cleaning adapter configuration.
type CleanConfig struct {
	URL           string        `yaml:"url"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxChunkChars int           `yaml:"max_chunk_chars"`
}

// PipelineConfig holds scheduling knobs. Workers bounds pages in flight
// within a document, DocumentWorkers bounds documents in flight per batch.
type PipelineConfig struct {
	Workers         int           `yaml:"workers"`
	PageTimeout     time.Duration `yaml:"page_timeout"`
	DocumentWorkers int           `yaml:"document_workers"`
	DocumentTimeout time.Duration `yaml:"document_timeout"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Driver:          getEnv("CACHE_DRIVER", "sqlite"),
			Path:            getEnv("CACHE_PATH", "cache/retypeset.db"),
			DSN:             getEnv("CACHE_DSN", ""),
			MaxConns:        getEnvAsInt32("CACHE_MAX_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("CACHE_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("CACHE_DIAL_TIMEOUT", 3*time.Second),
		},
		OCR: OCRConfig{
			Engine:    getEnv("OCR_ENGINE", "tesseract"),
			Tesseract: getEnv("OCR_TESSERACT", "tesseract"),
			Pdftoppm:  getEnv("OCR_PDFTOPPM", "pdftoppm"),
			Language:  getEnv("OCR_LANGUAGE", "eng"),
			DPI:       getEnvAsInt("OCR_DPI", 300),
			PSM:       getEnvAsInt("OCR_PSM", 6),
			OEM:       getEnvAsInt("OCR_OEM", 1),
			MaxPages:  getEnvAsInt("OCR_MAX_PAGES", 0),
			Timeout:   getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		Layout: LayoutConfig{
			MinTableConfidence: getEnvAsFloat64("LAYOUT_MIN_TABLE_CONFIDENCE", 0.5),
			MinGapPx:           getEnvAsInt("LAYOUT_MIN_GAP_PX", 18),
			MarginPx:           getEnvAsInt("LAYOUT_MARGIN_PX", 24),
		},
		Extract: ExtractConfig{
			LowConfidence: getEnvAsFloat64("EXTRACT_LOW_CONFIDENCE", 0.6),
			RetryDelay:    getEnvAsDuration("EXTRACT_RETRY_DELAY", 500*time.Millisecond),
		},
		Clean: CleanConfig{
			URL:           getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:         getEnv("OLLAMA_MODEL", "phi3:3.8b"),
			Timeout:       getEnvAsDuration("OLLAMA_TIMEOUT", 60*time.Second),
			MaxChunkChars: getEnvAsInt("OLLAMA_MAX_CHUNK_CHARS", 600),
		},
		Pipeline: PipelineConfig{
			Workers:         getEnvAsInt("PIPELINE_WORKERS", 4),
			PageTimeout:     getEnvAsDuration("PIPELINE_PAGE_TIMEOUT", 3*time.Minute),
			DocumentWorkers: getEnvAsInt("PIPELINE_DOCUMENT_WORKERS", 2),
			DocumentTimeout: getEnvAsDuration("PIPELINE_DOCUMENT_TIMEOUT", 15*time.Minute),
		},
	}
}

// MergeFile overlays values from a YAML config file onto c. Zero values in
// the file keep the env/default value already loaded.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration. Missing fingerprint inputs are
// rejected here, before any page is processed: a blank language or zero DPI
// would silently corrupt every cache key.
func (c *Config) Validate() error {
	switch c.OCR.Engine {
	case "tesseract", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR engine %q", c.OCR.Engine), ErrInvalidInput)
	}
	if c.OCR.Language == "" {
		return NewAppError("CONFIG_ERROR", "OCR_LANGUAGE is required", ErrFingerprintInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrFingerprintInput)
	}
	if c.Extract.LowConfidence <= 0 || c.Extract.LowConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_LOW_CONFIDENCE must be in (0,1]", ErrFingerprintInput)
	}
	if c.Layout.MinTableConfidence <= 0 || c.Layout.MinTableConfidence > 1 {
		return NewAppError("CONFIG_ERROR", "LAYOUT_MIN_TABLE_CONFIDENCE must be in (0,1]", ErrFingerprintInput)
	}
	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			return NewAppError("CONFIG_ERROR", "CACHE_PATH is required for the sqlite driver", ErrInvalidInput)
		}
	case "postgres":
		if c.Cache.DSN == "" {
			return NewAppError("CONFIG_ERROR", "CACHE_DSN is required for the postgres driver", ErrInvalidInput)
		}
	case "memory":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown cache driver %q", c.Cache.Driver), ErrInvalidInput)
	}
	if c.Pipeline.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_WORKERS must be positive", ErrInvalidInput)
	}
	if c.Pipeline.DocumentWorkers <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_DOCUMENT_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}

package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"photosweep/internal/catalog"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Library    LibraryConfig
	PhotoPrism PhotoPrismConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Embedding  EmbeddingConfig
	Database   DatabaseConfig
	Analysis   AnalysisConfig
}

type LibraryConfig struct {
	Path string // local photo directory, used when PhotoPrism is not configured
}

type PhotoPrismConfig struct {
	URL         string
	Username    string
	Password    string
	DatabaseURL string // MariaDB DSN for direct burst lookups (optional)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type EmbeddingConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // defaults to clip
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; SQLite fallback when empty
	SQLitePath   string // defaults to photosweep.db
	MaxOpenConns int    // default 25
	MaxIdleConns int    // default 5
}

// AnalysisConfig carries the scan tuning knobs. Defaults come from the
// embedded thresholds.yaml; env vars override per deployment.
type AnalysisConfig struct {
	DuplicateThreshold float64  `yaml:"duplicate_threshold"`
	SimilarThreshold   float64  `yaml:"similar_threshold"`
	BlurThreshold      float64  `yaml:"blur_threshold"`
	BatchLimit         int      `yaml:"batch_limit"`
	Workers            int      `yaml:"workers"`
	Modules            []string `yaml:"modules"`
}

type thresholdsFile struct {
	Analysis AnalysisConfig `yaml:"analysis"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var tf thresholdsFile
	if err := yaml.Unmarshal(thresholdsYAML, &tf); err != nil {
		// Embedded file, cannot fail in practice.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}
	analysis := tf.Analysis

	analysis.DuplicateThreshold = envFloat("ANALYSIS_DUPLICATE_THRESHOLD", analysis.DuplicateThreshold)
	analysis.SimilarThreshold = envFloat("ANALYSIS_SIMILAR_THRESHOLD", analysis.SimilarThreshold)
	analysis.BlurThreshold = envFloat("ANALYSIS_BLUR_THRESHOLD", analysis.BlurThreshold)
	analysis.BatchLimit = envInt("ANALYSIS_BATCH_LIMIT", analysis.BatchLimit)
	analysis.Workers = envInt("ANALYSIS_WORKERS", analysis.Workers)
	if env := os.Getenv("ANALYSIS_MODULES"); env != "" {
		analysis.Modules = splitModules(env)
	}

	embeddingModel := os.Getenv("EMBEDDING_MODEL")
	if embeddingModel == "" {
		embeddingModel = "clip"
	}
	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "photosweep.db"
	}

	return &Config{
		Library: LibraryConfig{
			Path: os.Getenv("LIBRARY_PATH"),
		},
		PhotoPrism: PhotoPrismConfig{
			URL:         os.Getenv("PHOTOPRISM_URL"),
			Username:    os.Getenv("PHOTOPRISM_USERNAME"),
			Password:    os.Getenv("PHOTOPRISM_PASSWORD"),
			DatabaseURL: os.Getenv("PHOTOPRISM_DATABASE_URL"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: embeddingModel,
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			SQLitePath:   sqlitePath,
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Analysis: analysis,
	}
}

// EnabledModules maps the configured module names onto known categories.
// Unknown names are ignored.
func (c *AnalysisConfig) EnabledModules() []catalog.Category {
	var out []catalog.Category
	for _, name := range c.Modules {
		cat := catalog.Category(strings.TrimSpace(name))
		if cat.Valid() {
			out = append(out, cat)
		}
	}
	return out
}

func splitModules(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

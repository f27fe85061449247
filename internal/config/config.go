package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the stampline configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	OCR        OCRConfig        `yaml:"ocr"`
	Detect     DetectConfig     `yaml:"detect"`
	Revision   RevisionConfig   `yaml:"revision"`
	Correction CorrectionConfig `yaml:"correction"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings for the query API.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings for the record store.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PipelineConfig holds batch pipeline settings.
type PipelineConfig struct {
	InputDir           string `yaml:"input_dir"`    // directory of stamp crops
	RevisionDir        string `yaml:"revision_dir"` // directory of revision-block crops
	WorkDir            string `yaml:"work_dir"`     // stage artifacts land here
	CatalogPath        string `yaml:"catalog_path"` // master rule workbook
	CheckpointInterval int    `yaml:"checkpoint_interval"`
}

// OCRConfig holds OCR engine settings.
type OCRConfig struct {
	Languages []string `yaml:"languages"`
}

// DetectConfig holds settings for the remote label detector.
type DetectConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// RegionConfig defines a proportional rectangle on a rasterized page.
type RegionConfig struct {
	Left   float64 `yaml:"left"`
	Top    float64 `yaml:"top"`
	Right  float64 `yaml:"right"`
	Bottom float64 `yaml:"bottom"`
}

// RevisionConfig holds revision-resolution settings.
type RevisionConfig struct {
	Primary         RegionConfig `yaml:"primary"`
	Fallback        RegionConfig `yaml:"fallback"`
	RowTolerancePx  float64      `yaml:"row_tolerance_px"`
	MaxTokenWidthPx float64      `yaml:"max_token_width_px"`
	MaxDimensionPx  int          `yaml:"max_dimension_px"`
	MinConfidence   float64      `yaml:"min_confidence"`
}

// CorrectionConfig holds filename-evidence correction settings.
type CorrectionConfig struct {
	// MaxEditDistance is the substitution-distance budget for accepting the
	// filename value over the OCR value. Strings must be equal length.
	MaxEditDistance int `yaml:"max_edit_distance"`
}

// ValidationConfig holds master-validation settings.
type ValidationConfig struct {
	// EmptyAllowed lists fields for which an empty value is not an error.
	EmptyAllowed []string `yaml:"empty_allowed"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// DefaultEmptyAllowed is the curated set of fields that may legitimately be
// blank on a drawing stamp.
var DefaultEmptyAllowed = []string{
	"BANDEL", "BLAD", "NASTA_BLAD", "KILOMETER_METER", "ANDR",
	"ANLAGGNINGSTYP", "GRANSKNINGSSTATUS_SYFTE", "HANDLINGSTYP",
	"SKALA", "FORMAT", "DATUM", "TEKNIKOMRADE",
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Pipeline.WorkDir == "" {
		c.Pipeline.WorkDir = "work"
	}
	if c.Pipeline.CheckpointInterval <= 0 {
		c.Pipeline.CheckpointInterval = 10
	}
	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = []string{"swe", "eng"}
	}
	if c.Detect.TimeoutSec <= 0 {
		c.Detect.TimeoutSec = 60
	}
	if c.Detect.MinConfidence <= 0 {
		c.Detect.MinConfidence = 0.07
	}
	if c.Revision.Primary == (RegionConfig{}) {
		c.Revision.Primary = RegionConfig{Left: 0.72, Top: 0.79, Right: 0.86, Bottom: 0.88}
	}
	if c.Revision.Fallback == (RegionConfig{}) {
		c.Revision.Fallback = RegionConfig{Left: 0.72, Top: 0.825, Right: 0.86, Bottom: 0.885}
	}
	if c.Revision.RowTolerancePx <= 0 {
		c.Revision.RowTolerancePx = 18
	}
	if c.Revision.MaxTokenWidthPx <= 0 {
		c.Revision.MaxTokenWidthPx = 120
	}
	if c.Revision.MaxDimensionPx <= 0 {
		c.Revision.MaxDimensionPx = 2200
	}
	if c.Revision.MinConfidence <= 0 {
		c.Revision.MinConfidence = 0.30
	}
	if c.Correction.MaxEditDistance <= 0 {
		c.Correction.MaxEditDistance = 1
	}
	if len(c.Validation.EmptyAllowed) == 0 {
		c.Validation.EmptyAllowed = append([]string(nil), DefaultEmptyAllowed...)
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for the redis driver")
		}
	case "memory":
		// ok
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	for _, r := range []struct {
		name   string
		region RegionConfig
	}{{"revision.primary", c.Revision.Primary}, {"revision.fallback", c.Revision.Fallback}} {
		if r.region.Left < 0 || r.region.Right > 1 || r.region.Left >= r.region.Right {
			return fmt.Errorf("%s: left/right must satisfy 0 <= left < right <= 1", r.name)
		}
		if r.region.Top < 0 || r.region.Bottom > 1 || r.region.Top >= r.region.Bottom {
			return fmt.Errorf("%s: top/bottom must satisfy 0 <= top < bottom <= 1", r.name)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

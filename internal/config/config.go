// Package config provides configuration management for the Scenedex Agent.
// Configuration is an explicit typed struct: defaults first, then .env and
// environment overrides, then an optional YAML file on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/scenedex/scenedex-agent/internal/clip"
)

const (
	// Default values
	DefaultBaseURL          = "https://api.scenedex.io/v1.3"
	DefaultAnalysisModel    = "pegasus1.2"
	DefaultEmbeddingModel   = "marengo-retrieval-2.7"
	DefaultTemperature      = 0.7
	DefaultClipLength       = 6.0
	DefaultTrailingPolicy   = "keep_short"
	DefaultIndexName        = "scenedex-agent"
	DefaultMinVideoDuration = 4.0
	DefaultMaxVideoDuration = 1200.0
	DefaultPollInterval     = 2 * time.Second
	DefaultPollTimeout      = 10 * time.Minute
	DefaultUploadWorkers    = 5
	DefaultReportBatch      = 10
	DefaultPort             = 18620
	DefaultLogLevel         = "info"
	DefaultDataDir          = ".scenedex"
	DefaultScanInterval     = 30 * time.Second

	// Environment variable names
	EnvAPIKey          = "SCENEDEX_API_KEY"
	EnvBaseURL         = "SCENEDEX_BASE_URL"
	EnvAnalysisModel   = "SCENEDEX_ANALYSIS_MODEL"
	EnvEmbeddingModel  = "SCENEDEX_EMBEDDING_MODEL"
	EnvModelOptions    = "SCENEDEX_MODEL_OPTIONS"
	EnvIndexName       = "SCENEDEX_INDEX_NAME"
	EnvIndexID         = "SCENEDEX_INDEX_ID"
	EnvTemperature     = "SCENEDEX_TEMPERATURE"
	EnvClipLength      = "SCENEDEX_CLIP_LENGTH"
	EnvTrailingPolicy  = "SCENEDEX_TRAILING_POLICY"
	EnvPollInterval    = "SCENEDEX_POLL_INTERVAL"
	EnvPollTimeout     = "SCENEDEX_POLL_TIMEOUT"
	EnvUploadWorkers   = "SCENEDEX_UPLOAD_WORKERS"
	EnvReportBatch     = "SCENEDEX_UPLOAD_REPORT_BATCH"
	EnvPort            = "SCENEDEX_PORT"
	EnvAPIToken        = "SCENEDEX_API_TOKEN"
	EnvLogLevel        = "SCENEDEX_LOG_LEVEL"
	EnvDataDir         = "SCENEDEX_DATA_DIR"
	EnvWatchDir        = "SCENEDEX_WATCH_DIR"
	EnvScanInterval    = "SCENEDEX_SCAN_INTERVAL"
	EnvHeadless        = "SCENEDEX_HEADLESS"
	EnvPostgresURL     = "SCENEDEX_POSTGRES_URL"
	EnvObjectEndpoint  = "SCENEDEX_OBJECT_STORE_ENDPOINT"
	EnvObjectAccessKey = "SCENEDEX_OBJECT_STORE_ACCESS_KEY"
	EnvObjectSecretKey = "SCENEDEX_OBJECT_STORE_SECRET_KEY"
	EnvObjectBucket    = "SCENEDEX_OBJECT_STORE_BUCKET"
	EnvObjectUseSSL    = "SCENEDEX_OBJECT_STORE_USE_SSL"

	// Database filename
	DBFilename = "scenedex.db"

	// ConfigFilename is the YAML file the setup wizard writes inside DataDir.
	ConfigFilename = "config.yaml"
)

// Config holds every tunable of the agent and CLI with named, typed fields.
// Zero values are replaced by documented defaults in New.
type Config struct {
	// Platform access.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// Model selection. AnalysisModel drives indexing/summaries/Q&A,
	// EmbeddingModel drives embedding tasks.
	AnalysisModel  string   `yaml:"analysis_model"`
	EmbeddingModel string   `yaml:"embedding_model"`
	ModelOptions   []string `yaml:"model_options"`

	// IndexName is used when the agent has to create its index; IndexID pins
	// an existing index and skips creation.
	IndexName string `yaml:"index_name"`
	IndexID   string `yaml:"index_id"`

	// Temperature for generation calls. Valid range [0.0, 1.0].
	Temperature float64 `yaml:"temperature"`

	// Clip planning defaults.
	ClipLength     float64 `yaml:"clip_length"`
	TrailingPolicy string  `yaml:"trailing_policy"`

	// Platform video duration bounds in seconds.
	MinVideoDuration float64 `yaml:"min_video_duration"`
	MaxVideoDuration float64 `yaml:"max_video_duration"`

	// Task polling.
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`

	// Multipart upload tuning.
	UploadWorkers int `yaml:"upload_workers"`
	ReportBatch   int `yaml:"upload_report_batch"`

	// Local agent.
	Port         int           `yaml:"port"`
	APIToken     string        `yaml:"api_token"`
	LogLevel     string        `yaml:"log_level"`
	DataDir      string        `yaml:"data_dir"`
	WatchDir     string        `yaml:"watch_dir"`
	ScanInterval time.Duration `yaml:"scan_interval"`
	Headless     bool          `yaml:"headless"`

	// Optional sinks.
	PostgresURL    string `yaml:"postgres_url"`
	ObjectEndpoint string `yaml:"object_store_endpoint"`
	ObjectAccess   string `yaml:"object_store_access_key"`
	ObjectSecret   string `yaml:"object_store_secret_key"`
	ObjectBucket   string `yaml:"object_store_bucket"`
	ObjectUseSSL   bool   `yaml:"object_store_use_ssl"`
}

func defaults() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		AnalysisModel:    DefaultAnalysisModel,
		EmbeddingModel:   DefaultEmbeddingModel,
		ModelOptions:     []string{"visual"},
		IndexName:        DefaultIndexName,
		Temperature:      DefaultTemperature,
		ClipLength:       DefaultClipLength,
		TrailingPolicy:   DefaultTrailingPolicy,
		MinVideoDuration: DefaultMinVideoDuration,
		MaxVideoDuration: DefaultMaxVideoDuration,
		PollInterval:     DefaultPollInterval,
		PollTimeout:      DefaultPollTimeout,
		UploadWorkers:    DefaultUploadWorkers,
		ReportBatch:      DefaultReportBatch,
		Port:             DefaultPort,
		LogLevel:         DefaultLogLevel,
		DataDir:          defaultDataDir(),
		ScanInterval:     DefaultScanInterval,
	}
}

// New builds a Config from defaults, a best-effort .env file, and
// environment overrides. The result is validated.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds a Config as New does, then overlays the YAML file at path.
// Fields absent from the file keep their environment or default values.
// An empty path falls back to DataDir/config.yaml when that file exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	explicit := path != ""
	if path == "" {
		path = cfg.ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			if verr := cfg.Validate(); verr != nil {
				return nil, verr
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML. The file carries the API key, so it is
// written 0600.
func (c *Config) Save(path string) error {
	if path == "" {
		path = c.ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate enforces the documented field ranges.
func (c *Config) Validate() error {
	if c.Temperature < 0.0 || c.Temperature > 1.0 {
		return fmt.Errorf("temperature %v out of range [0.0, 1.0]", c.Temperature)
	}
	if c.ClipLength <= 0 {
		return fmt.Errorf("clip_length must be positive, got %v", c.ClipLength)
	}
	if _, err := clip.ParsePolicy(c.TrailingPolicy); err != nil {
		return fmt.Errorf("trailing_policy: %w", err)
	}
	if c.MinVideoDuration <= 0 || c.MaxVideoDuration <= c.MinVideoDuration {
		return fmt.Errorf("video duration bounds invalid: min=%v max=%v", c.MinVideoDuration, c.MaxVideoDuration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive, got %v", c.PollTimeout)
	}
	if c.UploadWorkers < 1 {
		return fmt.Errorf("upload_workers must be at least 1, got %d", c.UploadWorkers)
	}
	if c.ReportBatch < 1 {
		return fmt.Errorf("upload_report_batch must be at least 1, got %d", c.ReportBatch)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive, got %v", c.ScanInterval)
	}
	return nil
}

// TrailingClipPolicy returns the configured policy as a clip.Policy.
// Validate has already vetted it.
func (c *Config) TrailingClipPolicy() clip.Policy {
	p, err := clip.ParsePolicy(c.TrailingPolicy)
	if err != nil {
		return clip.PolicyKeepShort
	}
	return p
}

// DBPath returns the full path to the SQLite database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFilename)
}

// ClipsDir returns the directory extracted clips are written to.
func (c *Config) ClipsDir() string {
	return filepath.Join(c.DataDir, "clips")
}

// ExportsDir returns the directory NDJSON and EDL exports default to.
func (c *Config) ExportsDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// ConfigPath returns the default YAML config location inside DataDir.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.DataDir, ConfigFilename)
}

func (c *Config) applyEnv() error {
	c.APIKey = envString(EnvAPIKey, c.APIKey)
	c.BaseURL = envString(EnvBaseURL, c.BaseURL)
	c.AnalysisModel = envString(EnvAnalysisModel, c.AnalysisModel)
	c.EmbeddingModel = envString(EnvEmbeddingModel, c.EmbeddingModel)
	c.IndexName = envString(EnvIndexName, c.IndexName)
	c.IndexID = envString(EnvIndexID, c.IndexID)
	c.APIToken = envString(EnvAPIToken, c.APIToken)
	c.LogLevel = envString(EnvLogLevel, c.LogLevel)
	c.DataDir = envString(EnvDataDir, c.DataDir)
	c.WatchDir = envString(EnvWatchDir, c.WatchDir)
	c.TrailingPolicy = envString(EnvTrailingPolicy, c.TrailingPolicy)
	c.PostgresURL = envString(EnvPostgresURL, c.PostgresURL)
	c.ObjectEndpoint = envString(EnvObjectEndpoint, c.ObjectEndpoint)
	c.ObjectAccess = envString(EnvObjectAccessKey, c.ObjectAccess)
	c.ObjectSecret = envString(EnvObjectSecretKey, c.ObjectSecret)
	c.ObjectBucket = envString(EnvObjectBucket, c.ObjectBucket)

	if opts := os.Getenv(EnvModelOptions); opts != "" {
		parts := strings.Split(opts, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			c.ModelOptions = cleaned
		}
	}

	var err error
	if c.Temperature, err = envFloat(EnvTemperature, c.Temperature); err != nil {
		return err
	}
	if c.ClipLength, err = envFloat(EnvClipLength, c.ClipLength); err != nil {
		return err
	}
	if c.PollInterval, err = envDuration(EnvPollInterval, c.PollInterval); err != nil {
		return err
	}
	if c.PollTimeout, err = envDuration(EnvPollTimeout, c.PollTimeout); err != nil {
		return err
	}
	if c.ScanInterval, err = envDuration(EnvScanInterval, c.ScanInterval); err != nil {
		return err
	}
	if c.UploadWorkers, err = envInt(EnvUploadWorkers, c.UploadWorkers); err != nil {
		return err
	}
	if c.ReportBatch, err = envInt(EnvReportBatch, c.ReportBatch); err != nil {
		return err
	}
	if c.Port, err = envInt(EnvPort, c.Port); err != nil {
		return err
	}
	if c.Headless, err = envBool(EnvHeadless, c.Headless); err != nil {
		return err
	}
	if c.ObjectUseSSL, err = envBool(EnvObjectUseSSL, c.ObjectUseSSL); err != nil {
		return err
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Package config loads and validates the service's YAML configuration:
// embedding, llm, retry, breaker, clustering, retrieval, and confidence
// sections, plus the ambient store/cache/notify/logging/server settings
// every pipeline component depends on. A fsnotify-backed Watch lets the
// rule engine and orchestrator pick up edits without a restart.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Duration unmarshals a YAML duration string ("2s", "120s") into a time.Duration.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the root of the service's configuration tree.
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Retry      RetryConfig      `yaml:"retry"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Notify     NotifyConfig     `yaml:"notify"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
}

// EmbeddingConfig configures the embedding client (C1).
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"`
	ModelID       string `yaml:"model_id"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	CacheTTLDays  int    `yaml:"cache_ttl_days"`
	TimeoutS      int    `yaml:"timeout_s"`
}

func (c EmbeddingConfig) Timeout() time.Duration  { return time.Duration(c.TimeoutS) * time.Second }
func (c EmbeddingConfig) CacheTTL() time.Duration { return time.Duration(c.CacheTTLDays) * 24 * time.Hour }

// LLMConfig configures the LLM classifier (C5).
type LLMConfig struct {
	Provider        string  `yaml:"provider"`
	ModelID         string  `yaml:"model_id"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	TimeoutS        int     `yaml:"timeout_s"`
}

func (c LLMConfig) Timeout() time.Duration { return time.Duration(c.TimeoutS) * time.Second }

// RetryConfig configures the shared retry policy.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Jitter      float64  `yaml:"jitter"`
}

// BreakerSettings is one circuit breaker's tuning.
type BreakerSettings struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	RecoveryTimeout  Duration `yaml:"recovery_timeout"`
	HalfOpenMaxCalls int      `yaml:"half_open_max_calls"`
}

// BreakerConfig holds one breaker per downstream service the pipeline guards.
type BreakerConfig struct {
	Embedding BreakerSettings `yaml:"embedding"`
	LLM       BreakerSettings `yaml:"llm"`
	Store     BreakerSettings `yaml:"store"`
}

// ClusteringConfig configures the bucket engine's k-means (C3).
type ClusteringConfig struct {
	MinK       int   `yaml:"min_k"`
	MaxK       int   `yaml:"max_k"`
	NInit      int   `yaml:"n_init"`
	MaxIter    int   `yaml:"max_iter"`
	RandomSeed int64 `yaml:"random_seed"`
}

// RetrievalConfig configures the context retriever (C4).
type RetrievalConfig struct {
	TopKBuckets         int     `yaml:"top_k_buckets"`
	MinBucketSimilarity float64 `yaml:"min_bucket_similarity"`
	MaxContextChunks    int     `yaml:"max_context_chunks"`
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
}

// ConfidenceConfig configures the confidence calculator (C7).
type ConfidenceConfig struct {
	Weights               map[string]float64 `yaml:"weights"`
	LowThreshold          float64             `yaml:"low_threshold"`
	MediumThreshold       float64             `yaml:"medium_threshold"`
	HighThreshold         float64             `yaml:"high_threshold"`
	CriticalThreshold     float64             `yaml:"critical_threshold"`
	CalibrationWindowDays int                 `yaml:"calibration_window_days"`
}

// StoreConfig configures the reference store's Postgres connection (C2).
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// CacheConfig configures the embedding cache's Redis connection.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
}

// NotifyConfig configures the (optional) Slack escalation webhook (C8).
type NotifyConfig struct {
	SlackWebhook string `yaml:"slack_webhook"`
}

// LoggingConfig configures the shared logrus output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the ambient Prometheus metrics endpoint.
type ServerConfig struct {
	MetricsPort string `yaml:"metrics_port"`
}

var validEmbeddingProviders = map[string]bool{"gemini": true, "bedrock": true}
var validLLMProviders = map[string]bool{"anthropic": true, "bedrock": true, "gemini": true}

// Load reads, parses, defaults, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Embedding.RatePerMinute == 0 {
		cfg.Embedding.RatePerMinute = 50
	}
	if cfg.Embedding.CacheTTLDays == 0 {
		cfg.Embedding.CacheTTLDays = 30
	}
	if cfg.Embedding.TimeoutS == 0 {
		cfg.Embedding.TimeoutS = 10
	}

	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.MaxOutputTokens == 0 {
		cfg.LLM.MaxOutputTokens = 1000
	}
	if cfg.LLM.TimeoutS == 0 {
		cfg.LLM.TimeoutS = 60
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = Duration(2 * time.Second)
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = Duration(120 * time.Second)
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = 0.1
	}

	if cfg.Clustering.MinK == 0 {
		cfg.Clustering.MinK = 2
	}
	if cfg.Clustering.MaxK == 0 {
		cfg.Clustering.MaxK = 20
	}
	if cfg.Clustering.NInit == 0 {
		cfg.Clustering.NInit = 10
	}
	if cfg.Clustering.MaxIter == 0 {
		cfg.Clustering.MaxIter = 300
	}

	if cfg.Retrieval.TopKBuckets == 0 {
		cfg.Retrieval.TopKBuckets = 3
	}
	if cfg.Retrieval.MinBucketSimilarity == 0 {
		cfg.Retrieval.MinBucketSimilarity = 0.7
	}
	if cfg.Retrieval.MaxContextChunks == 0 {
		cfg.Retrieval.MaxContextChunks = 10
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 500
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 50
	}

	if cfg.Confidence.LowThreshold == 0 {
		cfg.Confidence.LowThreshold = 0.4
	}
	if cfg.Confidence.MediumThreshold == 0 {
		cfg.Confidence.MediumThreshold = 0.6
	}
	if cfg.Confidence.HighThreshold == 0 {
		cfg.Confidence.HighThreshold = 0.8
	}
	if cfg.Confidence.CriticalThreshold == 0 {
		cfg.Confidence.CriticalThreshold = 0.95
	}
	if cfg.Confidence.CalibrationWindowDays == 0 {
		cfg.Confidence.CalibrationWindowDays = 30
	}
}

// validate checks required fields and cross-field invariants. It does not
// re-apply defaults: callers constructing a Config directly (tests, in
// particular) are expected to have already set every field they care about.
func validate(cfg *Config) error {
	if cfg.Embedding.Provider != "" && !validEmbeddingProviders[cfg.Embedding.Provider] {
		return fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	if !validLLMProviders[cfg.LLM.Provider] {
		return fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
	if cfg.LLM.ModelID == "" {
		return fmt.Errorf("LLM model_id is required")
	}
	if cfg.LLM.Temperature < 0.0 || cfg.LLM.Temperature > 1.0 {
		return fmt.Errorf("LLM temperature must be between 0.0 and 1.0, got %f", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxOutputTokens <= 0 {
		return fmt.Errorf("LLM max_output_tokens must be greater than 0")
	}

	if cfg.Clustering.MaxK < cfg.Clustering.MinK {
		return fmt.Errorf("clustering max_k must be >= min_k (min_k=%d, max_k=%d)", cfg.Clustering.MinK, cfg.Clustering.MaxK)
	}

	if cfg.Retrieval.TopKBuckets <= 0 {
		return fmt.Errorf("retrieval top_k_buckets must be greater than 0")
	}

	if cfg.Confidence.LowThreshold >= cfg.Confidence.MediumThreshold ||
		cfg.Confidence.MediumThreshold >= cfg.Confidence.HighThreshold ||
		cfg.Confidence.HighThreshold >= cfg.Confidence.CriticalThreshold {
		return fmt.Errorf("confidence thresholds must be strictly increasing: low < medium < high < critical")
	}

	return nil
}

// loadFromEnv overlays environment-variable overrides onto cfg, for the
// handful of settings operators commonly override per-deployment rather
// than per-environment config file.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("EMBEDDING_MODEL_ID"); v != "" {
		cfg.Embedding.ModelID = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL_ID"); v != "" {
		cfg.LLM.ModelID = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("CACHE_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("NOTIFY_SLACK_WEBHOOK"); v != "" {
		cfg.Notify.SlackWebhook = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	return nil
}

// LoadWithEnv loads path and then applies environment-variable overrides on top.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, validate(cfg)
}

// Watch invokes onChange every time the file at path is written, for the
// rule engine's hot-reload of rule bundles and general config edits
// without a process restart. The returned func stops the watch.
func Watch(path string, onChange func(*Config, error)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				onChange(cfg, err)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher.Close, nil
}

// Package config loads and validates studio configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Matcher, LLM, Renderer, Redis, Kafka, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	LLM       LLMConfig       `yaml:"llm"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Upload    UploadConfig    `yaml:"upload"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CORS      CORSConfig      `yaml:"cors"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// MatcherConfig controls keyword extraction.
type MatcherConfig struct {
	TopN int `yaml:"topN"`
}

// LLMConfig selects the completion provider and its resilience settings.
type LLMConfig struct {
	Provider       string               `yaml:"provider"`
	BaseURL        string               `yaml:"baseUrl"`
	APIKey         string               `yaml:"apiKey"`
	DefaultModel   string               `yaml:"defaultModel"`
	FallbackModels []string             `yaml:"fallbackModels"`
	RequestTimeout time.Duration        `yaml:"requestTimeout"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RetryConfig mirrors resilience.RetryConfig for YAML.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// CircuitBreakerConfig mirrors resilience.CircuitBreakerConfig for YAML.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// RendererConfig controls the external PDF engines.
type RendererConfig struct {
	HTMLEngine    string        `yaml:"htmlEngine"`
	TeXEngine     string        `yaml:"texEngine"`
	Timeout       time.Duration `yaml:"timeout"`
	Attempts      int           `yaml:"attempts"`
	PageCSS       string        `yaml:"pageCss"`
	MaxConcurrent int64         `yaml:"maxConcurrent"`
}

// UploadConfig bounds multipart request sizes.
type UploadConfig struct {
	MaxBytes               int64 `yaml:"maxBytes"`
	MaxJobDescriptionBytes int64 `yaml:"maxJobDescriptionBytes"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	StudioEvents string `yaml:"studioEvents"`
}

// RateLimitConfig controls the per-caller token bucket.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requestsPerWindow"`
	Window            time.Duration `yaml:"window"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// AnalyticsConfig controls the event collector and aggregation service.
type AnalyticsConfig struct {
	Port          int           `yaml:"port"`
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// SnapshotInterval is how often aggregated stats are saved to Redis.
	// Zero disables snapshots.
	SnapshotInterval  time.Duration `yaml:"snapshotInterval"`
	SnapshotRetention int           `yaml:"snapshotRetention"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a .env file and a YAML config file (both optional) and applies
// environment-variable overrides on top of the defaults. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if c.Matcher.TopN <= 0 {
		return fmt.Errorf("matcher.topN must be positive, got %d", c.Matcher.TopN)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be openai or gemini, got %q", c.LLM.Provider)
	}
	if c.LLM.DefaultModel == "" {
		return errors.New("llm.defaultModel is required")
	}
	if c.Renderer.HTMLEngine == "" || c.Renderer.TeXEngine == "" {
		return errors.New("renderer.htmlEngine and renderer.texEngine are required")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0) {
		return errors.New("rateLimit.requestsPerWindow and rateLimit.window must be positive")
	}
	return nil
}

// defaultConfig returns a Config suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    150 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  120 * time.Second,
		},
		Matcher: MatcherConfig{
			TopN: 20,
		},
		LLM: LLMConfig{
			Provider:     "openai",
			DefaultModel: "gpt-3.5-turbo-0125",
			FallbackModels: []string{
				"gpt-3.5-turbo-0125",
				"gpt-4o-mini",
				"gpt-4",
				"gpt-3.5-turbo",
			},
			RequestTimeout: 60 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:  2,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
			},
		},
		Renderer: RendererConfig{
			HTMLEngine:    "weasyprint",
			TeXEngine:     "tectonic",
			Timeout:       60 * time.Second,
			Attempts:      2,
			PageCSS:       "@page { size: letter; margin: 0; }",
			MaxConcurrent: 4,
		},
		Upload: UploadConfig{
			MaxBytes:               10 << 20,
			MaxJobDescriptionBytes: 1 << 20,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "resume-studio-analytics",
			Topics: KafkaTopics{
				StudioEvents: "studio-events",
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 30,
			Window:            time.Minute,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
		Analytics: AnalyticsConfig{
			Port:              8081,
			BufferSize:        10000,
			BatchSize:         100,
			FlushInterval:     5 * time.Second,
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads RS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RS_MATCHER_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Matcher.TopN = n
		}
	}
	if v := os.Getenv("RS_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("RS_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("RS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("RS_LLM_DEFAULT_MODEL"); v != "" {
		cfg.LLM.DefaultModel = v
	}
	if v := os.Getenv("RS_LLM_FALLBACK_MODELS"); v != "" {
		cfg.LLM.FallbackModels = splitList(v)
	}
	if v := os.Getenv("RS_RENDERER_HTML_ENGINE"); v != "" {
		cfg.Renderer.HTMLEngine = v
	}
	if v := os.Getenv("RS_RENDERER_TEX_ENGINE"); v != "" {
		cfg.Renderer.TeXEngine = v
	}
	if v := os.Getenv("RS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("RS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("RS_ANALYTICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Analytics.Port = port
		}
	}
	if v := os.Getenv("RS_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("RS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RS_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

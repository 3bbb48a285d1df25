package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. ORCH_CLOUD__API_KEY maps to cloud.api_key.
const EnvPrefix = "ORCH_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	Policy    PolicyConfig    `koanf:"policy"`
	Local     LocalConfig     `koanf:"local"`
	Cloud     CloudConfig     `koanf:"cloud"`
	Router    RouterConfig    `koanf:"router"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Events    EventsConfig    `koanf:"events"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	Type    string         `koanf:"type"` // apikey, jwt
	APIKeys []APIKeyConfig `koanf:"api_keys"`
	JWT     JWTConfig      `koanf:"jwt"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	UserID      string `koanf:"user_id"`
	Description string `koanf:"description"`
}

type JWTConfig struct {
	Secret   string `koanf:"secret"`
	Issuer   string `koanf:"issuer"`
	Audience string `koanf:"audience"`
}

type PolicyConfig struct {
	Type      string          `koanf:"type"` // basic, ratelimit
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Quota     QuotaConfig     `koanf:"quota"`
	Counter   CounterConfig   `koanf:"counter"`
}

type RateLimitConfig struct {
	MaxRequests    int           `koanf:"max_requests"`
	Window         time.Duration `koanf:"window"`
	EvictThreshold int           `koanf:"evict_threshold"`
}

type QuotaConfig struct {
	DailyLimit int `koanf:"daily_limit"`
}

type CounterConfig struct {
	Type      string          `koanf:"type"` // memory, firestore
	Firestore FirestoreConfig `koanf:"firestore"`
}

type FirestoreConfig struct {
	ProjectID       string        `koanf:"project_id"`
	Collection      string        `koanf:"collection"`
	CredentialsFile string        `koanf:"credentials_file"`
	CountTTL        time.Duration `koanf:"count_ttl"`
}

type LocalConfig struct {
	Enabled       bool               `koanf:"enabled"`
	BaseURL       string             `koanf:"base_url"`
	HealthTimeout time.Duration      `koanf:"health_timeout"`
	InvokeTimeout time.Duration      `koanf:"invoke_timeout"`
	Models        []LocalModelConfig `koanf:"models"`
}

type LocalModelConfig struct {
	Name          string   `koanf:"name"`
	Capabilities  []string `koanf:"capabilities"`
	LatencyMs     int      `koanf:"latency_ms"`
	ContextWindow int      `koanf:"context_window"`
}

type CloudConfig struct {
	APIKey            string     `koanf:"api_key"`
	BaseURL           string     `koanf:"base_url"`
	RestrictEgress    bool       `koanf:"restrict_egress"` // refuse private/loopback upstream addresses
	RequestsPerSecond float64    `koanf:"requests_per_second"`
	Burst             int        `koanf:"burst"`
	Fast              TierConfig `koanf:"fast"`
	Capable           TierConfig `koanf:"capable"`
	ImageModel        string     `koanf:"image_model"`
	ImageAspectRatio  string     `koanf:"image_aspect_ratio"`
}

type TierConfig struct {
	Model           string  `koanf:"model"`
	Temperature     float64 `koanf:"temperature"`
	MaxOutputTokens int     `koanf:"max_output_tokens"`
	LatencyMs       int     `koanf:"latency_ms"`
	CostPerCall     float64 `koanf:"cost_per_call"`
}

type RouterConfig struct {
	ProbeInterval time.Duration `koanf:"probe_interval"`
}

type PipelineConfig struct {
	MaxResearchQueries int    `koanf:"max_research_queries"`
	EnableVisual       bool   `koanf:"enable_visual"`
	BrandProfile       string `koanf:"brand_profile"` // optional TOML file, watched for changes
	UsageFunction      string `koanf:"usage_function"`
}

type EventsConfig struct {
	Type       string       `koanf:"type"` // direct, pubsub
	BufferSize int          `koanf:"buffer_size"`
	PubSub     PubSubConfig `koanf:"pubsub"`
}

type PubSubConfig struct {
	ProjectID       string `koanf:"project_id"`
	Topic           string `koanf:"topic"`
	CredentialsFile string `koanf:"credentials_file"`
}

type TelemetryConfig struct {
	ServiceName  string `koanf:"service_name"`
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml from the working directory.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile reads the given YAML file (if present), applies ORCH_ environment
// overrides, then fills defaults for anything left unset.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Cloud.APIKey = substituteEnvVars(cfg.Cloud.APIKey)
	cfg.Auth.JWT.Secret = substituteEnvVars(cfg.Auth.JWT.Secret)
	cfg.Policy.Counter.Firestore.ProjectID = substituteEnvVars(cfg.Policy.Counter.Firestore.ProjectID)
	cfg.Events.PubSub.ProjectID = substituteEnvVars(cfg.Events.PubSub.ProjectID)

	if len(cfg.Local.Models) == 0 {
		cfg.Local.Models = DefaultLocalModels()
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	setDefault(k, "server.port", 8080)
	setDefault(k, "server.request_timeout", 5*time.Minute)
	setDefault(k, "log.level", "info")
	setDefault(k, "storage.type", "sqlite")
	setDefault(k, "storage.sqlite.path", "./data/orchestrator.db")
	setDefault(k, "auth.type", "apikey")
	setDefault(k, "policy.type", "ratelimit")
	setDefault(k, "policy.rate_limit.max_requests", 5)
	setDefault(k, "policy.rate_limit.window", 5*time.Minute)
	setDefault(k, "policy.rate_limit.evict_threshold", 1000)
	setDefault(k, "policy.quota.daily_limit", 100)
	setDefault(k, "policy.counter.firestore.count_ttl", 30*time.Second)
	setDefault(k, "policy.counter.type", "memory")
	setDefault(k, "policy.counter.firestore.collection", "rate_limits")
	setDefault(k, "local.enabled", true)
	setDefault(k, "local.base_url", "http://localhost:11434")
	setDefault(k, "local.health_timeout", 5*time.Second)
	setDefault(k, "local.invoke_timeout", 30*time.Second)
	setDefault(k, "cloud.base_url", "https://generativelanguage.googleapis.com/v1beta")
	setDefault(k, "cloud.requests_per_second", 5.0)
	setDefault(k, "cloud.burst", 1)
	setDefault(k, "cloud.fast.model", "gemini-2.0-flash-lite")
	setDefault(k, "cloud.fast.temperature", 0.3)
	setDefault(k, "cloud.fast.max_output_tokens", 2048)
	setDefault(k, "cloud.fast.latency_ms", 500)
	setDefault(k, "cloud.fast.cost_per_call", 0.00002)
	setDefault(k, "cloud.capable.model", "gemini-2.0-flash-exp")
	setDefault(k, "cloud.capable.temperature", 0.7)
	setDefault(k, "cloud.capable.max_output_tokens", 4096)
	setDefault(k, "cloud.capable.latency_ms", 500)
	setDefault(k, "cloud.capable.cost_per_call", 0.0001)
	setDefault(k, "cloud.image_model", "imagen-3.0-generate-001")
	setDefault(k, "cloud.image_aspect_ratio", "16:9")
	setDefault(k, "router.probe_interval", 30*time.Second)
	setDefault(k, "pipeline.max_research_queries", 3)
	setDefault(k, "pipeline.usage_function", "vertex-ai-orchestrator")
	setDefault(k, "events.type", "direct")
	setDefault(k, "events.buffer_size", 256)
	setDefault(k, "telemetry.service_name", "campaign-orchestrator")
	setDefault(k, "telemetry.exporter", "stdout")
}

// setDefault sets key only when neither the file nor the environment provided it.
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

// DefaultLocalModels is the catalog offered by a stock local Ollama install.
func DefaultLocalModels() []LocalModelConfig {
	return []LocalModelConfig{
		{
			Name:          "llama3.1:8b",
			Capabilities:  []string{"classification", "sentiment", "simple_reasoning", "formatting", "planning", "validation"},
			LatencyMs:     50,
			ContextWindow: 8192,
		},
		{
			Name:          "codellama:13b",
			Capabilities:  []string{"code_generation", "technical_writing", "api_design"},
			LatencyMs:     80,
			ContextWindow: 16384,
		},
		{
			Name:          "mistral:7b",
			Capabilities:  []string{"creative_writing", "content_generation", "brainstorming"},
			LatencyMs:     40,
			ContextWindow: 4096,
		},
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

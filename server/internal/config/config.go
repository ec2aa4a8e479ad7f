package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the claimdesk configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultGRPCPort          = 50051
	DefaultDashboardInterval = 5 * time.Second
	DefaultBatchParallelism  = 4
	DefaultRetention         = 24 * time.Hour
	DefaultModel             = "gemini-2.5-flash"
	DefaultEmbeddingModel    = "text-embedding-004"
	DefaultAPIKeyEnv         = "GEMINI_API_KEY"
	DefaultLLMTimeout        = 30 * time.Second
	DefaultCacheTTL          = time.Hour
	DefaultTopK              = 2
)

// Config is the root of claimdesk.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rules     RulesConfig     `yaml:"rules"`
	Store     StoreConfig     `yaml:"store"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Log       LogConfig       `yaml:"log"`
	Intake    IntakeConfig    `yaml:"intake"`
}

// ServerConfig holds listener settings for the REST API and gRPC health server.
type ServerConfig struct {
	// HTTPPort serves the REST API, the dashboard websocket and /metrics.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort serves grpc.health.v1. Zero disables the gRPC listener.
	GRPCPort int `yaml:"grpc_port"`

	Auth AuthConfig `yaml:"auth"`

	// DashboardInterval is the websocket broadcast period.
	DashboardInterval time.Duration `yaml:"dashboard_interval"`

	// BatchParallelism bounds concurrent claims in a batch request.
	BatchParallelism int `yaml:"batch_parallelism"`
}

// AuthConfig controls client authentication for REST and gRPC.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header (and gRPC metadata key) carrying the key.
	// Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// LLMConfig selects and configures the language model behind the agentic stages.
type LLMConfig struct {
	// Provider is one of: gemini | none. "none" forces fallback mode.
	Provider string `yaml:"provider"`

	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float32 `yaml:"temperature"`

	// APIKeyEnv names the variable holding the API key. GOOGLE_API_KEY is
	// consulted when it is unset.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the Gemini endpoint (proxies, tests).
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single model call.
	Timeout time.Duration `yaml:"timeout"`

	Cache CacheConfig `yaml:"cache"`
}

// APIKey returns the model API key from the environment, or "".
func (l LLMConfig) APIKey() string {
	if l.APIKeyEnv != "" {
		if v := os.Getenv(l.APIKeyEnv); v != "" {
			return v
		}
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// Enabled reports whether agentic mode can be offered at all.
func (l LLMConfig) Enabled() bool {
	return l.Provider != "none" && l.APIKey() != ""
}

// CacheConfig configures the LLM response cache.
type CacheConfig struct {
	// Backend is one of: none | memory | redis.
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`

	RedisAddr        string `yaml:"redis_addr"`
	RedisPasswordEnv string `yaml:"redis_password_env"`
	RedisDB          int    `yaml:"redis_db"`
}

// RedisPassword returns the redis password resolved from the environment.
func (c CacheConfig) RedisPassword() string {
	if c.RedisPasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.RedisPasswordEnv)
}

// RetrievalConfig selects the policy retriever.
type RetrievalConfig struct {
	// Mode is one of: keyword | index | embedding. Embedding falls back to
	// index when the LLM is not enabled.
	Mode string `yaml:"mode"`

	// TopK is the number of sections fetched per query.
	TopK int `yaml:"top_k"`

	// Corpus and Declarations replace the embedded policy document and
	// declarations pages. Paths are read once at startup.
	Corpus       string `yaml:"corpus"`
	Declarations string `yaml:"declarations"`
}

// RulesConfig holds the thresholds of the deterministic rules.
type RulesConfig struct {
	TotalLossRatio          float64  `yaml:"total_loss_ratio"`
	SubrogationMinPayout    float64  `yaml:"subrogation_min_payout"`
	CollisionLimit          float64  `yaml:"collision_limit"`
	CollisionDeductible     float64  `yaml:"collision_deductible"`
	ComprehensiveDeductible float64  `yaml:"comprehensive_deductible"`
	HighValue               float64  `yaml:"high_value"`
	InspectionThreshold     float64  `yaml:"inspection_threshold"`
	SIUThreshold            float64  `yaml:"siu_threshold"`
	LateReportHours         float64  `yaml:"late_report_hours"`
	DefaultVehicleValue     float64  `yaml:"default_vehicle_value"`
	CommercialKeywords      []string `yaml:"commercial_keywords"`
	ComprehensiveKeywords   []string `yaml:"comprehensive_keywords"`
}

// StoreConfig controls in-memory retention of processed claims.
type StoreConfig struct {
	// Retention is how long a processed claim stays queryable. Zero keeps
	// records until restart.
	Retention time.Duration `yaml:"retention"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one alert condition evaluated per processed claim.
type AlertRule struct {
	// Name is the deduplication key together with the claim number.
	Name string `yaml:"name"`

	// Condition is a CEL expression over claim, decision, triage, fraud and
	// fnol, e.g. `fraud.siu_referral` or `decision.recommended_payout > 10000.0`.
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for the same claim. Defaults to 15 minutes.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: json | console.
	Format string `yaml:"format"`
}

// IntakeConfig enables the claim inbox watcher.
type IntakeConfig struct {
	// Dir is watched for new *.json claims. Empty disables the watcher.
	Dir string `yaml:"dir"`

	// UseLLM selects agentic mode for inbox claims.
	UseLLM bool `yaml:"use_llm"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("claimdesk config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("claimdesk config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("claimdesk config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with default values. It is what the
// CLI runs with when no config file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			GRPCPort:          DefaultGRPCPort,
			DashboardInterval: DefaultDashboardInterval,
			BatchParallelism:  DefaultBatchParallelism,
		},
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          DefaultModel,
			EmbeddingModel: DefaultEmbeddingModel,
			Temperature:    0.2,
			APIKeyEnv:      DefaultAPIKeyEnv,
			Timeout:        DefaultLLMTimeout,
			Cache: CacheConfig{
				Backend: "memory",
				TTL:     DefaultCacheTTL,
			},
		},
		Retrieval: RetrievalConfig{
			Mode: "index",
			TopK: DefaultTopK,
		},
		Rules: DefaultRules(),
		Store: StoreConfig{
			Retention: DefaultRetention,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// DefaultRules returns the rule thresholds used when none are configured.
func DefaultRules() RulesConfig {
	return RulesConfig{
		TotalLossRatio:          0.75,
		SubrogationMinPayout:    2500,
		CollisionLimit:          15000,
		CollisionDeductible:     500,
		ComprehensiveDeductible: 250,
		HighValue:               10000,
		InspectionThreshold:     5000,
		SIUThreshold:            0.5,
		LateReportHours:         72,
		DefaultVehicleValue:     15000,
		CommercialKeywords: []string{
			"delivery", "rideshare", "ride-share", "uber", "lyft", "doordash",
			"grubhub", "instacart", "courier", "for hire", "commercial", "pizza",
		},
		ComprehensiveKeywords: []string{
			"vandal", "theft", "stolen", "hail", "flood", "fire", "keyed", "graffiti",
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.GRPCPort < 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", cfg.Server.GRPCPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if cfg.Server.DashboardInterval <= 0 {
		return fmt.Errorf("server.dashboard_interval must be positive")
	}
	if cfg.Server.BatchParallelism <= 0 {
		return fmt.Errorf("server.batch_parallelism must be positive")
	}

	switch cfg.LLM.Provider {
	case "gemini", "none":
	default:
		return fmt.Errorf("llm.provider %q unknown: want gemini|none", cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature %.2f is out of range [0, 2]", cfg.LLM.Temperature)
	}
	switch cfg.LLM.Cache.Backend {
	case "none", "memory", "":
	case "redis":
		if cfg.LLM.Cache.RedisAddr == "" {
			return fmt.Errorf("llm.cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("llm.cache.backend %q unknown: want none|memory|redis", cfg.LLM.Cache.Backend)
	}

	switch cfg.Retrieval.Mode {
	case "keyword", "index", "embedding":
	default:
		return fmt.Errorf("retrieval.mode %q unknown: want keyword|index|embedding", cfg.Retrieval.Mode)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}

	if err := validateRules(cfg.Rules); err != nil {
		return err
	}

	if cfg.Store.Retention < 0 {
		return fmt.Errorf("store.retention must not be negative")
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d]: name and condition are required", i)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d].severity %q unknown: want critical|warning|info", i, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, w.Type)
		}
	}

	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format %q unknown: want json|console", cfg.Log.Format)
	}
	return nil
}

func validateRules(r RulesConfig) error {
	if r.TotalLossRatio <= 0 || r.TotalLossRatio > 1 {
		return fmt.Errorf("rules.total_loss_ratio %.2f is out of range (0, 1]", r.TotalLossRatio)
	}
	if r.SIUThreshold < 0 || r.SIUThreshold > 1 {
		return fmt.Errorf("rules.siu_threshold %.2f is out of range [0, 1]", r.SIUThreshold)
	}
	for name, v := range map[string]float64{
		"subrogation_min_payout":   r.SubrogationMinPayout,
		"collision_limit":          r.CollisionLimit,
		"collision_deductible":     r.CollisionDeductible,
		"comprehensive_deductible": r.ComprehensiveDeductible,
		"high_value":               r.HighValue,
		"inspection_threshold":     r.InspectionThreshold,
		"late_report_hours":        r.LateReportHours,
		"default_vehicle_value":    r.DefaultVehicleValue,
	} {
		if v < 0 {
			return fmt.Errorf("rules.%s must not be negative", name)
		}
	}
	return nil
}

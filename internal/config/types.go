package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int            `yaml:"port"`
	Env            string         `yaml:"env"` // "development" | "production"
	DSN            string         `yaml:"dsn"` // MySQL DSN
	RedisURL       string         `yaml:"redis_url"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	JWTSecret      string         `yaml:"jwt_secret"`
	AI             AIConfig       `yaml:"ai"`
	Pipeline       PipelineConfig `yaml:"pipeline"`
	Extract        ExtractConfig  `yaml:"extract"`
}

// AIConfig configures the generation capabilities.
type AIConfig struct {
	Providers               []AIProvider     `yaml:"providers"`
	PromptModel             *ModelAssignment `yaml:"prompt_model,omitempty"`
	Ollama                  OllamaConfig     `yaml:"ollama"`
	EnableLanguageDetection bool             `yaml:"enable_language_detection"`
	DefaultLocale           string           `yaml:"default_locale"` // e.g. "en-US"
}

// AIProvider describes a cloud prompt/chat backend.
type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// ModelAssignment pins a task to a provider and optional model override.
type ModelAssignment struct {
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
}

// OllamaConfig configures the local key-point summarizer backend.
type OllamaConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
}

// PipelineConfig tunes the summarization pipeline.
type PipelineConfig struct {
	TimeoutMS          int `yaml:"timeout_ms"`
	CacheTTLHours      int `yaml:"cache_ttl_hours"`
	SummarizerMaxInput int `yaml:"summarizer_max_input"`
	PromptMaxInput     int `yaml:"prompt_max_input"`
	DescriptionMax     int `yaml:"description_max"`
	ReviewSampleMax    int `yaml:"review_sample_max"`
	ReviewSampleCount  int `yaml:"review_sample_count"`
	ExcerptMax         int `yaml:"excerpt_max"`
	MinExcerptLen      int `yaml:"min_excerpt_len"`
}

// ExtractConfig lists ordered CSS selector candidates evaluated against
// submitted page HTML. The extension never relies on these being complete;
// missing sections are simply absent from the excerpt.
type ExtractConfig struct {
	DescriptionSelectors []string `yaml:"description_selectors"`
	ReviewSelectors      []string `yaml:"review_selectors"`
	AnchorSelectors      []string `yaml:"anchor_selectors"`
	AnchorFallbacks      []string `yaml:"anchor_fallbacks"`
}

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort     = 2410
	defaultEnv      = "development"
	defaultRedisURL = "redis://localhost:6379/0"
	defaultDSN      = "root:password@tcp(127.0.0.1:3306)/shopsense?charset=utf8mb4&parseTime=True&loc=Local"

	defaultOllamaHost = "http://localhost:11434"
	defaultLocale     = "en-US"
)

// Load reads the YAML config file and applies defaults and env overrides.
// A missing file is not an error; defaults are used.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultConfigPath:
		// fall through to defaults
	default:
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("SHOPSENSE_DSN")); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOPSENSE_REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOPSENSE_JWT_SECRET")); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("SHOPSENSE_ENV")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); v != "" {
		cfg.AI.Ollama.Host = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = defaultRedisURL
	}
	if cfg.DSN == "" {
		cfg.DSN = defaultDSN
	}
	if cfg.AI.Ollama.Host == "" {
		cfg.AI.Ollama.Host = defaultOllamaHost
	}
	if cfg.AI.DefaultLocale == "" {
		cfg.AI.DefaultLocale = defaultLocale
	}

	p := &cfg.Pipeline
	if p.TimeoutMS == 0 {
		p.TimeoutMS = 5000
	}
	if p.CacheTTLHours == 0 {
		p.CacheTTLHours = 24
	}
	if p.SummarizerMaxInput == 0 {
		p.SummarizerMaxInput = 32000
	}
	if p.PromptMaxInput == 0 {
		p.PromptMaxInput = 8000
	}
	if p.DescriptionMax == 0 {
		p.DescriptionMax = 1000
	}
	if p.ReviewSampleMax == 0 {
		p.ReviewSampleMax = 1500
	}
	if p.ReviewSampleCount == 0 {
		p.ReviewSampleCount = 5
	}
	if p.ExcerptMax == 0 {
		p.ExcerptMax = 6000
	}
	if p.MinExcerptLen == 0 {
		p.MinExcerptLen = 10
	}

	e := &cfg.Extract
	if len(e.DescriptionSelectors) == 0 {
		e.DescriptionSelectors = []string{
			"#productDescription",
			"#feature-bullets",
			".product-description",
			"[itemprop=description]",
			"#description",
		}
	}
	if len(e.ReviewSelectors) == 0 {
		e.ReviewSelectors = []string{
			"[data-hook=review-body]",
			".review-text",
			".review-content",
			"[itemprop=reviewBody]",
		}
	}
	if len(e.AnchorSelectors) == 0 {
		e.AnchorSelectors = []string{
			"#corePriceDisplay_desktop_feature_div",
			"#apex_desktop",
			".price-box",
			"[data-testid=product-price]",
		}
	}
	if len(e.AnchorFallbacks) == 0 {
		e.AnchorFallbacks = []string{
			"#centerCol",
			"main",
			"#dp-container",
		}
	}
}

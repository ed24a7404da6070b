package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	ollama "github.com/ollama/ollama/api"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	"github.com/pemistahl/lingua-go"
	appcfg "github.com/shopsense/core/internal/config"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

// ---- on-device key-point summarizer (ollama) ----

// OllamaSummarizer is the key-point summarizer capability backed by a
// local ollama instance.
type OllamaSummarizer struct {
	client   *ollama.Client
	model    string
	maxInput int
}

func NewOllamaSummarizer(cfg appcfg.OllamaConfig, maxInput int) (*OllamaSummarizer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	base, err := neturl.Parse(strings.TrimSpace(cfg.Host))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}
	return &OllamaSummarizer{
		client:   ollama.NewClient(base, httpClient),
		model:    strings.TrimSpace(cfg.Model),
		maxInput: maxInput,
	}, nil
}

func (o *OllamaSummarizer) MaxInput() int { return o.maxInput }

// Availability probes the local API. Server reachable with the model
// listed is Ready; reachable without it is ReadyAfterDownload (the first
// use pulls the model); unreachable is Unavailable.
func (o *OllamaSummarizer) Availability(ctx context.Context) Availability {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	list, err := o.client.List(probeCtx)
	if err != nil {
		return Unavailable
	}
	if o.model == "" {
		return Unavailable
	}
	base := modelBase(o.model)
	for _, m := range list.Models {
		if modelBase(m.Name) == base {
			return Ready
		}
	}
	return ReadyAfterDownload
}

// modelBase strips the tag from an ollama model reference
// ("llama3.2:latest" -> "llama3.2").
func modelBase(name string) string {
	return strings.SplitN(strings.TrimSpace(name), ":", 2)[0]
}

// Summarize generates key points in one non-streaming round trip. When
// the model is not yet present it is pulled first, with pull progress
// normalized to a 0..1 fraction on onProgress.
func (o *OllamaSummarizer) Summarize(ctx context.Context, text, lang string, onProgress func(float64)) (string, error) {
	if o.Availability(ctx) == ReadyAfterDownload {
		if err := o.pull(ctx, onProgress); err != nil {
			return "", fmt.Errorf("model download: %w", err)
		}
	}

	prompt := buildSummarizerPrompt(lang, text, o.maxInput)
	stream := false
	req := &ollama.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"num_predict": 300,
			"temperature": 0.3,
		},
	}

	var full strings.Builder
	err := o.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		full.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	result := strings.TrimSpace(full.String())
	if result == "" {
		return "", errors.New("empty response from summarizer")
	}
	return result, nil
}

func (o *OllamaSummarizer) pull(ctx context.Context, onProgress func(float64)) error {
	return o.client.Pull(ctx, &ollama.PullRequest{Model: o.model}, func(p ollama.ProgressResponse) error {
		if onProgress != nil && p.Total > 0 {
			fraction := float64(p.Completed) / float64(p.Total)
			if fraction < 0 {
				fraction = 0
			}
			if fraction > 1 {
				fraction = 1
			}
			onProgress(fraction)
		}
		return nil
	})
}

// ---- streaming prompt/chat model (cloud providers via jetify) ----

// JetPromptModel is the prompt/chat capability over the configured cloud
// provider, consumed in streaming mode.
type JetPromptModel struct {
	provider *appcfg.AIProvider
	maxInput int
}

func NewJetPromptModel(cfg appcfg.AIConfig, maxInput int) *JetPromptModel {
	return &JetPromptModel{
		provider: selectProvider(cfg, cfg.PromptModel),
		maxInput: maxInput,
	}
}

func (j *JetPromptModel) MaxInput() int { return j.maxInput }

// Availability is a config-level probe: an enabled provider with an API
// key is Ready. No network round trip is made.
func (j *JetPromptModel) Availability(_ context.Context) Availability {
	if j.provider == nil || strings.TrimSpace(j.provider.APIKey) == "" {
		return Unavailable
	}
	return Ready
}

// Stream runs the prompt and invokes onSnapshot with the cumulative text
// after each delta. Returns the complete text.
func (j *JetPromptModel) Stream(ctx context.Context, system, prompt string, onSnapshot func(string)) (string, error) {
	model, err := buildLanguageModel(j.provider)
	if err != nil {
		return "", err
	}

	streamResp, err := jetai.StreamText(
		ctx,
		buildPromptMessages(system, prompt),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(300),
	)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for event := range streamResp.Stream {
		switch evt := event.(type) {
		case *jetapi.TextDeltaEvent:
			if evt.TextDelta == "" {
				continue
			}
			full.WriteString(evt.TextDelta)
			if onSnapshot != nil {
				onSnapshot(full.String())
			}
		case *jetapi.ErrorEvent:
			if evt.Err == nil {
				return "", errors.New("stream returned an unknown error")
			}
			return "", fmt.Errorf("%v", evt.Err)
		}
	}

	result := full.String()
	if strings.TrimSpace(result) == "" {
		return "", errors.New("empty response from prompt model")
	}
	return result, nil
}

func selectProvider(cfg appcfg.AIConfig, assignment *appcfg.ModelAssignment) *appcfg.AIProvider {
	var providerID, overrideModel string
	if assignment != nil {
		providerID = strings.TrimSpace(assignment.ProviderID)
		overrideModel = strings.TrimSpace(assignment.Model)
	}

	pick := func(provider appcfg.AIProvider) *appcfg.AIProvider {
		selected := provider
		if overrideModel != "" {
			selected.DefaultModel = overrideModel
		}
		return &selected
	}

	if providerID != "" {
		for _, provider := range cfg.Providers {
			if provider.Enabled && strings.TrimSpace(provider.ID) == providerID {
				return pick(provider)
			}
		}
	}
	for _, provider := range cfg.Providers {
		if provider.Enabled {
			return pick(provider)
		}
	}
	return nil
}

func buildLanguageModel(provider *appcfg.AIProvider) (jetapi.LanguageModel, error) {
	if provider == nil {
		return nil, errors.New("AI provider is nil")
	}

	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, errors.New("AI provider api key is empty")
	}

	modelID := strings.TrimSpace(provider.DefaultModel)
	providerType := strings.ToLower(strings.TrimSpace(provider.Type))
	endpoint := strings.TrimSpace(provider.Endpoint)

	if providerType == "anthropic" {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil
	}

	// OpenAI and OpenAI-compatible endpoints share the client.
	if modelID == "" {
		modelID = "gpt-4o-mini"
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil
}

func buildPromptMessages(system, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: system})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

// ---- language detector (lingua) ----

// LinguaDetector detects the dominant language of page text.
type LinguaDetector struct {
	detector lingua.LanguageDetector
	enabled  bool
}

func NewLinguaDetector(enabled bool) *LinguaDetector {
	d := &LinguaDetector{enabled: enabled}
	if enabled {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromAllSpokenLanguages().
			Build()
	}
	return d
}

func (d *LinguaDetector) Availability() Availability {
	if !d.enabled || d.detector == nil {
		return Unavailable
	}
	return Ready
}

// Detect returns the highest-confidence ISO 639-1 code, lower-cased.
func (d *LinguaDetector) Detect(sample string) (string, bool) {
	if d.detector == nil || strings.TrimSpace(sample) == "" {
		return "", false
	}
	values := d.detector.ComputeLanguageConfidenceValues(sample)
	if len(values) == 0 {
		return "", false
	}
	code := strings.ToLower(values[0].Language().IsoCode639_1().String())
	if code == "" || code == "unknown" {
		return "", false
	}
	return code, true
}

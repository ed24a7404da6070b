package summarize

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	appcfg "github.com/shopsense/core/internal/config"
	"github.com/shopsense/core/internal/models"
	"github.com/shopsense/core/internal/modules/gateway"
	"github.com/shopsense/core/internal/pkg/kvstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service wires the pipeline components to the application: storage,
// gateway broadcasts and the HTTP handlers.
type Service struct {
	cfg       *appcfg.AppConfig
	db        *gorm.DB
	builder   *Builder
	resolver  *Resolver
	pipeline  *Pipeline
	cache     *Cache
	telemetry *Telemetry
	hub       *gateway.Hub
	logger    *zap.Logger
}

// NewService constructs the full pipeline session from config.
func NewService(ctx context.Context, cfg *appcfg.AppConfig, db *gorm.DB, kv kvstore.Store, hub *gateway.Hub, logger *zap.Logger) (*Service, error) {
	var summarizer Summarizer
	if o, err := NewOllamaSummarizer(cfg.AI.Ollama, cfg.Pipeline.SummarizerMaxInput); err != nil {
		return nil, fmt.Errorf("ollama summarizer: %w", err)
	} else if o != nil {
		summarizer = o
	}

	var prompt PromptModel = NewJetPromptModel(cfg.AI, cfg.Pipeline.PromptMaxInput)
	language := NewLinguaDetector(cfg.AI.EnableLanguageDetection)
	detector := NewDetector(summarizer, prompt, language, logger)

	cache := NewCache(kv, time.Duration(cfg.Pipeline.CacheTTLHours)*time.Hour, logger)
	telemetry := NewTelemetry(kv, logger)

	pipeline := NewPipeline(ctx, PipelineParams{
		Detector:   detector,
		Summarizer: summarizer,
		Prompt:     prompt,
		Cache:      cache,
		Telemetry:  telemetry,
		History:    &gormHistory{db: db, logger: logger},
		Logger:     logger,
		Timeout:    time.Duration(cfg.Pipeline.TimeoutMS) * time.Millisecond,
		MinExcerpt: cfg.Pipeline.MinExcerptLen,
	})

	return &Service{
		cfg:       cfg,
		db:        db,
		builder:   NewBuilder(cfg.Pipeline, cfg.Extract),
		resolver:  NewResolver(language, cfg.AI.DefaultLocale, logger),
		pipeline:  pipeline,
		cache:     cache,
		telemetry: telemetry,
		hub:       hub,
		logger:    logger,
	}, nil
}

// GenerateInput is one summarization request.
type GenerateInput struct {
	Product         ProductRecord
	PageHTML        string
	PageText        string
	Lang            string
	PreferStreaming bool
	OnProgress      func(float64)
	OnChunk         func(string)
}

// completionEvent is the outbound notification shape.
type completionEvent struct {
	Result      Result `json:"result"`
	Cached      bool   `json:"cached"`
	ProductSite string `json:"productSite"`
}

// Generate builds the excerpt, resolves the language, runs the pipeline
// and broadcasts the completion event. It never returns an error; all
// failures are inside the Result.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (Result, Excerpt) {
	excerpt := s.builder.Build(in.Product, in.PageHTML)

	lang := in.Lang
	if lang == "" {
		pageText := in.PageText
		if pageText == "" {
			pageText = excerpt.Text
		}
		lang = s.resolver.Resolve(pageText)
	} else {
		lang = primarySubtag(lang)
	}

	result := s.pipeline.Summarize(ctx, excerpt, Options{
		Lang:            lang,
		PreferStreaming: in.PreferStreaming,
		OnProgress:      in.OnProgress,
		OnChunk:         in.OnChunk,
	})

	if s.hub != nil {
		s.hub.Broadcast(gateway.EventSummaryCompleted, completionEvent{
			Result:      result,
			Cached:      result.Cached,
			ProductSite: excerpt.Site,
		})
	}
	return result, excerpt
}

// CachedSummary looks up the cache without triggering generation.
func (s *Service) CachedSummary(ctx context.Context, host, productKey, lang string) (*CacheEntry, bool) {
	return s.cache.Get(ctx, Fingerprint(host, productKey, primarySubtag(lang)))
}

// Capabilities returns the current snapshot, optionally re-probing.
func (s *Service) Capabilities(ctx context.Context, refresh bool) CapabilitySet {
	if refresh {
		return s.pipeline.Reprobe(ctx)
	}
	return s.pipeline.Capabilities()
}

// ClearCache removes all cached summaries.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// TelemetryEvents lists recorded pipeline outcomes, newest first.
func (s *Service) TelemetryEvents(ctx context.Context) ([]TelemetryEvent, error) {
	return s.telemetry.List(ctx)
}

// ListRecords returns persisted summary history, newest first.
func (s *Service) ListRecords(limit int) ([]models.SummaryRecordModel, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	var records []models.SummaryRecordModel
	err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// DeleteRecord removes one history record by id.
func (s *Service) DeleteRecord(id string) error {
	return s.db.Delete(&models.SummaryRecordModel{}, "id = ?", id).Error
}

// gormHistory persists successful generations, best-effort.
type gormHistory struct {
	db     *gorm.DB
	logger *zap.Logger
}

func (g *gormHistory) Save(_ context.Context, fingerprint string, excerpt Excerpt, result Result) {
	record := models.SummaryRecordModel{
		Hash:       fingerprint,
		Summary:    result.Summary,
		Host:       excerpt.Host,
		ProductKey: excerpt.ProductKey,
		Lang:       result.Lang,
		APIUsed:    string(result.APIUsed),
		TTFBMs:     result.TTFBMs,
		DurationMs: result.DurationMs,
	}
	err := g.db.Where("hash = ?", fingerprint).Assign(record).FirstOrCreate(&record).Error
	if isDuplicateHashError(err) {
		// Concurrent insert for the same fingerprint; last write wins.
		err = g.db.Model(&models.SummaryRecordModel{}).Where("hash = ?", fingerprint).Updates(record).Error
	}
	if err != nil && g.logger != nil {
		g.logger.Warn("summary history save failed", zap.String("hash", fingerprint), zap.Error(err))
	}
}

func isDuplicateHashError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

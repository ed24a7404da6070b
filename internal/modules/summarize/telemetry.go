package summarize

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopsense/core/internal/pkg/kvstore"
	"go.uber.org/zap"
)

const (
	telemetryKeyPrefix = "ai_telemetry_"
	telemetryTTL       = 7 * 24 * time.Hour
)

// TelemetryEvent records one pipeline outcome.
type TelemetryEvent struct {
	Kind       string    `json:"kind"` // generated | failed | error
	Result     Result    `json:"result"`
	Site       string    `json:"site"`
	ExcerptLen int       `json:"excerpt_len"`
	PipelineMs int64     `json:"pipeline_ms"`
	At         time.Time `json:"at"`
}

// Telemetry is the best-effort outcome sink. Record never blocks the
// pipeline and never fails outward; storage errors are only logged.
type Telemetry struct {
	kv     kvstore.Store
	logger *zap.Logger
}

func NewTelemetry(kv kvstore.Store, logger *zap.Logger) *Telemetry {
	return &Telemetry{kv: kv, logger: logger}
}

// Record appends the event asynchronously, fire-and-forget.
func (t *Telemetry) Record(ev TelemetryEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		t.write(ctx, ev)
	}()
}

func (t *Telemetry) write(ctx context.Context, ev TelemetryEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		t.warn("telemetry marshal failed", err)
		return
	}
	key := telemetryKeyPrefix + uuid.New().String()
	if err := t.kv.Set(ctx, key, string(data), telemetryTTL); err != nil {
		t.warn("telemetry write failed", err)
	}
}

// List returns recorded events, newest first. Corrupt entries are
// skipped.
func (t *Telemetry) List(ctx context.Context) ([]TelemetryEvent, error) {
	keys, err := t.kv.Keys(ctx, telemetryKeyPrefix)
	if err != nil {
		return nil, err
	}

	events := make([]TelemetryEvent, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := t.kv.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var ev TelemetryEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].At.After(events[j].At) })
	return events, nil
}

func (t *Telemetry) warn(msg string, err error) {
	if t.logger != nil {
		t.logger.Warn(msg, zap.Error(err))
	}
}

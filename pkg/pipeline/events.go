package pipeline

import (
	"context"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event channels. Subscribers match them with the assetx:* pattern.
const (
	ChannelPassCompleted     = "assetx:pass.completed"
	ChannelProjectDiscovered = "assetx:project.discovered"
	ChannelRefreshCompleted  = "assetx:refresh.completed"
)

// EventPublisher is the pub/sub surface the pipeline emits through.
// *redis.Client implements it; a nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// PassCompletedEvent announces a finished cadence pass.
type PassCompletedEvent struct {
	ID          string    `json:"id"`
	Loop        string    `json:"loop"`
	Selected    int       `json:"selected"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	DurationMs  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// ProjectDiscoveredEvent announces a project created by discovery.
type ProjectDiscoveredEvent struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Rank         int64     `json:"rank"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// RefreshCompletedEvent announces a finished on-demand refresh.
type RefreshCompletedEvent struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}

func (p *Pipeline) publishPassCompleted(ctx context.Context, stats PassStats) {
	p.publishEvent(ctx, ChannelPassCompleted, PassCompletedEvent{
		ID:          uuid.NewString(),
		Loop:        stats.Loop,
		Selected:    stats.Selected,
		Processed:   stats.Processed,
		Skipped:     stats.Skipped,
		Failed:      stats.Failed,
		DurationMs:  stats.Duration.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	})
}

func (p *Pipeline) publishEvent(ctx context.Context, channel string, payload any) {
	if p.events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Dropping unencodable event", zap.String("channel", channel), zap.Error(err))
		return
	}
	p.events.Publish(ctx, channel, string(body))
}

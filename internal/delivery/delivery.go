// Package delivery publishes fired decisions to the storefront: a log line, an
// HTTP webhook, or a Kafka topic.
package delivery

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/lazypower/nudge/internal/engine"
)

// Kinds accepted by the delivery config.
const (
	KindNone    = "none"
	KindLog     = "log"
	KindWebhook = "webhook"
	KindKafka   = "kafka"
)

var (
	_ engine.Publisher = (*Log)(nil)
	_ engine.Publisher = (*Webhook)(nil)
	_ engine.Publisher = (*Kafka)(nil)
)

// Log writes each decision as a structured log line.
type Log struct {
	log *zap.Logger
}

// NewLog creates a log publisher.
func NewLog(l *zap.Logger) *Log {
	return &Log{log: l.Named("delivery")}
}

func (p *Log) Name() string { return KindLog }

func (p *Log) Publish(_ context.Context, d *engine.Decision) error {
	p.log.Info("intervention",
		zap.String("id", d.ID),
		zap.String("session_id", d.SessionID),
		zap.String("type", string(d.Type)),
		zap.Int("stage", d.Stage),
		zap.String("ui", string(d.Intervention.UIType)),
		zap.String("script", d.Intervention.Script),
	)
	return nil
}

// encode is the wire form shared by the webhook and Kafka publishers.
func encode(d *engine.Decision) ([]byte, error) {
	return json.Marshal(d)
}

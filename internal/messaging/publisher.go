package messaging

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/otaflow/ota-agent/api"
	"github.com/otaflow/ota-agent/internal/telemetry"
)

// HeaderCycleID carries the update cycle identifier on published messages.
const HeaderCycleID = "Ota-Cycle-Id"

// MsgPublisher is the subset of *nats.Conn used for publishing.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher sends stage metrics and cycle outcomes as JSON.
type Publisher struct {
	conn           MsgPublisher
	metricsSubject string
	outcomeSubject string
}

// NewPublisher returns a Publisher. An empty subject disables the matching messages.
func NewPublisher(conn MsgPublisher, metricsSubject string, outcomeSubject string) *Publisher {
	return &Publisher{
		conn:           conn,
		metricsSubject: metricsSubject,
		outcomeSubject: outcomeSubject,
	}
}

// Publish sends a stage metric.
func (p *Publisher) Publish(ctx context.Context, metric api.StageMetric) error {
	return p.publish(ctx, p.metricsSubject, metric)
}

// PublishOutcome sends a cycle outcome.
func (p *Publisher) PublishOutcome(ctx context.Context, record api.OutcomeRecord) error {
	return p.publish(ctx, p.outcomeSubject, record)
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	if subject == "" {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data

	id := telemetry.CycleID(ctx)
	if id != "" {
		msg.Header.Set(HeaderCycleID, id)
	}

	return p.conn.PublishMsg(msg)
}

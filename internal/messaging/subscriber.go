package messaging

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/otaflow/ota-agent/internal/trigger"
)

// TriggerPayload is the only message body that starts an update cycle.
const TriggerPayload = "start"

// Replies sent to trigger requests.
const (
	ReplyStarted = "started"
	ReplyBusy    = "busy"
	ReplyIgnored = "ignored"
)

// Trigger starts update cycles in the background.
type Trigger interface {
	Go(ctx context.Context, source trigger.Source) bool
}

// Subscribe listens for trigger messages on subject.
//
// ctx is handed to the update cycles started by messages.
func Subscribe(ctx context.Context, conn *nats.Conn, subject string, t Trigger) (*nats.Subscription, error) {
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		HandleTrigger(ctx, msg, t)
	})
}

// HandleTrigger processes one trigger message and returns the reply sent to the requester.
func HandleTrigger(ctx context.Context, msg *nats.Msg, t Trigger) string {
	reply := ReplyIgnored

	if string(bytes.TrimSpace(msg.Data)) != TriggerPayload {
		slog.DebugContext(ctx, "Ignoring unexpected trigger payload", slog.String("subject", msg.Subject), slog.Int("size", len(msg.Data)))
	} else {
		slog.InfoContext(ctx, "Update triggered by message", slog.String("subject", msg.Subject))

		reply = ReplyBusy
		if t.Go(ctx, trigger.SourceMessage) {
			reply = ReplyStarted
		}
	}

	if msg.Reply != "" {
		err := msg.Respond([]byte(reply))
		if err != nil {
			slog.WarnContext(ctx, "Failed to answer trigger request", slog.Any("error", err))
		}
	}

	return reply
}

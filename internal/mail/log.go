package mail

import (
	"context"

	"github.com/google/uuid"

	"github.com/aivanceworks/leadform/pkg/logger"
)

// LogTransport writes messages to the log instead of sending them. It is
// meant for local development.
type LogTransport struct {
	log *logger.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(log *logger.Logger) *LogTransport {
	return &LogTransport{log: log}
}

// Send logs msg and returns a generated id.
func (t *LogTransport) Send(ctx context.Context, msg *Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	id := "log-" + uuid.NewString()
	logger.FromContext(ctx, t.log).Info("email not sent (log transport)",
		"message_id", id,
		"from", msg.From,
		"to", msg.To,
		"reply_to", msg.ReplyTo,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
	)
	return id, nil
}

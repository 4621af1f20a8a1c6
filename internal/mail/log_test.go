package mail

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivanceworks/leadform/pkg/logger"
)

func TestLogTransport_Send(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLogTransport(logger.New(&buf, "info"))

	id, err := tr.Send(context.Background(), testMessage())

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "log-"))
	assert.Contains(t, buf.String(), id)
	assert.Contains(t, buf.String(), `"subject":"hello"`)
	assert.NotContains(t, buf.String(), "<p>hi</p>", "bodies are not logged")
}

func TestLogTransport_InvalidMessage(t *testing.T) {
	tr := NewLogTransport(logger.Nop())

	_, err := tr.Send(context.Background(), &Message{})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

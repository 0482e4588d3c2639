package messaging

import (
	"context"

	"github.com/rs/zerolog"
)

// LogBroker writes events to the log instead of a real broker. It backs the
// in-memory server mode and deployments without Redis.
type LogBroker struct {
	logger zerolog.Logger
}

func NewLogBroker(logger zerolog.Logger) *LogBroker {
	return &LogBroker{logger: logger}
}

func (b *LogBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.logger.Info().
		Str("topic", topic).
		RawJSON("message", payload).
		Msg("event published")
	return nil
}

func (b *LogBroker) Close() error { return nil }

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	at := time.Date(2026, 10, 21, 18, 0, 0, 0, time.FixedZone("CST", -6*3600))
	b, err := Encode("e1", "appointment.booked", json.RawMessage(`{"date":"2026-10-24"}`), at)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, "e1", msg.ID)
	assert.Equal(t, "appointment.booked", msg.Type)
	assert.JSONEq(t, `{"date":"2026-10-24"}`, string(msg.Payload))
	assert.True(t, msg.CreatedAt.Equal(at))
}

func TestLogBroker(t *testing.T) {
	var buf bytes.Buffer
	b := NewLogBroker(zerolog.New(&buf))

	require.NoError(t, b.Publish(context.Background(), "reminder.whatsapp", []byte(`{"to":"+525512345678"}`)))
	assert.Contains(t, buf.String(), `"topic":"reminder.whatsapp"`)
	assert.Contains(t, buf.String(), `"to":"+525512345678"`)
	assert.NoError(t, b.Close())
}

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPublishesEvent(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NopLogger{})
	defer pubsub.Close()

	messages, err := pubsub.Subscribe(context.Background(), Topic)
	require.NoError(t, err)

	var buf bytes.Buffer
	rec := NewRecorder(zerolog.New(&buf), pubsub)
	rec.Record(context.Background(), Event{
		Type:     EventCSRFRejected,
		Action:   "write",
		ClientID: "203.0.113.4",
		Reason:   "missing_header",
	})

	select {
	case msg := <-messages:
		msg.Ack()
		var ev Event
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, EventCSRFRejected, ev.Type)
		assert.Equal(t, "203.0.113.4", ev.ClientID)
		assert.False(t, ev.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("audit event was not published")
	}

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "csrf_rejected", line["event"])
}

func TestRecordWithoutPublisher(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(zerolog.New(&buf), nil)
	rec.Record(context.Background(), Event{Type: EventLoginSucceeded, Subject: "admin@example.com"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])

	var nilRecorder *Recorder
	nilRecorder.Record(context.Background(), Event{Type: EventLogout})
}

func TestNewPublisherDefaultsToGoChannel(t *testing.T) {
	pub, err := NewPublisher(nil)
	require.NoError(t, err)
	assert.IsType(t, &gochannel.GoChannel{}, pub)
	require.NoError(t, pub.Close())
}

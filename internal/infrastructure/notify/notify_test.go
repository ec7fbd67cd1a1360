package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) NotifyCatalogChanged(ctx context.Context, inserted int) error {
	r.calls++
	return r.err
}

func TestKafkaNotifier_Publishes(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, "catalog-events", nil)

	require.NoError(t, n.NotifyCatalogChanged(context.Background(), 3))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "catalog-events", msg.Topic)
	assert.Equal(t, EventCatalogChanged, string(msg.Key))

	var event CatalogChangedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventCatalogChanged, event.EventType)
	assert.Equal(t, 3, event.Inserted)
	assert.False(t, event.Timestamp.IsZero())

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifier_WriteError(t *testing.T) {
	n := newKafkaNotifier(&fakeWriter{err: errors.New("broker down")}, "catalog-events", nil)

	err := n.NotifyCatalogChanged(context.Background(), 1)
	assert.ErrorContains(t, err, "broker down")
}

func TestNewKafkaNotifier_Validation(t *testing.T) {
	_, err := NewKafkaNotifier(KafkaConfig{Topic: "t"}, nil)
	assert.Error(t, err)

	_, err = NewKafkaNotifier(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)

	_, err = NewKafkaNotifier(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "brotli"}, nil)
	assert.ErrorContains(t, err, "brotli")

	n, err := NewKafkaNotifier(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "none"}, nil)
	require.NoError(t, err)
	assert.NoError(t, n.Close())
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name string
		want kafka.Compression
	}{
		{"", kafka.Snappy},
		{"snappy", kafka.Snappy},
		{"GZIP", kafka.Gzip},
		{"lz4", kafka.Lz4},
		{"zstd", kafka.Zstd},
		{"none", 0},
	}
	for _, tt := range tests {
		got, err := parseCompression(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestFanout(t *testing.T) {
	assert.Nil(t, NewFanout(nil, nil))

	single := &recordingNotifier{}
	assert.Same(t, single, NewFanout(nil, single))

	failing := &recordingNotifier{err: errors.New("refresh failed")}
	ok := &recordingNotifier{}
	fan := NewFanout(failing, ok)

	err := fan.NotifyCatalogChanged(context.Background(), 2)
	assert.ErrorContains(t, err, "refresh failed")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls, "a failing notifier does not stop the rest")
}

package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches []LogBatch
	done    chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.(LogBatch))
	select {
	case p.done <- struct{}{}:
	default:
	}
	return nil
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.Warn("x")
		l.Error("x", Error(errors.New("boom")))
		l.Debug("x")
		assert.Nil(t, l.With(String("k", "v")))
		l.RemoveCollector()
	})
}

func TestNopLogger(t *testing.T) {
	l := Nop().With(String("component", "test"), Float64("ratio", 0.5))
	assert.NotPanics(t, func() { l.Info("hello", Int("n", 1), Duration("took", time.Second)) })
}

func TestFieldKeyValues(t *testing.T) {
	k, v := Float64("price", 12.5).GetKeyValue()
	assert.Equal(t, "price", k)
	assert.Equal(t, 12.5, v)

	k, v = Duration("took", 1500*time.Millisecond).GetKeyValue()
	assert.Equal(t, "took", k)
	assert.Equal(t, 1500, v)

	_, v = Error(nil).GetKeyValue()
	assert.Equal(t, "", v)

	_, v = Strings("cities", []string{"a", "b"}).GetKeyValue()
	assert.Equal(t, "a, b", v)
}

func TestCollectorDeduplicatesAndFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{}, 1)}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Source:         "roomarb",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "fetch failed", map[string]interface{}{"hotel": "H1"}, "a.go:1")
	c.AddLog("error", "fetch failed", map[string]interface{}{"hotel": "H1"}, "a.go:1")
	assert.Equal(t, 1, c.Pending())

	c.AddLog("error", "fetch failed", map[string]interface{}{"hotel": "H2"}, "a.go:1")
	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not flush")
	}
	assert.Zero(t, c.Pending())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "logs", pub.topic)
	require.Len(t, pub.batches, 1)
	batch := pub.batches[0]
	assert.Equal(t, "roomarb", batch.Source)
	require.Len(t, batch.Entries, 2)
	// most repeated entry first
	assert.Equal(t, 2, batch.Entries[0].Count)
	assert.Equal(t, "H1", batch.Entries[0].Fields["hotel"])
	assert.Equal(t, 1, batch.Entries[1].Count)
}

func TestCollectorFlushesOnCloseAndIgnoresLateLogs(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{}, 1)}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})

	c.AddLog("error", "scan failed", nil, "b.go:2")
	c.Close()
	c.AddLog("error", "scan failed", nil, "b.go:2")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, 1, pub.batches[0].Entries[0].Count)
	assert.Zero(t, c.Pending())
}

func TestAddCollectorIgnoresMissingPublisher(t *testing.T) {
	l := Nop()
	l.AddCollector(&CollectionConfig{Topic: "logs"})
	assert.Nil(t, l.sink.Load())
}

func TestChildLoggerSeesCollectorAttachedLater(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{}, 1)}
	root := Nop()
	child := root.With(String("component", "finder"))

	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 1, Topic: "logs", Publisher: pub})
	child.Error("live price lookup failed", String("hotel", "H9"))

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("child error was not collected")
	}
	root.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "live price lookup failed", pub.batches[0].Entries[0].Message)
}

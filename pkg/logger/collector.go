package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships aggregated log batches, typically to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, 30s when zero
	CountThreshold int           // distinct entries that force an early flush, 100 when zero
	Topic          string
	Source         string // service name stamped on every batch
	Publisher      Publisher
	PublishTimeout time.Duration // per batch, 10s when zero
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload handed to the Publisher.
type LogBatch struct {
	Source    string               `json:"source,omitempty"`
	FlushedAt time.Time            `json:"flushed_at"`
	Dropped   int                  `json:"dropped,omitempty"`
	Entries   []AggregatedLogEntry `json:"entries"`
}

// LogCollector folds repeated log lines into counted entries and ships them
// in batches from a single background sender.
type LogCollector struct {
	cfg     CollectionConfig
	now     func() time.Time
	mu      sync.Mutex
	pending map[uint64]*AggregatedLogEntry
	dropped int
	closed  bool
	out     chan LogBatch
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	c := &LogCollector{
		cfg:     cfg,
		now:     time.Now,
		pending: make(map[uint64]*AggregatedLogEntry),
		out:     make(chan LogBatch, 8),
		stop:    make(chan struct{}),
	}
	c.wg.Add(2)
	go c.tick()
	go c.send()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := c.now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.pending[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.pending) >= c.cfg.CountThreshold {
		c.flushLocked()
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close flushes what is pending and waits for the sender to drain.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}

func (c *LogCollector) tick() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked()
			c.closed = true
			c.mu.Unlock()
			close(c.out)
			return
		}
	}
}

func (c *LogCollector) send() {
	defer c.wg.Done()
	for batch := range c.out {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
		err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch)
		cancel()
		if err != nil {
			// Logging through the Logger here would feed the collector again.
			fmt.Fprintf(os.Stderr, "log collector: publish %d entries: %v\n", len(batch.Entries), err)
		}
	}
}

// flushLocked must be called with mu held. A full outbox drops the batch and
// reports the loss on the next one.
func (c *LogCollector) flushLocked() {
	if len(c.pending) == 0 {
		return
	}
	entries := make([]AggregatedLogEntry, 0, len(c.pending))
	for _, e := range c.pending {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].FirstSeen.Before(entries[j].FirstSeen)
	})
	c.pending = make(map[uint64]*AggregatedLogEntry)

	batch := LogBatch{Source: c.cfg.Source, FlushedAt: c.now().UTC(), Dropped: c.dropped, Entries: entries}
	select {
	case c.out <- batch:
		c.dropped = 0
	default:
		c.dropped += len(entries)
	}
}

func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, caller, message)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

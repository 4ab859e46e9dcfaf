package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Publisher ships aggregated log entries. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval; zero flushes only on threshold and Close
	CountThreshold int           // max unique entries before flush
	Topic          string        // topic the aggregated entries are sent to
	Publisher      Publisher     // where aggregated entries go
	Logger         *Logger       // reports publish failures
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Source    string                 `json:"source"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector groups identical log entries and publishes them with their repeat counts.
type LogCollector struct {
	config *CollectionConfig
	logMap map[string]*AggregatedLogEntry
	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sends  sync.WaitGroup
	once   sync.Once
	now    func() time.Time
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	if config.Logger == nil {
		config.Logger = Nop()
	}

	collector := &LogCollector{
		config: config,
		logMap: make(map[string]*AggregatedLogEntry),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}

	if config.TimeInterval > 0 {
		collector.wg.Add(1)
		go collector.periodicFlush()
	}

	return collector
}

// AddLog counts one occurrence of an entry and reports whether it is the first
// occurrence since the last flush. Callers log the first one themselves.
func (d *LogCollector) AddLog(level, message, source string, fields ...Field) bool {
	now := d.now()
	values := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		k, v := f.GetKeyValue()
		values[k] = v
	}
	key := d.generateKey(level, message, values, source)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	first := false
	if entry, exists := d.logMap[key]; exists {
		entry.Count++
		entry.LastSeen = now
	} else {
		first = true
		d.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    values,
			Source:    source,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(d.logMap) >= d.config.CountThreshold {
		d.flushLogs()
	}
	return first
}

// Pending returns the number of distinct entries waiting for the next flush.
func (d *LogCollector) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.logMap)
}

// Flush publishes everything collected so far.
func (d *LogCollector) Flush() {
	d.mutex.Lock()
	d.flushLogs()
	d.mutex.Unlock()
}

func (d *LogCollector) generateKey(level, message string, fields map[string]interface{}, source string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Source  string                 `json:"source"`
	}{
		Level:   level,
		Message: message,
		Fields:  fields,
		Source:  source,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf("%x", hash)
}

func (d *LogCollector) periodicFlush() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Flush()
		case <-d.ctx.Done():
			return
		}
	}
}

// flushLogs must be called with the mutex held.
func (d *LogCollector) flushLogs() {
	if len(d.logMap) == 0 {
		return
	}

	logs := make([]AggregatedLogEntry, 0, len(d.logMap))
	for _, entry := range d.logMap {
		logs = append(logs, *entry)
	}
	d.logMap = make(map[string]*AggregatedLogEntry)

	if d.config.Publisher == nil {
		return
	}
	d.sends.Add(1)
	go func() {
		defer d.sends.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := d.config.Publisher.Publish(ctx, d.config.Topic, nil, logs); err != nil {
			d.config.Logger.Error("failed to send aggregated logs",
				String("topic", d.config.Topic),
				Int("entries", len(logs)),
				Error(err))
		}
	}()
}

// Close stops the periodic flush, publishes what is left and waits for pending sends.
func (d *LogCollector) Close() error {
	d.once.Do(func() {
		d.cancel()
		d.wg.Wait()
		d.Flush()
		d.sends.Wait()
	})
	return nil
}

// LogPublisher writes aggregated entries back to a Logger. Entries seen once were
// already logged by their caller, so only repeats are written.
type LogPublisher struct {
	l *Logger
}

func NewLogPublisher(l *Logger) *LogPublisher {
	if l == nil {
		l = Nop()
	}
	return &LogPublisher{l: l}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	entries, ok := value.([]AggregatedLogEntry)
	if !ok {
		p.l.Info("log summary", String("topic", topic), Any("value", value))
		return nil
	}
	for _, e := range entries {
		if e.Count < 2 {
			continue
		}
		p.l.Warn("repeated log entry",
			String("entry", e.Message),
			String("entry_level", e.Level),
			String("source", e.Source),
			Int("count", e.Count),
			Time("first_seen", e.FirstSeen),
			Time("last_seen", e.LastSeen),
			Any("fields", e.Fields))
	}
	return nil
}

package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024                   // pending events held before the oldest is dropped
	MaxEventsPerSec      = 10000                  // default global rate
	MaxEventsPerSource   = 100                    // per agent per second
	BatchFlushSize       = 64                     // events per write batch
	BatchFlushInterval   = 100 * time.Millisecond // writer cadence
	SourceLimiterCleanup = 5 * time.Minute        // idle source limiters are forgotten after this
)

// EventLogStats are the event log counters
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
	Running bool   `json:"running"`
}

type sourceLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

// EventLog records rally events as JSON lines. Emit never blocks the tick:
// events over the global or per-source rate are dropped, and when the writer
// falls behind the oldest pending event is overwritten.
type EventLog struct {
	mu      sync.Mutex
	ring    [EventBufferSize]Event
	start   int // index of the oldest pending event
	pending int
	seq     uint64
	sources map[string]*sourceLimiter

	global *rate.Limiter

	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// output; enc is set for .zst paths
	file *os.File
	enc  *zstd.Encoder
	out  *bufio.Writer

	total   atomic.Uint64
	dropped atomic.Uint64
}

// NewEventLog creates an event log with the default global rate
func NewEventLog() *EventLog {
	return NewEventLogWithLimit(MaxEventsPerSec)
}

// NewEventLogWithLimit creates an event log accepting perSec events per second
func NewEventLogWithLimit(perSec int) *EventLog {
	if perSec <= 0 {
		perSec = MaxEventsPerSec
	}
	burst := perSec / 10
	if burst < 1 {
		burst = 1
	}
	return &EventLog{
		sources:  make(map[string]*sourceLimiter),
		global:   rate.NewLimiter(rate.Limit(perSec), burst),
		stopChan: make(chan struct{}),
	}
}

// Start opens filePath for append and starts the writer. An empty path
// keeps counting and rate limiting without writing anything.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		if err := el.open(filePath); err != nil {
			return fmt.Errorf("event log %s: %w", filePath, err)
		}
	}

	el.running.Store(true)
	el.wg.Add(1)
	go el.writerLoop()
	return nil
}

func (el *EventLog) open(filePath string) error {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	var w io.Writer = file
	if strings.HasSuffix(filePath, ".zst") {
		enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			file.Close()
			return err
		}
		el.enc = enc
		w = enc
	}
	el.file = file
	el.out = bufio.NewWriterSize(w, 64*1024)
	return nil
}

// Stop drains pending events and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.wg.Wait()

		if el.out != nil {
			if err := el.out.Flush(); err != nil {
				log.Printf("⚠️ Event log flush: %v", err)
			}
		}
		if el.enc != nil {
			el.enc.Close()
		}
		if el.file != nil {
			el.file.Close()
		}
	})
}

// Emit queues an event. It returns false when the log is stopped or the
// event was rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.global.Allow() {
		el.dropped.Add(1)
		return false
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if event.SourceID != "" && !el.sourceLimiterLocked(event.SourceID).Allow() {
		el.dropped.Add(1)
		return false
	}

	if el.pending == EventBufferSize {
		el.start = (el.start + 1) % EventBufferSize
		el.pending--
		el.dropped.Add(1)
	}

	el.seq++
	event.Sequence = el.seq
	el.ring[(el.start+el.pending)%EventBufferSize] = event
	el.pending++

	el.total.Add(1)
	return true
}

// EmitSimple builds and queues an event
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, sourceID string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, sourceID, payload))
}

// sourceLimiterLocked returns the limiter for one agent; el.mu must be held
func (el *EventLog) sourceLimiterLocked(sourceID string) *rate.Limiter {
	now := time.Now()
	s, ok := el.sources[sourceID]
	if !ok {
		s = &sourceLimiter{limiter: rate.NewLimiter(MaxEventsPerSource, MaxEventsPerSource/10)}
		el.sources[sourceID] = s
	}
	s.seen = now
	return s.limiter
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()

	flush := time.NewTicker(BatchFlushInterval)
	defer flush.Stop()
	sweep := time.NewTicker(SourceLimiterCleanup)
	defer sweep.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.drain(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.write(batch)
			}
		case <-flush.C:
			batch = el.drain(batch[:0])
			el.write(batch)
		case now := <-sweep.C:
			el.forgetIdleSources(now.Add(-SourceLimiterCleanup))
		}
	}
}

// drain moves up to BatchFlushSize pending events into batch
func (el *EventLog) drain(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()
	for el.pending > 0 && len(batch) < BatchFlushSize {
		batch = append(batch, el.ring[el.start])
		el.ring[el.start] = Event{}
		el.start = (el.start + 1) % EventBufferSize
		el.pending--
	}
	return batch
}

func (el *EventLog) forgetIdleSources(cutoff time.Time) {
	el.mu.Lock()
	defer el.mu.Unlock()
	for id, s := range el.sources {
		if s.seen.Before(cutoff) {
			delete(el.sources, id)
		}
	}
}

// write appends batch as newline-delimited JSON
func (el *EventLog) write(batch []Event) {
	if el.out == nil || len(batch) == 0 {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.out.Write(data)
		el.out.WriteByte('\n')
	}
	if err := el.out.Flush(); err != nil {
		log.Printf("⚠️ Event log write: %v", err)
	}
}

// Stats returns the current counters
func (el *EventLog) Stats() EventLogStats {
	el.mu.Lock()
	pending := el.pending
	el.mu.Unlock()
	return EventLogStats{
		Total:   el.total.Load(),
		Dropped: el.dropped.Load(),
		Pending: pending,
		Running: el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return el.dropped.Load()
}

// GetTotalCount returns the number of accepted events
func (el *EventLog) GetTotalCount() uint64 {
	return el.total.Load()
}

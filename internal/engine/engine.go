package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"scrapwatch/internal/config"
	"scrapwatch/internal/model"
	"scrapwatch/internal/observability"
	"scrapwatch/internal/storage"
)

// Sink receives the snapshot computed after each ingest. The broadcast hub
// implements it; tests substitute a capture.
type Sink interface {
	Publish(model.Snapshot)
}

// Engine maintains the per-key trailing windows. Each key owns its mutex so
// ingests for different keys never block each other; the key index itself is
// guarded separately.
type Engine struct {
	logger  *slog.Logger
	sink    Sink
	store   storage.Store
	metrics *observability.Metrics
	window  time.Duration

	now func() time.Time

	mu   sync.RWMutex
	keys map[model.Key]*keyState
}

type keyState struct {
	mu  sync.Mutex
	win *Window
}

func NewEngine(cfg *config.Config, logger *slog.Logger, sink Sink, metrics *observability.Metrics, store storage.Store) *Engine {
	window := 60 * time.Second
	if cfg != nil && cfg.WindowSeconds > 0 {
		window = time.Duration(cfg.WindowSeconds) * time.Second
	}
	return &Engine{
		logger:  logger,
		sink:    sink,
		store:   store,
		metrics: metrics,
		window:  window,
		now:     time.Now,
		keys:    make(map[model.Key]*keyState),
	}
}

// Start drains the event channel until ctx is done.
func (e *Engine) Start(ctx context.Context, in <-chan model.Event) {
	go func() {
		for {
			select {
			case ev := <-in:
				e.Ingest(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Ingest appends the event's sample, evicts expired samples for that key and
// publishes the key's fresh snapshot. Eviction runs after the append so a
// reading whose timestamp is already past the horizon is discarded on the
// spot and never counted. Publication happens while the key lock is held so
// snapshots reach the sink in ingest-completion order per key; the store
// write goes out after unlock so a slow store never stalls the key.
func (e *Engine) Ingest(ev model.Event) model.Snapshot {
	key := ev.Key()
	ks := e.state(key)

	ks.mu.Lock()
	now := e.now().UTC()
	ks.win.Add(Sample{Value: ev.Value, Timestamp: ev.Timestamp})
	ks.win.Evict(now.Add(-e.window))
	snap := e.snapshotLocked(key, ks, now)
	e.metrics.EventIngested()
	if e.sink != nil {
		e.sink.Publish(snap)
		e.metrics.SnapshotPublished()
	}
	ks.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveSnapshot(context.Background(), snap); err != nil && e.logger != nil {
			e.logger.Warn("snapshot store write failed", "err", err)
		}
	}
	return snap
}

// Snapshot evicts expired samples for key and returns the current aggregate.
// Unknown keys yield the zero snapshot.
func (e *Engine) Snapshot(key model.Key) model.Snapshot {
	e.mu.RLock()
	ks := e.keys[key]
	e.mu.RUnlock()

	now := e.now().UTC()
	if ks == nil {
		return model.Snapshot{MachineID: key.MachineID, ScrapIndex: key.ScrapIndex, Timestamp: now}
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.win.Evict(now.Add(-e.window))
	return e.snapshotLocked(key, ks, now)
}

// AllKeys returns the known key set, ordered by machine then index.
func (e *Engine) AllKeys() []model.Key {
	e.mu.RLock()
	out := make([]model.Key, 0, len(e.keys))
	for k := range e.keys {
		out = append(out, k)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].MachineID != out[j].MachineID {
			return out[i].MachineID < out[j].MachineID
		}
		return out[i].ScrapIndex < out[j].ScrapIndex
	})
	return out
}

func (e *Engine) KeyCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.keys)
}

// StartSweeper periodically evicts expired samples across all keys so idle
// keys release memory between events. It never publishes; publication stays
// ingest-driven.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (e *Engine) sweep() {
	cutoff := e.now().UTC().Add(-e.window)
	e.mu.RLock()
	states := make([]*keyState, 0, len(e.keys))
	for _, ks := range e.keys {
		states = append(states, ks)
	}
	e.mu.RUnlock()
	for _, ks := range states {
		ks.mu.Lock()
		ks.win.Evict(cutoff)
		ks.mu.Unlock()
	}
}

func (e *Engine) state(key model.Key) *keyState {
	e.mu.RLock()
	ks := e.keys[key]
	e.mu.RUnlock()
	if ks != nil {
		return ks
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ks = e.keys[key]; ks != nil {
		return ks
	}
	ks = &keyState{win: NewWindow()}
	e.keys[key] = ks
	e.metrics.SetKnownKeys(len(e.keys))
	return ks
}

func (e *Engine) snapshotLocked(key model.Key, ks *keyState, now time.Time) model.Snapshot {
	sum := ks.win.Sum()
	count := ks.win.Count()
	avg := 0.0
	if count > 0 {
		avg = sum / float64(count)
	}
	return model.Snapshot{
		MachineID:  key.MachineID,
		ScrapIndex: key.ScrapIndex,
		Sum:        sum,
		Avg:        avg,
		Count:      count,
		Timestamp:  now,
	}
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Storage keys and default capacities of the two history logs
const (
	PredictionKey = "prediction_history"
	ScanKey       = "scan_history"

	DefaultPredictionCapacity = 20
	DefaultScanCapacity       = 30
)

// Log is a bounded, most-recent-first list of history entries persisted under
// one key. The in-memory list is authoritative; storage failures are logged.
type Log[I, R any] struct {
	store    interfaces.KVStore
	key      string
	capacity int
	now      func() time.Time

	mutex   sync.Mutex
	entries []*model.HistoryEntry[I, R]
	version uint64

	saveMutex sync.Mutex
	saved     uint64
}

// PredictionLog is the history of crop predictions
type PredictionLog = Log[model.PredictionParams, model.PredictionResult]

// ScanLog is the history of leaf scans
type ScanLog = Log[model.ScanInput, model.LeafAnalysis]

// Option is a functional option for Log
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for entry creation times
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates an empty log. Call Load to restore persisted entries.
func New[I, R any](store interfaces.KVStore, key string, capacity int, opts ...Option) *Log[I, R] {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if capacity < 1 {
		capacity = 1
	}

	return &Log[I, R]{
		store:    store,
		key:      key,
		capacity: capacity,
		now:      o.now,
	}
}

// NewPredictionLog creates the prediction history log
func NewPredictionLog(store interfaces.KVStore, capacity int, opts ...Option) *PredictionLog {
	return New[model.PredictionParams, model.PredictionResult](store, PredictionKey, capacity, opts...)
}

// NewScanLog creates the scan history log
func NewScanLog(store interfaces.KVStore, capacity int, opts ...Option) *ScanLog {
	return New[model.ScanInput, model.LeafAnalysis](store, ScanKey, capacity, opts...)
}

// decodeEntries parses a persisted log. Any malformed input is a decode error.
func decodeEntries[I, R any](data string) ([]*model.HistoryEntry[I, R], error) {
	if data == "" {
		return nil, nil
	}

	var entries []*model.HistoryEntry[I, R]
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, goerr.Wrap(err, "failed to decode history", goerr.T(model.TagDecode))
	}

	valid := entries[:0]
	for _, entry := range entries {
		if entry == nil || entry.ID == "" {
			return nil, goerr.New("history entry without id", goerr.T(model.TagDecode))
		}
		valid = append(valid, entry)
	}
	return valid, nil
}

// Load restores persisted entries. A missing, unreadable or malformed value
// yields an empty log.
func (x *Log[I, R]) Load(ctx context.Context) {
	logger := logging.From(ctx).With("key", x.key)

	var entries []*model.HistoryEntry[I, R]
	data, err := x.store.Get(ctx, x.key)
	switch {
	case errors.Is(err, interfaces.ErrKeyNotFound):
	case err != nil:
		logger.Warn("failed to read history, starting empty", logging.ErrAttr(err))
	default:
		entries, err = decodeEntries[I, R](data)
		if err != nil {
			logger.Warn("discarding malformed history", logging.ErrAttr(err))
			entries = nil
		}
	}

	if len(entries) > x.capacity {
		entries = entries[:x.capacity]
	}

	x.mutex.Lock()
	x.entries = entries
	x.version++
	x.mutex.Unlock()
}

// Append records a new entry at the front, evicting from the tail beyond capacity
func (x *Log[I, R]) Append(ctx context.Context, input I, result R) model.HistoryEntry[I, R] {
	entry := &model.HistoryEntry[I, R]{
		ID:        model.NewEntryID(),
		CreatedAt: x.now(),
		Input:     input,
		Result:    result,
	}

	x.mutex.Lock()
	entries := make([]*model.HistoryEntry[I, R], 0, min(len(x.entries)+1, x.capacity))
	entries = append(entries, entry)
	for _, e := range x.entries {
		if len(entries) >= x.capacity {
			break
		}
		entries = append(entries, e)
	}
	x.entries = entries
	x.mutex.Unlock()

	x.persist(ctx)
	return *entry
}

// Attach updates the artifacts of entry id. It returns false without any change
// if the entry was evicted or cleared.
func (x *Log[I, R]) Attach(ctx context.Context, id model.EntryID, update func(*model.Artifacts)) bool {
	x.mutex.Lock()
	var target *model.HistoryEntry[I, R]
	for _, e := range x.entries {
		if e.ID == id {
			target = e
			break
		}
	}
	if target == nil {
		x.mutex.Unlock()
		logging.From(ctx).Debug("discard artifact for missing entry", "key", x.key, "id", id)
		return false
	}
	update(&target.Artifacts)
	x.mutex.Unlock()

	x.persist(ctx)
	return true
}

// Clear empties the log and removes the persisted value. The remove is skipped
// if a newer list was already saved.
func (x *Log[I, R]) Clear(ctx context.Context) {
	x.mutex.Lock()
	x.entries = nil
	x.version++
	v := x.version
	x.mutex.Unlock()

	x.saveMutex.Lock()
	defer x.saveMutex.Unlock()
	if v < x.saved {
		return
	}
	if err := x.store.Remove(ctx, x.key); err != nil {
		logging.From(ctx).Warn("failed to remove history", "key", x.key, logging.ErrAttr(err))
	}
	x.saved = v
}

// Entries returns copies of all entries, most recent first
func (x *Log[I, R]) Entries() []model.HistoryEntry[I, R] {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	out := make([]model.HistoryEntry[I, R], len(x.entries))
	for i, e := range x.entries {
		out[i] = *e
	}
	return out
}

// Get returns a copy of entry id
func (x *Log[I, R]) Get(id model.EntryID) (model.HistoryEntry[I, R], bool) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	for _, e := range x.entries {
		if e.ID == id {
			return *e, true
		}
	}
	return model.HistoryEntry[I, R]{}, false
}

// Len returns the number of entries
func (x *Log[I, R]) Len() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return len(x.entries)
}

// Capacity returns the maximum number of entries
func (x *Log[I, R]) Capacity() int {
	return x.capacity
}

// persist saves the current list. Saves run in version order and a save older
// than the last completed one is skipped.
func (x *Log[I, R]) persist(ctx context.Context) {
	x.mutex.Lock()
	x.version++
	v := x.version
	data, err := json.Marshal(x.entries)
	x.mutex.Unlock()

	if err != nil {
		logging.From(ctx).Warn("failed to encode history", "key", x.key, logging.ErrAttr(err))
		return
	}

	x.saveMutex.Lock()
	defer x.saveMutex.Unlock()
	if v < x.saved {
		return
	}
	if err := x.store.Set(ctx, x.key, string(data)); err != nil {
		logging.From(ctx).Warn("failed to save history", "key", x.key, logging.ErrAttr(err))
		return
	}
	x.saved = v
}

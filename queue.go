package tidal

import (
	"container/list"
	"encoding/json"
	"errors"
	"sync"

	"github.com/Tap30/tidal-go/adapters"
)

const queueStorageKey = "tidal:queue"

// EventQueue is a bounded, persisted, thread-safe FIFO of pending events.
// Every mutation is mirrored to the storage adapter before the lock is
// released; storage failures are logged and the in-memory queue stays
// authoritative.
type EventQueue struct {
	mu      sync.Mutex
	list    *list.List
	maxSize int
	storage StorageAdapter
	logger  LoggerAdapter
	onEvict func(count int)
}

// NewEventQueue creates an empty queue holding at most maxSize events.
func NewEventQueue(maxSize int, storage StorageAdapter, logger LoggerAdapter) *EventQueue {
	if maxSize < 1 {
		maxSize = 1
	}
	if storage == nil {
		storage = adapters.NewNoOpStorageAdapter()
	}
	if logger == nil {
		logger = adapters.NewNoOpLoggerAdapter()
	}
	return &EventQueue{
		list:    list.New(),
		maxSize: maxSize,
		storage: storage,
		logger:  logger,
	}
}

// OnEvict registers fn to be called, outside the lock, with the number of
// events dropped whenever the bound forces an eviction.
// Must be called before the queue is shared.
func (q *EventQueue) OnEvict(fn func(count int)) {
	q.onEvict = fn
}

// Restore replaces the queue contents with the persisted copy and returns
// the number of events loaded. Unreadable or corrupt data is discarded.
func (q *EventQueue) Restore() int {
	data, err := q.storage.Get(queueStorageKey)
	if err != nil {
		if !errors.Is(err, adapters.ErrKeyNotFound) {
			q.logger.Warn("Failed to load persisted queue: %v", err)
		}
		return 0
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		q.logger.Warn("Discarding corrupt persisted queue: %v", err)
		if err := q.storage.Delete(queueStorageKey); err != nil {
			q.logger.Warn("Failed to delete corrupt queue: %v", err)
		}
		return 0
	}

	q.mu.Lock()
	q.list.Init()
	evicted := 0
	if len(events) > q.maxSize {
		evicted = len(events) - q.maxSize
		events = events[evicted:]
	}
	for _, event := range events {
		q.list.PushBack(event)
	}
	if evicted > 0 {
		q.persistLocked()
	}
	q.mu.Unlock()

	q.reportEviction(evicted)
	q.logger.Debug("Restored %d persisted events", len(events))
	return len(events)
}

// Enqueue appends event, evicting the oldest entries first if the queue is
// full, and returns the number of evicted events. It never blocks on
// delivery.
func (q *EventQueue) Enqueue(event Event) int {
	q.mu.Lock()
	evicted := 0
	for q.list.Len() >= q.maxSize {
		q.list.Remove(q.list.Front())
		evicted++
	}
	q.list.PushBack(event)
	q.persistLocked()
	q.mu.Unlock()

	q.reportEviction(evicted)
	return evicted
}

// PeekBatch returns a copy of the first min(n, Size()) events without
// removing them.
func (q *EventQueue) PeekBatch(n int) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > q.list.Len() {
		n = q.list.Len()
	}
	if n <= 0 {
		return nil
	}
	batch := make([]Event, 0, n)
	for e := q.list.Front(); e != nil && len(batch) < n; e = e.Next() {
		batch = append(batch, e.Value.(Event))
	}
	return batch
}

// Dequeue removes the events of a delivered batch previously returned by
// PeekBatch and returns how many were removed. Events are matched by
// message id, so entries evicted while the batch was in flight are simply
// skipped and newer events are never removed in their place.
func (q *EventQueue) Dequeue(batch []Event) int {
	if len(batch) == 0 {
		return 0
	}
	pending := make(map[string]struct{}, len(batch))
	for _, event := range batch {
		pending[event.MessageID] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for e := q.list.Front(); e != nil && len(pending) > 0; {
		next := e.Next()
		id := e.Value.(Event).MessageID
		if _, ok := pending[id]; ok {
			q.list.Remove(e)
			delete(pending, id)
			removed++
		}
		e = next
	}
	if removed > 0 {
		q.persistLocked()
	}
	return removed
}

// Size returns the number of queued events.
func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}

// Clear removes all events and deletes the persisted copy.
func (q *EventQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.list.Init()
	if err := q.storage.Delete(queueStorageKey); err != nil {
		q.logger.Warn("Failed to delete persisted queue: %v", err)
	}
}

// ToSlice returns all queued events in delivery order.
func (q *EventQueue) ToSlice() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := make([]Event, 0, q.list.Len())
	for e := q.list.Front(); e != nil; e = e.Next() {
		events = append(events, e.Value.(Event))
	}
	return events
}

// persistLocked mirrors the queue to storage. Caller holds q.mu.
func (q *EventQueue) persistLocked() {
	if q.list.Len() == 0 {
		if err := q.storage.Delete(queueStorageKey); err != nil {
			q.logger.Warn("Failed to delete persisted queue: %v", err)
		}
		return
	}

	events := make([]Event, 0, q.list.Len())
	for e := q.list.Front(); e != nil; e = e.Next() {
		events = append(events, e.Value.(Event))
	}
	data, err := json.Marshal(events)
	if err != nil {
		q.logger.Error("Failed to encode queue: %v", err)
		return
	}
	if err := q.storage.Set(queueStorageKey, data); err != nil {
		q.logger.Warn("Failed to persist queue: %v", err)
	}
}

func (q *EventQueue) reportEviction(count int) {
	if count == 0 {
		return
	}
	q.logger.Warn("Queue full, evicted %d oldest events", count)
	if q.onEvict != nil {
		q.onEvict(count)
	}
}

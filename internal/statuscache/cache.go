package statuscache

import (
	"context"
	"sync"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

// DefaultEventBuffer is the size of the fan-out queue between writers and the
// dispatch goroutine.
const DefaultEventBuffer = 256

// Event is emitted after every successful Update and Remove. A nil Report
// signals that the host's snapshot was evicted.
type Event struct {
	HostID string
	Report *domain.StatusReport
}

// Subscriber receives events on the dispatch goroutine. Implementations must
// not block; slow consumers must buffer on their own side.
type Subscriber func(Event)

// Cache is the in-memory mapping from host id to its last-known status
// snapshot. Writes are last-write-wins per key and keys never contend with
// each other. Snapshots are replaced wholesale, never merged, and the cache
// itself never touches I/O.
type Cache struct {
	snapshots sync.Map // host id -> *domain.StatusReport
	logger    logger.Logger

	mu          sync.RWMutex
	subscribers []Subscriber

	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a cache with the given fan-out buffer (0 means
// DefaultEventBuffer).
func New(log logger.Logger, buffer int) *Cache {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Cache{
		logger: log,
		events: make(chan Event, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Subscribe registers an observer for snapshot updates. Subscribers must be
// registered before Start.
func (c *Cache) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Update replaces the snapshot for hostID and queues a notification for the
// dispatch goroutine. The writer never blocks: when the queue is full the
// oldest pending event is dropped in favor of the new one, since only the
// latest snapshot per host matters.
func (c *Cache) Update(hostID string, report *domain.StatusReport) {
	c.snapshots.Store(hostID, report)
	c.enqueue(Event{HostID: hostID, Report: report})
}

func (c *Cache) enqueue(ev Event) {
	select {
	case c.events <- ev:
		return
	default:
	}

	// Queue full: shed the oldest event, then try once more.
	select {
	case <-c.events:
	default:
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("status event dropped, fan-out queue full",
			logger.String("host_id", ev.HostID))
	}
}

// Get returns the cached snapshot for hostID, if any.
func (c *Cache) Get(hostID string) (*domain.StatusReport, bool) {
	v, ok := c.snapshots.Load(hostID)
	if !ok {
		return nil, false
	}
	return v.(*domain.StatusReport), true
}

// All returns a point-in-time copy of the cache. The enumeration is not
// atomic across keys; each entry is the snapshot visible at the moment of
// the range step.
func (c *Cache) All() map[string]*domain.StatusReport {
	out := make(map[string]*domain.StatusReport)
	c.snapshots.Range(func(k, v interface{}) bool {
		out[k.(string)] = v.(*domain.StatusReport)
		return true
	})
	return out
}

// Remove evicts the snapshot for hostID and notifies subscribers with a nil
// report, so mirrors drop their copy too. Removing an absent key is a no-op.
func (c *Cache) Remove(hostID string) {
	if _, loaded := c.snapshots.LoadAndDelete(hostID); loaded {
		c.enqueue(Event{HostID: hostID})
	}
}

// Count returns the number of cached snapshots.
func (c *Cache) Count() int {
	n := 0
	c.snapshots.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Start launches the dispatch goroutine that fans events out to subscribers.
func (c *Cache) Start(ctx context.Context) error {
	go func() {
		defer close(c.doneCh)
		for {
			select {
			case ev := <-c.events:
				c.dispatch(ev)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop ends the dispatch goroutine. Update/Get stay usable afterwards;
// further events are simply never delivered.
func (c *Cache) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Cache) dispatch(ev Event) {
	c.mu.RLock()
	subs := c.subscribers
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

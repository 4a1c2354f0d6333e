package concurrent

import "sync"

// Counter tracks in-flight work items by key, typically orders awaiting
// confirmation. Track registers a key, Resolve removes it once its outcome
// is known, whichever way it went.
type Counter struct {
	pending map[string]struct{}
	lock    *sync.Mutex
}

// NewCounter creates a new counter.
func NewCounter() *Counter {
	return &Counter{
		pending: make(map[string]struct{}),
		lock:    new(sync.Mutex),
	}
}

// Track registers the key as in flight.
func (c *Counter) Track(key string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pending[key] = struct{}{}
}

// Resolve removes the key and reports whether it was tracked.
func (c *Counter) Resolve(key string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, ok := c.pending[key]
	delete(c.pending, key)
	return ok
}

// Get returns the number of keys still in flight.
func (c *Counter) Get() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.pending)
}

// Values returns the keys still in flight.
func (c *Counter) Values() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make([]string, 0, len(c.pending))
	for key := range c.pending {
		out = append(out, key)
	}
	return out
}

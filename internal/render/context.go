package render

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ibr-renderer/internal/logger"
)

// Context is the registry of live method instances and the output cameras
// attached to them. Instances are added and removed explicitly; removal
// disposes.
type Context struct {
	mu        sync.Mutex
	Pool      *BufferPool
	instances map[uuid.UUID]*Instance
	attached  map[uuid.UUID]map[string]bool
}

// NewContext creates a registry whose instances share pool.
func NewContext(pool *BufferPool) *Context {
	return &Context{
		Pool:      pool,
		instances: make(map[uuid.UUID]*Instance),
		attached:  make(map[uuid.UUID]map[string]bool),
	}
}

// Add creates an instance of the named method and registers it.
func (c *Context) Add(method string, opts Options) (*Instance, error) {
	in, err := NewInstance(method, c.Pool, opts)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.instances[in.ID] = in
	c.mu.Unlock()
	logger.L().Debug("render: instance added", "method", method, "instance", in.ID)
	return in, nil
}

// Get returns a registered instance.
func (c *Context) Get(id uuid.UUID) (*Instance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in, ok := c.instances[id]
	return in, ok
}

// Remove disposes and unregisters an instance.
func (c *Context) Remove(id uuid.UUID) {
	c.mu.Lock()
	in, ok := c.instances[id]
	delete(c.instances, id)
	delete(c.attached, id)
	c.mu.Unlock()
	if ok {
		in.Dispose()
	}
}

// Len returns the number of registered instances.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}

// AttachCamera records that output camera viewID renders through id.
func (c *Context) AttachCamera(id uuid.UUID, viewID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.instances[id]; !ok {
		return fmt.Errorf("render: attach %s: unknown instance %s", viewID, id)
	}
	views := c.attached[id]
	if views == nil {
		views = make(map[string]bool)
		c.attached[id] = views
	}
	views[viewID] = true
	return nil
}

// DetachCamera removes an output camera and drops the per-view state the
// instance kept for it.
func (c *Context) DetachCamera(id uuid.UUID, viewID string) {
	c.mu.Lock()
	in, ok := c.instances[id]
	if views := c.attached[id]; views != nil {
		delete(views, viewID)
	}
	c.mu.Unlock()
	if ok {
		in.ForgetView(viewID)
	}
}

// Attached reports whether viewID is attached to id.
func (c *Context) Attached(id uuid.UUID, viewID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached[id][viewID]
}

// Close disposes every instance.
func (c *Context) Close() {
	c.mu.Lock()
	all := c.instances
	c.instances = make(map[uuid.UUID]*Instance)
	c.attached = make(map[uuid.UUID]map[string]bool)
	c.mu.Unlock()
	for _, in := range all {
		in.Dispose()
	}
}

package render

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ibr-renderer/internal/logger"
)

// Sizes used for buffer accounting.
const (
	vertexBytes      = 8 * (3 + 3 + 2) // position, normal, uv
	indexBytes       = 8
	weightSetBytes   = 4*(8+16+8+8) + 8 // ulr.WeightSet
	paramsBlockBytes = 4 * 12           // camera.Params
	texelBytes       = 4
	depthTexelBytes  = 4
)

// BufferPool accounts buffer allocations against a byte budget. Every
// allocation belongs to an owner and is released with it. Safe for
// concurrent use; several instances may share one pool.
type BufferPool struct {
	mu     sync.Mutex
	budget int64
	used   int64
	owners map[uuid.UUID]map[string]int64
}

// NewBufferPool creates a pool with budget bytes. A non-positive budget is
// unlimited.
func NewBufferPool(budget int64) *BufferPool {
	return &BufferPool{budget: budget, owners: make(map[uuid.UUID]map[string]int64)}
}

// Alloc reserves n bytes for owner under name, replacing any earlier buffer
// with that name. It fails with ErrResourceExhausted when the budget would
// be exceeded.
func (p *BufferPool) Alloc(owner uuid.UUID, name string, n int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	bufs := p.owners[owner]
	prev := bufs[name]
	if p.budget > 0 && p.used-prev+n > p.budget {
		return fmt.Errorf("%w: %s needs %d bytes, %d of %d in use", ErrResourceExhausted, name, n, p.used, p.budget)
	}
	if bufs == nil {
		bufs = make(map[string]int64)
		p.owners[owner] = bufs
	}
	bufs[name] = n
	p.used += n - prev
	return nil
}

// Free releases one named buffer of owner.
func (p *BufferPool) Free(owner uuid.UUID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bufs := p.owners[owner]; bufs != nil {
		p.used -= bufs[name]
		delete(bufs, name)
	}
}

// Release frees every buffer of owner and returns the bytes released.
func (p *BufferPool) Release(owner uuid.UUID) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, b := range p.owners[owner] {
		n += b
	}
	p.used -= n
	delete(p.owners, owner)
	if n > 0 {
		logger.L().Debug("render: buffers released", "owner", owner, "bytes", n)
	}
	return n
}

// Used returns the bytes currently allocated.
func (p *BufferPool) Used() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Owned returns the bytes allocated by owner.
func (p *BufferPool) Owned(owner uuid.UUID) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, b := range p.owners[owner] {
		n += b
	}
	return n
}

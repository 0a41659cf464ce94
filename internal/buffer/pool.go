package buffer

import "sync"

// Pool is a bounded set of fixed-capacity buffers of a single size,
// grounded on the teacher's BytePool bucket design but scoped to one size
// class per instance rather than a map of sync.Pool. Buffers are cleared
// on Return, never on Get, and a full pool drops the returned buffer
// rather than growing past maxSize.
type Pool struct {
	mu      sync.Mutex
	size    int
	maxPool int
	free    [][]byte
}

// NewPool constructs a Pool of buffers of the given size, retaining at
// most maxPool idle buffers.
func NewPool(size, maxPool int) *Pool {
	return &Pool{size: size, maxPool: maxPool}
}

// Size reports the fixed buffer size this pool serves.
func (p *Pool) Size() int { return p.size }

// Get returns a ready-to-write buffer of this pool's size, allocating a
// fresh one if the pool is currently empty.
func (p *Pool) Get() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return make([]byte, p.size)
	}
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	return buf
}

// Return clears buf and pushes it back onto the pool, unless the pool is
// already at maxPool, in which case buf is dropped for the GC to collect.
func (p *Pool) Return(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	for i := range buf {
		buf[i] = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) >= p.maxPool {
		return
	}
	p.free = append(p.free, buf)
}

// Len reports the number of idle buffers currently held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

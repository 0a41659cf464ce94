package buffer

import "sort"

// defaultMaxPoolPerClass bounds how many idle buffers each size class
// retains, mirroring the teacher's fixed bucket list but scaled down
// since each class here is a real Pool rather than a sync.Pool.
const defaultMaxPoolPerClass = 32

// MultiSizePool maps a size class to a Pool. Size classes are powers of
// two; a request for size s is served by the smallest class >= s, and a
// class is never asked to serve a request larger than itself.
type MultiSizePool struct {
	classes []int
	pools   map[int]*Pool
}

// NewMultiSizePool builds the size-class ladder spanning [minSize, maxSize],
// rounding minSize up and maxSize down to powers of two.
func NewMultiSizePool(minSize, maxSize int64) *MultiSizePool {
	if minSize < 1 {
		minSize = 1
	}
	var classes []int
	for c := nextPowerOfTwo(minSize); c <= maxSize; c *= 2 {
		classes = append(classes, int(c))
	}
	if len(classes) == 0 {
		classes = []int{int(nextPowerOfTwo(maxSize))}
	}
	sort.Ints(classes)

	pools := make(map[int]*Pool, len(classes))
	for _, c := range classes {
		pools[c] = NewPool(c, defaultMaxPoolPerClass)
	}
	return &MultiSizePool{classes: classes, pools: pools}
}

func nextPowerOfTwo(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p < n {
		p *= 2
	}
	return p
}

// classFor returns the smallest configured class >= size, or 0 if size
// exceeds every class.
func (m *MultiSizePool) classFor(size int) int {
	for _, c := range m.classes {
		if c >= size {
			return c
		}
	}
	return 0
}

// Get returns a buffer sized to the smallest class >= size, sliced down
// to exactly size bytes. It never returns a buffer from a smaller class.
func (m *MultiSizePool) Get(size int) []byte {
	class := m.classFor(size)
	if class == 0 {
		return make([]byte, size)
	}
	buf := m.pools[class].Get()
	return buf[:size]
}

// Return routes buf back to the pool matching originalSize's class.
func (m *MultiSizePool) Return(buf []byte, originalSize int) {
	class := m.classFor(originalSize)
	pool, ok := m.pools[class]
	if !ok {
		return
	}
	pool.Return(buf[:cap(buf)])
}

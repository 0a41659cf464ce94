package buffer

import (
	"io"

	"github.com/ferrocp/ferrocp/internal/device"
)

// MinFileSizeForPreRead is the default threshold (§4.2, §4.3.2) below
// which pre-read is never engaged.
const MinFileSizeForPreRead = 10 * 1024 * 1024

// defaultPreReadSizes are the device-keyed defaults named in §3.
var defaultPreReadSizes = map[device.Kind]int{
	device.SSD:     512 * 1024,
	device.HDD:     64 * 1024,
	device.Network: 8 * 1024,
	device.RamDisk: 1024 * 1024,
}

// Stats reports the PreReadBuffer's hit/miss counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// HitRatio returns hits / (hits + misses), or 0 if nothing has been
// consumed yet.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// PreReadBuffer is a linear ring bounded by a device-specific size that
// stages bytes ahead of the caller's read cursor.
type PreReadBuffer struct {
	size  int
	staged []byte
	pos   int // offset of the next unconsumed byte within staged
	stats Stats
}

// NewPreReadBuffer constructs a PreReadBuffer sized from kind's default.
func NewPreReadBuffer(kind device.Kind) *PreReadBuffer {
	size, ok := defaultPreReadSizes[kind]
	if !ok {
		size = defaultPreReadSizes[device.HDD]
	}
	return &PreReadBuffer{size: size}
}

// NewPreReadBufferSize constructs a PreReadBuffer with an explicit size,
// corresponding to an explicit PreReadStrategy{SSD,HDD,Network,RamDisk}
// override from configuration.
func NewPreReadBufferSize(size int) *PreReadBuffer {
	return &PreReadBuffer{size: size}
}

// Stats returns the current hit/miss counters.
func (p *PreReadBuffer) Stats() Stats { return p.stats }

// Consume returns up to n bytes already staged. If the staged region is
// fully drained it counts as a miss and returns nothing; the caller must
// Refill before the next Consume succeeds.
func (p *PreReadBuffer) Consume(n int) []byte {
	avail := len(p.staged) - p.pos
	if avail <= 0 {
		p.stats.Misses++
		return nil
	}
	p.stats.Hits++
	if n > avail {
		n = avail
	}
	out := p.staged[p.pos : p.pos+n]
	p.pos += n
	return out
}

// Refill triggers a single read of up to the configured pre_read_size
// bytes from reader, discarding any unconsumed remainder of the previous
// staging buffer.
func (p *PreReadBuffer) Refill(reader io.Reader) (int, error) {
	buf := make([]byte, p.size)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}
	p.staged = buf[:n]
	p.pos = 0
	if n == 0 && err != nil {
		return 0, err
	}
	return n, nil
}

// Remaining reports how many staged bytes have not yet been consumed.
func (p *PreReadBuffer) Remaining() int {
	return len(p.staged) - p.pos
}

// Size reports the configured pre-read chunk size.
func (p *PreReadBuffer) Size() int { return p.size }

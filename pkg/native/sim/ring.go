package sim

import (
	"encoding/binary"
	"sync/atomic"
)

// ring is a lock-free single-producer single-consumer byte ring buffer.
// Positions grow monotonically and are masked into the power-of-two buffer.
type ring struct {
	data     []byte
	size     uint64
	mask     uint64
	readPos  atomic.Uint64
	writePos atomic.Uint64
	overruns atomic.Uint64
}

func newRing(capacity int) *ring {
	size := nextPowerOf2(uint64(capacity))
	return &ring{
		data: make([]byte, size),
		size: size,
		mask: size - 1,
	}
}

// available returns the number of readable bytes.
func (r *ring) available() uint64 {
	return r.writePos.Load() - r.readPos.Load()
}

// space returns the number of writable bytes.
func (r *ring) space() uint64 {
	return r.size - r.available()
}

// write copies all of p into the ring or nothing at all.
func (r *ring) write(p []byte) bool {
	n := uint64(len(p))
	writePos := r.writePos.Load()
	readPos := r.readPos.Load()
	if r.size-(writePos-readPos) < n {
		r.overruns.Add(1)
		return false
	}
	r.copyIn(writePos, p)
	r.writePos.Store(writePos + n)
	return true
}

// read fills p from the ring if enough bytes are available.
func (r *ring) read(p []byte) bool {
	if !r.peek(p) {
		return false
	}
	r.readPos.Add(uint64(len(p)))
	return true
}

// peek copies len(p) bytes without consuming them.
func (r *ring) peek(p []byte) bool {
	readPos := r.readPos.Load()
	writePos := r.writePos.Load()
	if writePos-readPos < uint64(len(p)) {
		return false
	}
	r.copyOut(readPos, p)
	return true
}

func (r *ring) copyIn(pos uint64, p []byte) {
	for len(p) > 0 {
		idx := pos & r.mask
		n := copy(r.data[idx:], p)
		p = p[n:]
		pos += uint64(n)
	}
}

func (r *ring) copyOut(pos uint64, p []byte) {
	for len(p) > 0 {
		idx := pos & r.mask
		n := copy(p, r.data[idx:])
		p = p[n:]
		pos += uint64(n)
	}
}

// readRecord consumes the next length-prefixed record. The body is returned
// in *buf, which grows as needed and is reused across calls.
func (r *ring) readRecord(buf *[]byte) ([]byte, bool) {
	var hdr [recordHeader]byte
	if !r.peek(hdr[:]) {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(hdr[:]))
	if uint64(n+recordHeader) > r.available() {
		return nil, false
	}
	if cap(*buf) < n+recordHeader {
		*buf = make([]byte, n+recordHeader)
	}
	b := (*buf)[:n+recordHeader]
	r.read(b)
	return b[recordHeader:], true
}

func nextPowerOf2(n uint64) uint64 {
	if n < 64 {
		return 64
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

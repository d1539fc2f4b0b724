// Package ring implements the single-producer/multi-consumer lock-free byte
// ring that decouples the loopback capture task from every sink renderer.
//
// The producer cursor W is a monotonically increasing count of bytes ever
// written. Each reader keeps its own cursor pos and computes availability
// as W-pos; a reader that falls more than the capacity behind loses the
// overwritten bytes and must resynchronize with CatchUp. The ring never
// blocks and never errors: a slow consumer loses data rather than stalling
// the producer, which is the deliberate trade-off for glitch-free capture.
package ring

import "sync/atomic"

// Buffer is a fixed-capacity byte ring. The zero value is not usable; use
// New.
type Buffer struct {
	buf  []byte
	cap  int64
	w    int64 // producer write cursor, monotonic, modified only by Write
}

// New allocates a ring of the given byte capacity. Capacity need not be a
// power of two, though one is recommended for cheap modulo.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer{
		buf: make([]byte, capacity),
		cap: int64(capacity),
	}
}

// Cap returns the ring's fixed byte capacity.
func (b *Buffer) Cap() int64 { return b.cap }

// W returns the current producer cursor. Safe to call from any goroutine.
func (b *Buffer) W() uint64 { return uint64(atomic.LoadInt64(&b.w)) }

// Write appends data to the ring, overwriting the oldest bytes if data is
// longer than the free space (there is none to be "free": the ring always
// accepts the full write and advances W, it just means laggards lose
// history). Write never blocks and never fails. Only the capture task may
// call Write.
func (b *Buffer) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	w := atomic.LoadInt64(&b.w)
	n := int64(len(data))

	// If the incoming chunk is itself larger than the ring, only the
	// trailing capacity worth of it can ever be read back; write just that
	// tail to avoid a wasted extra wrap.
	if n > b.cap {
		data = data[n-b.cap:]
		n = b.cap
	}

	pos := w % b.cap
	first := min(n, b.cap-pos)
	copy(b.buf[pos:pos+first], data[:first])
	if first < n {
		copy(b.buf[0:n-first], data[first:])
	}

	// Release: readers acquire-load w and will see the bytes just copied.
	atomic.StoreInt64(&b.w, w+n)
}

// Reader tracks one consumer's read cursor into a Buffer. A Reader is owned
// by exactly one renderer goroutine for its whole lifetime; only the
// Buffer's producer cursor is accessed concurrently (with atomics), so pos
// itself needs no synchronization.
type Reader struct {
	ring *Buffer
	pos  int64
}

// NewReader creates a reader positioned at the ring's live edge: it starts
// with no buffered history, matching the spec's "start at the live edge,
// not buffered history" lifecycle rule.
func (b *Buffer) NewReader() *Reader {
	return &Reader{ring: b, pos: int64(b.W())}
}

// Available returns the number of unread bytes, W-pos.
func (r *Reader) Available() int64 {
	w := atomic.LoadInt64(&r.ring.w)
	return w - r.pos
}

// IsLagging reports whether the reader has fallen more than the ring's
// capacity behind the producer, meaning some bytes it has not read were
// already overwritten.
func (r *Reader) IsLagging() bool {
	return r.Available() > r.ring.cap
}

// CatchUp snaps pos to the current W, discarding any backlog. Used on
// overrun and after a renderer resumes from a pause.
func (r *Reader) CatchUp() {
	r.pos = int64(r.ring.W())
}

// Read copies min(len(dst), Available()) bytes starting at pos into dst and
// advances pos by that amount. It returns the number of bytes copied. If
// the reader is lagging, Read first moves pos forward to W-Cap(), the
// oldest byte still in the ring, and reads from there; callers that want
// to drop the whole backlog instead call CatchUp before reading.
func (r *Reader) Read(dst []byte) int {
	w := atomic.LoadInt64(&r.ring.w)
	avail := w - r.pos
	if avail <= 0 {
		return 0
	}

	// A reader may be lagging by more than the ring capacity; only the
	// most recent Cap() bytes are actually still present in the backing
	// array, so clamp the logical read window to what physically exists.
	readable := avail
	if readable > r.ring.cap {
		r.pos = w - r.ring.cap
		readable = r.ring.cap
	}

	n := int64(len(dst))
	if n > readable {
		n = readable
	}
	if n == 0 {
		return 0
	}

	pos := r.pos % r.ring.cap
	first := min(n, r.ring.cap-pos)
	copy(dst[:first], r.ring.buf[pos:pos+first])
	if first < n {
		copy(dst[first:n], r.ring.buf[0:n-first])
	}

	r.pos += n
	return int(n)
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Package ring provides a byte ring buffer for bridging callback-driven
// audio drivers and the channel-based pipeline.
//
// Audio driver callbacks run on a realtime thread and must never block, so
// the buffer offers non-blocking variants for that side ([Buffer.TryWrite],
// [Buffer.TryRead]) alongside blocking variants for the pipeline side
// ([Buffer.Write], [Buffer.Read], [Buffer.WaitEmpty]) that provide
// backpressure against the playback rate.
package ring

import (
	"sync"
)

// Buffer is a fixed-capacity byte ring. All methods are safe for concurrent
// use.
type Buffer struct {
	data     []byte
	size     int
	readPos  int
	writePos int
	count    int
	mu       sync.Mutex
	hasData  *sync.Cond
	hasSpace *sync.Cond
	closed   bool
}

// New returns a Buffer holding up to size bytes.
func New(size int) *Buffer {
	b := &Buffer{
		data: make([]byte, size),
		size: size,
	}
	b.hasData = sync.NewCond(&b.mu)
	b.hasSpace = sync.NewCond(&b.mu)
	return b
}

// TryWrite writes as much of data as fits without blocking and returns the
// number of bytes written. Bytes that do not fit are discarded by the
// caller's choice. Safe to call from an audio driver callback.
func (b *Buffer) TryWrite(data []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	space := b.size - b.count
	n := len(data)
	if n > space {
		n = space
	}
	if n == 0 {
		return 0
	}
	b.copyIn(data[:n])
	b.hasData.Broadcast()
	return n
}

// Write writes all of data, blocking while the buffer is full. Returns the
// number of bytes written, which is less than len(data) only when the buffer
// is closed mid-write.
func (b *Buffer) Write(data []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	written := 0
	for written < len(data) && !b.closed {
		for b.count == b.size && !b.closed {
			b.hasSpace.Wait()
		}
		if b.closed {
			break
		}

		space := b.size - b.count
		n := len(data) - written
		if n > space {
			n = space
		}
		b.copyIn(data[written : written+n])
		written += n

		b.hasData.Broadcast()
	}
	return written
}

// Read fills buf completely, blocking while too few bytes are buffered.
// Returns the number of bytes read, which is less than len(buf) only when
// the buffer is closed and drained mid-read.
func (b *Buffer) Read(buf []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	read := 0
	for read < len(buf) {
		for b.count == 0 && !b.closed {
			b.hasData.Wait()
		}
		if b.count == 0 && b.closed {
			return read
		}
		n := len(buf) - read
		if n > b.count {
			n = b.count
		}
		b.copyOut(buf[read : read+n])
		read += n
		b.hasSpace.Broadcast()
	}
	return read
}

// TryRead reads up to len(buf) bytes without blocking and returns the number
// of bytes read. Safe to call from an audio driver callback; the caller
// fills the remainder of buf with silence when the return value is short.
func (b *Buffer) TryRead(buf []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(buf)
	if n > b.count {
		n = b.count
	}
	if n == 0 {
		return 0
	}
	b.copyOut(buf[:n])
	b.hasSpace.Broadcast()
	return n
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// WaitEmpty blocks until the buffer is empty or closed. Playback uses this
// to drain queued audio before releasing the duplex latch.
func (b *Buffer) WaitEmpty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.count > 0 && !b.closed {
		b.hasSpace.Wait()
	}
}

// Reset discards all buffered bytes and wakes blocked writers.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readPos = 0
	b.writePos = 0
	b.count = 0
	b.hasSpace.Broadcast()
}

// Close marks the buffer closed and wakes all blocked readers and writers.
// Subsequent writes are discarded; buffered bytes remain readable.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.hasData.Broadcast()
	b.hasSpace.Broadcast()
}

// copyIn copies data into the ring at writePos, handling wrap-around.
// Caller must hold mu and have verified that data fits.
func (b *Buffer) copyIn(data []byte) {
	n := len(data)
	first := b.size - b.writePos
	if first > n {
		first = n
	}
	copy(b.data[b.writePos:b.writePos+first], data[:first])
	if first < n {
		copy(b.data[0:n-first], data[first:])
	}
	b.writePos = (b.writePos + n) % b.size
	b.count += n
}

// copyOut copies bytes out of the ring at readPos, handling wrap-around.
// Caller must hold mu and have verified that enough bytes are buffered.
func (b *Buffer) copyOut(buf []byte) {
	n := len(buf)
	first := b.size - b.readPos
	if first > n {
		first = n
	}
	copy(buf[:first], b.data[b.readPos:b.readPos+first])
	if first < n {
		copy(buf[first:], b.data[0:n-first])
	}
	b.readPos = (b.readPos + n) % b.size
	b.count -= n
}

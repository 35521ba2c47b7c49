// Package ringbuffer provides a fixed-capacity single-producer,
// single-consumer sample FIFO.
package ringbuffer

import "sync/atomic"

// RingBuffer is a circular FIFO of float64 samples.
//
// One goroutine may write while another reads; the read and write positions
// are published atomically. Capacity never changes after construction: use
// Resized outside the audio path to grow a buffer.
type RingBuffer struct {
	buffer []float64
	reader atomic.Int64
	writer atomic.Int64
}

// New returns a ring buffer that can hold n samples.
func New(n int) *RingBuffer {
	if n < 0 {
		n = 0
	}

	// One slot stays free to tell full from empty.
	return &RingBuffer{buffer: make([]float64, n+1)}
}

// Size returns the capacity in samples.
func (r *RingBuffer) Size() int {
	return len(r.buffer) - 1
}

// ReadSpace returns the number of samples available to read.
func (r *RingBuffer) ReadSpace() int {
	w := int(r.writer.Load())
	rd := int(r.reader.Load())

	if w >= rd {
		return w - rd
	}

	return w + len(r.buffer) - rd
}

// WriteSpace returns the number of samples that can be written.
func (r *RingBuffer) WriteSpace() int {
	return r.Size() - r.ReadSpace()
}

// Write appends as much of src as fits and returns the count written.
func (r *RingBuffer) Write(src []float64) int {
	n := min(len(src), r.WriteSpace())
	w := int(r.writer.Load())

	first := min(n, len(r.buffer)-w)
	copy(r.buffer[w:w+first], src[:first])
	copy(r.buffer[:n-first], src[first:n])

	r.writer.Store(int64(r.advance(w, n)))

	return n
}

// WriteZeros appends up to n zero samples and returns the count written.
func (r *RingBuffer) WriteZeros(n int) int {
	n = min(n, r.WriteSpace())
	w := int(r.writer.Load())

	for i := 0; i < n; i++ {
		r.buffer[(w+i)%len(r.buffer)] = 0
	}

	r.writer.Store(int64(r.advance(w, n)))

	return n
}

// Peek copies up to len(dst) samples without consuming them.
func (r *RingBuffer) Peek(dst []float64) int {
	n := min(len(dst), r.ReadSpace())
	rd := int(r.reader.Load())

	first := min(n, len(r.buffer)-rd)
	copy(dst[:first], r.buffer[rd:rd+first])
	copy(dst[first:n], r.buffer[:n-first])

	return n
}

// Read copies up to len(dst) samples and consumes them.
func (r *RingBuffer) Read(dst []float64) int {
	n := r.Peek(dst)
	r.Skip(n)

	return n
}

// Skip discards up to n samples and returns the count discarded.
func (r *RingBuffer) Skip(n int) int {
	n = min(n, r.ReadSpace())
	rd := int(r.reader.Load())
	r.reader.Store(int64(r.advance(rd, n)))

	return n
}

// Reset discards all content. It must not race with Read or Write.
func (r *RingBuffer) Reset() {
	r.reader.Store(0)
	r.writer.Store(0)
}

// Resized returns a new buffer of capacity n holding as much of the
// unread content as fits. It allocates.
func (r *RingBuffer) Resized(n int) *RingBuffer {
	out := New(n)
	tmp := make([]float64, r.ReadSpace())
	r.Peek(tmp)
	out.Write(tmp)

	return out
}

func (r *RingBuffer) advance(pos, n int) int {
	pos += n
	if pos >= len(r.buffer) {
		pos -= len(r.buffer)
	}

	return pos
}

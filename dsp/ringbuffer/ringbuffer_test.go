package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadWrapsAround(t *testing.T) {
	r := New(5)
	require.Equal(t, 5, r.Size())
	require.Equal(t, 5, r.WriteSpace())

	assert.Equal(t, 4, r.Write([]float64{1, 2, 3, 4}))
	out := make([]float64, 3)
	assert.Equal(t, 3, r.Read(out))
	assert.Equal(t, []float64{1, 2, 3}, out)

	// Crosses the end of the backing slice.
	assert.Equal(t, 4, r.Write([]float64{5, 6, 7, 8}))
	assert.Equal(t, 5, r.ReadSpace())
	assert.Equal(t, 0, r.WriteSpace())

	all := make([]float64, 8)
	n := r.Read(all)
	assert.Equal(t, 5, n)
	assert.Equal(t, []float64{4, 5, 6, 7, 8}, all[:n])
}

func TestWriteIsBoundedBySpace(t *testing.T) {
	r := New(3)
	assert.Equal(t, 3, r.Write([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 0, r.Write([]float64{6}))
	assert.Equal(t, 0, r.WriteZeros(2))
}

func TestPeekDoesNotConsume(t *testing.T) {
	r := New(8)
	r.Write([]float64{1, 2, 3})

	out := make([]float64, 2)
	assert.Equal(t, 2, r.Peek(out))
	assert.Equal(t, []float64{1, 2}, out)
	assert.Equal(t, 3, r.ReadSpace())

	assert.Equal(t, 2, r.Skip(2))
	assert.Equal(t, 1, r.Peek(out))
	assert.Equal(t, 3.0, out[0])
}

func TestWriteZerosWraps(t *testing.T) {
	r := New(4)
	r.Write([]float64{9, 9, 9, 9})
	r.Skip(4)

	assert.Equal(t, 2, r.WriteZeros(2))
	r.Write([]float64{1, 2})

	dst := []float64{10, 10, 10, 10}
	assert.Equal(t, 4, r.Read(dst))
	assert.Equal(t, []float64{0, 0, 1, 2}, dst)
	assert.Equal(t, 0, r.ReadSpace())
}

func TestResetAndResized(t *testing.T) {
	r := New(4)
	r.Write([]float64{1, 2, 3})
	r.Skip(1)

	big := r.Resized(16)
	assert.Equal(t, 16, big.Size())
	assert.Equal(t, 2, big.ReadSpace())

	out := make([]float64, 2)
	big.Read(out)
	assert.Equal(t, []float64{2, 3}, out)

	r.Reset()
	assert.Equal(t, 0, r.ReadSpace())
	assert.Equal(t, 4, r.WriteSpace())
}

func TestReadWriteDoNotAllocate(t *testing.T) {
	r := New(1024)
	in := make([]float64, 300)
	out := make([]float64, 300)

	allocs := testing.AllocsPerRun(100, func() {
		r.Write(in)
		r.Read(out)
	})
	assert.Zero(t, allocs)
}

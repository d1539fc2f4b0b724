package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReader_NonLaggingReadsExactBytes(t *testing.T) {
	b := New(1024)
	r := b.NewReader()

	chunk1 := bytesOf(512, 0x01)
	b.Write(chunk1)
	require.EqualValues(t, len(chunk1), r.Available())

	out := make([]byte, len(chunk1))
	n := r.Read(out)
	require.Equal(t, len(chunk1), n)
	require.Equal(t, chunk1, out)
	require.EqualValues(t, 0, r.Available())
}

// TestOverrun_ReaderFallsBehindThenCatchesUp drives a capacity-1024 buffer
// through four 512-byte writes with a reader that never reads until after
// the third write, so it falls behind by more than the buffer can hold.
func TestOverrun_ReaderFallsBehindThenCatchesUp(t *testing.T) {
	b := New(1024)
	r := b.NewReader()

	chunk := func(tag byte) []byte { return bytesOf(512, tag) }

	b.Write(chunk(1))
	b.Write(chunk(2))
	b.Write(chunk(3))

	require.True(t, r.IsLagging(), "reader behind by 1536 bytes over a 1024 ring must be lagging")

	r.CatchUp()
	require.EqualValues(t, b.W(), uint64(r.pos))
	require.EqualValues(t, 0, r.Available())

	fourth := chunk(4)
	b.Write(fourth)
	out := make([]byte, len(fourth))
	n := r.Read(out)
	require.Equal(t, len(fourth), n)
	require.Equal(t, fourth, out)
	require.EqualValues(t, 0, r.Available())
}

func TestReader_WrapsAroundCapacity(t *testing.T) {
	b := New(16)
	r := b.NewReader()

	b.Write(bytesOf(10, 0xAA))
	out := make([]byte, 10)
	require.Equal(t, 10, r.Read(out))

	// This write wraps the backing array.
	b.Write(bytesOf(10, 0xBB))
	out2 := make([]byte, 10)
	require.Equal(t, 10, r.Read(out2))
	require.Equal(t, bytesOf(10, 0xBB), out2)
}

func TestWrite_NeverBlocksOnOverrunOfEntireCapacity(t *testing.T) {
	b := New(8)
	// Single write far larger than capacity: only the tail survives.
	big := bytesOf(100, 0xCC)
	b.Write(big)
	require.EqualValues(t, 100, b.W())

	r := &Reader{ring: b, pos: 0}
	require.True(t, r.IsLagging())
	r.CatchUp()
	require.EqualValues(t, 0, r.Available())
}

func bytesOf(n int, tag byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = tag
	}
	return out
}

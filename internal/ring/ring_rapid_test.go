package ring

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

// TestRapid_NonLaggingReaderSeesExactBytesInOrder checks that for any
// sequence of write/read operations on a ring of capacity C, a reader whose
// position is never more than C behind the write cursor reads exactly the
// bytes the producer wrote, in order.
func TestRapid_NonLaggingReaderSeesExactBytesInOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(16, 256).Draw(t, "capacity")
		b := New(capacity)
		r := b.NewReader()

		var written, read bytes.Buffer
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			// Keep each write small relative to capacity so the reader,
			// reading after every write, never falls behind by more than
			// the capacity.
			n := rapid.IntRange(1, capacity/4).Draw(t, "writeLen")
			data := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "data")

			b.Write(data)
			written.Write(data)

			if r.IsLagging() {
				t.Fatalf("reader unexpectedly lagging after a bounded write")
			}

			out := make([]byte, n)
			got := r.Read(out)
			if got != n {
				t.Fatalf("short read: got %d want %d", got, n)
			}
			read.Write(out)
		}

		if !bytes.Equal(written.Bytes(), read.Bytes()) {
			t.Fatalf("reader did not observe exactly what was written, in order")
		}
	})
}

// TestRapid_CatchUpAlwaysLeavesZeroBacklog checks: for any reader with
// W-pos > C, CatchUp leaves pos == W and subsequent reads return only
// bytes written after the catch-up.
func TestRapid_CatchUpAlwaysLeavesZeroBacklog(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(8, 128).Draw(t, "capacity")
		b := New(capacity)
		r := b.NewReader()

		overrunBytes := rapid.IntRange(capacity+1, capacity*4).Draw(t, "overrunBytes")
		written := 0
		for written < overrunBytes {
			n := rapid.IntRange(1, capacity).Draw(t, "chunk")
			b.Write(bytesOf(n, byte(written)))
			written += n
		}

		if !r.IsLagging() {
			t.Fatalf("expected reader to be lagging after %d bytes over capacity %d", written, capacity)
		}

		r.CatchUp()
		if r.Available() != 0 {
			t.Fatalf("catch-up left %d bytes of backlog, want 0", r.Available())
		}

		fresh := rapid.IntRange(1, capacity/2+1).Draw(t, "freshLen")
		freshData := rapid.SliceOfN(rapid.Byte(), fresh, fresh).Draw(t, "freshData")
		b.Write(freshData)

		out := make([]byte, fresh)
		got := r.Read(out)
		if got != fresh || !bytes.Equal(out, freshData) {
			t.Fatalf("post-catch-up read did not return exactly the new bytes")
		}
	})
}

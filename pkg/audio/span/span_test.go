// ABOUTME: Tests for span extraction
// ABOUTME: Covers contiguous reads, wraparound, short loops and stereo interleaving
package span

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int, base float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = base + float32(i)
	}
	return out
}

func TestExtractContiguous(t *testing.T) {
	src := ramp(20, 0)

	for current := 0; current < 10; current++ {
		for frames := 1; current+frames <= 10; frames++ {
			dst := make([]float32, frames)
			n, next := Extract(dst, src, 0, 10, current, frames)

			require.Equal(t, frames, n)
			assert.Equal(t, current+frames, next)
			assert.Equal(t, src[current:current+frames], dst)
		}
	}
}

func TestExtractWrap(t *testing.T) {
	dst := make([]float32, 5)
	n, next := Extract(dst, ramp(20, 0), 0, 10, 8, 5)

	assert.Equal(t, 5, n)
	assert.Equal(t, 3, next)
	assert.Equal(t, []float32{8, 9, 0, 1, 2}, dst)
}

func TestExtractWrapOffsetWindow(t *testing.T) {
	dst := make([]float32, 6)
	n, next := Extract(dst, ramp(20, 0), 5, 9, 7, 6)

	assert.Equal(t, 6, n)
	assert.Equal(t, 9, next)
	assert.Equal(t, []float32{7, 8, 5, 6, 7, 8}, dst)
}

func TestExtractLandsOnEnd(t *testing.T) {
	dst := make([]float32, 2)
	n, next := Extract(dst, ramp(20, 0), 0, 10, 8, 2)

	assert.Equal(t, 2, n)
	assert.Equal(t, 10, next, "cursor reaching end exactly is not wrapped until the next call")

	n, next = Extract(dst, ramp(20, 0), 0, 10, next, 2)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, next)
	assert.Equal(t, []float32{0, 1}, dst)
}

func TestExtractLoopShorterThanRequest(t *testing.T) {
	dst := make([]float32, 10)
	n, next := Extract(dst, ramp(20, 0), 2, 5, 3, 10)

	assert.Equal(t, 10, n)
	assert.Equal(t, []float32{3, 4, 2, 3, 4, 2, 3, 4, 2, 3}, dst)
	assert.Equal(t, 4, next)
}

func TestExtractEmptyLoop(t *testing.T) {
	dst := []float32{9, 9, 9}
	n, next := Extract(dst, ramp(20, 0), 4, 4, 4, 3)

	assert.Equal(t, 3, n)
	assert.Equal(t, 4, next)
	assert.Equal(t, []float32{0, 0, 0}, dst)
}

func TestExtractNoEnd(t *testing.T) {
	src := ramp(6, 0)
	dst := make([]float32, 4)

	n, next := Extract(dst, src, 0, NoEnd, 0, 4)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, next)

	n, next = Extract(dst, src, 0, NoEnd, next, 4)
	assert.Equal(t, 2, n, "runs out of data instead of wrapping")
	assert.Equal(t, 6, next)
	assert.Equal(t, []float32{4, 5}, dst[:n])

	n, next = Extract(dst, src, 0, NoEnd, next, 4)
	assert.Zero(t, n)
	assert.Equal(t, 6, next)
}

func TestExtractEndBeyondData(t *testing.T) {
	dst := make([]float32, 4)
	n, next := Extract(dst, ramp(5, 0), 0, 50, 3, 4)

	assert.Equal(t, 4, n)
	assert.Equal(t, []float32{3, 4, 0, 1}, dst)
	assert.Equal(t, 2, next)
}

func TestExtractCursorPastEnd(t *testing.T) {
	dst := make([]float32, 2)
	n, next := Extract(dst, ramp(20, 0), 4, 8, 15, 2)

	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{4, 5}, dst)
	assert.Equal(t, 6, next)
}

func TestExtractBoundedByDst(t *testing.T) {
	dst := make([]float32, 3)
	n, next := Extract(dst, ramp(20, 0), 0, NoEnd, 0, 8)

	assert.Equal(t, 3, n)
	assert.Equal(t, 3, next)
}

func TestInterleave(t *testing.T) {
	dst := make([]float32, 6)
	n := Interleave(dst, []float32{8, 9, 0}, []float32{108, 109, 100})

	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{8, 108, 9, 109, 0, 100}, dst)
}

func TestExtractInterleaved(t *testing.T) {
	left := ramp(20, 0)
	right := ramp(20, 100)
	dst := make([]float32, 10)

	n, next := ExtractInterleaved(dst, [][]float32{left, right}, 0, 10, 8, 5)

	assert.Equal(t, 5, n)
	assert.Equal(t, 3, next)
	assert.Equal(t, []float32{8, 108, 9, 109, 0, 100, 1, 101, 2, 102}, dst)
}

func TestExtractInterleavedNoEnd(t *testing.T) {
	dst := make([]float32, 8)
	n, next := ExtractInterleaved(dst, [][]float32{ramp(3, 0), ramp(3, 10)}, 0, NoEnd, 1, 4)

	assert.Equal(t, 2, n)
	assert.Equal(t, 3, next)
	assert.Equal(t, []float32{1, 11, 2, 12}, dst[:n*2])
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name               string
		length, start, end int
		wantStart, wantEnd int
	}{
		{"inside", 10, 2, 5, 2, 5},
		{"end clamped to data", 10, 2, 50, 2, 10},
		{"end raised to start", 10, 6, 3, 6, 6},
		{"negative start", 10, -4, 5, 0, 5},
		{"start past data", 10, 12, 15, 10, 10},
		{"open", 10, 3, NoEnd, 3, NoEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := Bounds(tt.length, tt.start, tt.end)
			assert.Equal(t, tt.wantStart, s)
			assert.Equal(t, tt.wantEnd, e)
		})
	}
}

func TestExtractDoesNotAllocate(t *testing.T) {
	src := ramp(1024, 0)
	dst := make([]float32, 512)
	chans := [][]float32{src, src}
	stereo := make([]float32, 1024)

	allocs := testing.AllocsPerRun(100, func() {
		Extract(dst, src, 100, 300, 250, 512)
		ExtractInterleaved(stereo, chans, 100, 300, 250, 512)
	})
	assert.Zero(t, allocs)
}

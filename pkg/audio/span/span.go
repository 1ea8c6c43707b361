// ABOUTME: Loop-aware span extraction over planar sample data
// ABOUTME: Pure functions called from the render path; they never allocate
package span

// NoEnd marks an open loop window that plays to the end of the data
const NoEnd = -1

// Extract copies frames samples of src into dst, starting at current and
// wrapping from end back to start. It returns the number of samples
// written and the position to continue from.
//
// With end set, the wrap repeats as often as needed, so n == frames
// unless dst is shorter. An empty window (end == start) writes silence.
// With end == NoEnd, extraction stops at the end of src and n may be
// short; the caller decides what exhausted input means.
//
// current below start is not corrected here.
func Extract(dst, src []float32, start, end, current, frames int) (n, next int) {
	if frames > len(dst) {
		frames = len(dst)
	}
	return extract(dst, src, 1, 0, start, end, current, frames)
}

// ExtractInterleaved runs Extract over every channel with the same
// indices and writes the result interleaved into dst, which must hold
// frames*len(chans) samples. Channels stay in lockstep.
func ExtractInterleaved(dst []float32, chans [][]float32, start, end, current, frames int) (n, next int) {
	stride := len(chans)
	if stride == 0 {
		return 0, current
	}
	if limit := len(dst) / stride; frames > limit {
		frames = limit
	}
	n, next = frames, current
	for ch, src := range chans {
		cn, cnext := extract(dst, src, stride, ch, start, end, current, frames)
		if cn < n {
			n = cn
		}
		next = cnext
	}
	return n, next
}

// Interleave writes already extracted per-channel spans into dst
// alternating channel by channel. It returns the number of frames written,
// bounded by the shortest channel and the capacity of dst.
func Interleave(dst []float32, chans ...[]float32) int {
	stride := len(chans)
	if stride == 0 {
		return 0
	}
	frames := len(dst) / stride
	for _, c := range chans {
		if len(c) < frames {
			frames = len(c)
		}
	}
	for i := 0; i < frames; i++ {
		for ch, c := range chans {
			dst[i*stride+ch] = c[i]
		}
	}
	return frames
}

// Bounds normalizes a window against data of the given length: start is
// kept inside the data, end is clamped to the data and raised to start.
func Bounds(length, start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}
	if end == NoEnd {
		return start, NoEnd
	}
	if end > length {
		end = length
	}
	if end < start {
		end = start
	}
	return start, end
}

func extract(dst, src []float32, stride, offset, start, end, current, frames int) (int, int) {
	start, end = Bounds(len(src), start, end)
	if current < 0 {
		current = 0
	}

	if end == NoEnd {
		avail := len(src) - current
		if avail <= 0 {
			return 0, len(src)
		}
		if frames > avail {
			frames = avail
		}
		write(dst, src[current:current+frames], stride, offset, 0)
		return frames, current + frames
	}

	if end == start {
		for i := 0; i < frames; i++ {
			dst[i*stride+offset] = 0
		}
		return frames, start
	}

	written := 0
	for written < frames {
		if current >= end {
			current = start
		}
		k := end - current
		if rem := frames - written; k > rem {
			k = rem
		}
		write(dst, src[current:current+k], stride, offset, written)
		written += k
		current += k
	}
	return written, current
}

func write(dst, src []float32, stride, offset, at int) {
	if stride == 1 {
		copy(dst[at:], src)
		return
	}
	for i, s := range src {
		dst[(at+i)*stride+offset] = s
	}
}

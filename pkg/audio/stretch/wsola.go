// ABOUTME: Pitch-preserving time stretch using waveform-similarity overlap-add
// ABOUTME: Frame alignment is found on a mono mix and applied to every channel in parallel
package stretch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// ErrFactor is returned for a non-positive or non-finite stretch factor
var ErrFactor = errors.New("stretch factor must be positive and finite")

const (
	DefaultFrameDuration = 40 * time.Millisecond

	// correlation is evaluated on every searchStride-th candidate offset and sample
	searchStride = 4
	cancelCheck  = 256
)

// WSOLA stretches audio by overlap-adding windowed frames whose positions
// are nudged to line up with the previous frame's waveform.
type WSOLA struct {
	// FrameDuration is the analysis window length
	FrameDuration time.Duration
}

// New returns a WSOLA stretcher with default settings
func New() *WSOLA {
	return &WSOLA{FrameDuration: DefaultFrameDuration}
}

// Stretch returns a buffer factor times as long as buf at the same pitch.
// factor 2 plays twice as slow. The input is returned as is for factor 1.
func (w *WSOLA) Stretch(ctx context.Context, buf *audio.Buffer, factor float64) (*audio.Buffer, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: %v", ErrFactor, factor)
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if factor == 1 {
		return buf, nil
	}

	frameLen := int(w.FrameDuration.Seconds() * float64(buf.SampleRate))
	if frameLen < 64 {
		frameLen = 64
	}
	frameLen &^= 1
	synthHop := frameLen / 2
	analysisHop := float64(synthHop) / factor
	tolerance := frameLen / 4

	inFrames := buf.Frames()
	outFrames := int(math.Round(float64(inFrames) * factor))
	hops := outFrames/synthHop + 1

	positions, err := align(ctx, buf.Mono().Channels[0], hops, frameLen, synthHop, analysisHop, tolerance)
	if err != nil {
		return nil, err
	}

	win := hann(frameLen)
	norm := make([]float32, outFrames+frameLen)
	for k := range positions {
		base := k * synthHop
		for i, v := range win {
			norm[base+i] += v
		}
	}

	out := audio.NewBuffer(buf.NumChannels(), outFrames, buf.SampleRate)
	g, ctx := errgroup.WithContext(ctx)
	for ch := range buf.Channels {
		src := buf.Channels[ch]
		dst := out.Channels[ch]
		g.Go(func() error {
			return overlapAdd(ctx, dst, src, positions, win, norm, synthHop)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// align picks the source position of every synthesis frame
func align(ctx context.Context, mono []float32, hops, frameLen, synthHop int, analysisHop float64, tolerance int) ([]int, error) {
	positions := make([]int, hops)
	maxPos := len(mono) - frameLen
	if maxPos < 0 {
		maxPos = 0
	}

	for k := 1; k < hops; k++ {
		if k%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// the segment that would naturally follow the previous frame
		natural := positions[k-1] + synthHop
		nominal := int(math.Round(float64(k) * analysisHop))

		lo, hi := nominal-tolerance, nominal+tolerance
		if lo < 0 {
			lo = 0
		}
		if hi > maxPos {
			hi = maxPos
		}
		if lo > hi {
			positions[k] = clampInt(nominal, 0, maxPos)
			continue
		}

		best, bestScore := lo, math.Inf(-1)
		for cand := lo; cand <= hi; cand += searchStride {
			score := correlate(mono, natural, cand, synthHop)
			if score > bestScore {
				best, bestScore = cand, score
			}
		}
		// refine around the coarse pick
		for cand := best - searchStride + 1; cand < best+searchStride; cand++ {
			if cand < lo || cand > hi || cand == best {
				continue
			}
			score := correlate(mono, natural, cand, synthHop)
			if score > bestScore {
				best, bestScore = cand, score
			}
		}
		positions[k] = best
	}
	return positions, nil
}

func correlate(x []float32, a, b, n int) float64 {
	var sum float64
	for i := 0; i < n; i += searchStride {
		sum += float64(at(x, a+i)) * float64(at(x, b+i))
	}
	return sum
}

func overlapAdd(ctx context.Context, dst, src []float32, positions []int, win, norm []float32, synthHop int) error {
	for k, p := range positions {
		if k%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		base := k * synthHop
		for i, v := range win {
			o := base + i
			if o >= len(dst) {
				break
			}
			dst[o] += v * at(src, p+i)
		}
	}
	for i := range dst {
		if norm[i] > 1e-3 {
			dst[i] /= norm[i]
		}
	}
	return nil
}

func hann(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = float32(0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

func at(x []float32, i int) float32 {
	if i < 0 || i >= len(x) {
		return 0
	}
	return x[i]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

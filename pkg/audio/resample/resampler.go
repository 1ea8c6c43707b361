// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Streams interleaved float32 chunks or converts whole planar buffers
package resample

import (
	"github.com/noodler-audio/noodler/pkg/audio"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts interleaved input at inputRate into interleaved output
// at outputRate and returns the number of output samples written.
func (r *Resampler) Resample(input []float32, output []float32) int {
	if len(input) == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputIdx := int(r.position)
		if inputIdx >= inputFrames-1 {
			break
		}

		frac := float32(r.position - float64(inputIdx))
		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[(inputIdx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = s1*(1-frac) + s2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Keep the fractional part for the next chunk
	r.position -= float64(int(r.position))

	return outIdx * r.channels
}

// Buffer converts a whole buffer to outputRate. The input is returned
// unchanged when the rates already match.
func Buffer(buf *audio.Buffer, outputRate int) *audio.Buffer {
	if buf == nil || buf.SampleRate == outputRate || outputRate <= 0 || buf.SampleRate <= 0 {
		return buf
	}
	frames, nch := buf.Frames(), buf.NumChannels()
	if frames == 0 || nch == 0 {
		return audio.NewBuffer(nch, 0, outputRate)
	}

	r := New(buf.SampleRate, outputRate, nch)
	outFrames := int(float64(frames-1)/r.ratio) + 1
	out := make([]float32, outFrames*nch)
	n := r.Resample(buf.Interleaved(), out) / nch

	// frames past the last interpolation pair hold the final input frame
	for i := n; i < outFrames; i++ {
		for ch := 0; ch < nch; ch++ {
			out[i*nch+ch] = buf.Channels[ch][frames-1]
		}
	}
	return audio.FromInterleaved(out, nch, outputRate)
}

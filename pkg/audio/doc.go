// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Buffer type and sample conversion functions
// Package audio provides the decoded audio types shared by the decoders, the DSP
// packages and the playback engine.
//
// A Buffer holds planar float32 samples normalized to [-1, 1] with the sample rate
// they were decoded at. Only mono and stereo buffers are playable.
//
// Example:
//
//	buf := audio.FromInterleaved(samples, 2, 44100)
//	if err := buf.Validate(); err != nil {
//	    return err
//	}
//	fmt.Println(buf.Duration())
package audio

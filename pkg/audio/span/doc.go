// ABOUTME: Span extraction package for looped playback
// ABOUTME: Documents the wrap rules the render path relies on
// Package span extracts the samples for one render callback from planar
// audio data, honoring a loop window.
//
// Given a loop window [start, end) in frames and a cursor, Extract returns the
// next frames samples in playback order. Crossing end continues at start, as
// many times as needed when the window is shorter than the request.
//
// Example:
//
//	src := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
//	dst := make([]float32, 5)
//	n, next := span.Extract(dst, src, 0, 10, 8, 5)
//	// dst == [8 9 0 1 2], n == 5, next == 3
package span

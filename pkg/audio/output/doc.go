// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the pull-model Device interface and its backends
// Package output opens audio output streams that pull samples from a Source.
//
// Backends:
//   - oto: ebitengine/oto, the default
//   - malgo: miniaudio through gen2brain/malgo
//   - beep: the gopxl/beep speaker
//   - portaudio: PortAudio, only with -tags portaudio
//   - null: no audio, renders on a timer
//
// Every backend calls Source.Render from its own audio goroutine. Render
// must fill the slice without blocking.
//
// Example:
//
//	dev, err := output.New("oto")
//	stream, err := dev.Open(48000, 2, renderer)
//	defer stream.Close()
package output

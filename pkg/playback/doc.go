// ABOUTME: Real-time playback engine package
// ABOUTME: Documents the control/render split and cursor ownership
// Package playback is the real-time playback engine of noodler.
//
// Two goroutines share it. The control goroutine calls Controller methods
// to load audio, edit the loop window, seek, change rate and start or stop
// playback. The render goroutine belongs to the output backend and calls
// Renderer.Render for every block of samples.
//
// The render goroutine never waits on the control goroutine:
//   - state is published as immutable Snapshots behind an atomic pointer
//   - play, stop and restart travel through a lock-free CommandQueue
//   - the cursor comes back as an atomic value plus a one-slot channel
//
// While a stream is active the renderer owns the cursor; while idle the
// controller does. Loop bounds and cursor are in musical seconds, that is,
// positions on the original track regardless of playback rate.
//
// Example:
//
//	dev, _ := output.New("oto")
//	c := playback.NewController(playback.Config{Device: dev})
//	go c.Run(ctx)
//
//	if err := c.Load(buf, 1); err != nil {
//	    return err
//	}
//	c.SetLoopStart(12.5)
//	c.SetLoopEnd(16)
//	if err := c.Play(); err != nil {
//	    return err
//	}
//	_ = c.SetRate(ctx, 0.75)
package playback

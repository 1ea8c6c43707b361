// ABOUTME: Time stretching package
// ABOUTME: Changes playback duration without changing pitch
// Package stretch realizes a track at a different playback speed.
//
// Rate changes happen out of band on the control path: the whole buffer is
// recomputed and then swapped into the player.
//
// Example:
//
//	slow, err := stretch.New().Stretch(ctx, buf, 1/0.75)
package stretch

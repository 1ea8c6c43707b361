// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides whole-file decoders for MP3, FLAC, WAV, AIFF, Vorbis, Opus and raw PCM
// Package decode turns encoded audio files into audio.Buffer values ready to
// load into the player.
//
// Supports: MP3, FLAC, WAV, AIFF, Ogg Vorbis, Ogg Opus and raw PCM (16-bit and 24-bit).
//
// Decoding happens up front; the playback engine never touches files.
//
// Example:
//
//	buf, err := decode.DecodeFile("song.flac")
//	if err != nil {
//	    return err
//	}
//	err = controller.Load(buf, 1)
package decode

// ABOUTME: File helpers for the player application
// ABOUTME: Opens a file and runs an explicit decoder over it
package app

import (
	"fmt"
	"os"

	"github.com/noodler-audio/noodler/pkg/audio"
	"github.com/noodler-audio/noodler/pkg/audio/decode"
)

func decodeWith(dec decode.Decoder, path string) (*audio.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	buf, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, nil
}

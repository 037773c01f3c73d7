package notify

import (
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

// ChimePlayer is satisfied by audio.Player.
type ChimePlayer interface {
	PlayStreamer(st beep.Streamer, format beep.Format) error
}

// Chime plays a short mp3 cue before the assistant starts listening.
// A missing file is not an error; the cue is purely cosmetic.
func Chime(p ChimePlayer, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	return p.PlayStreamer(streamer, format)
}

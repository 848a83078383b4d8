package transcript

import (
	"bufio"
	"fmt"
	"os"

	"github.com/MrWong99/lectora/pkg/audio"
)

// ReadFile loads a 16-bit PCM WAV recording from disk.
func ReadFile(path string) (audio.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("transcript: open recording: %w", err)
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(bufio.NewReader(f))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("transcript: read recording %q: %w", path, err)
	}
	return clip, nil
}

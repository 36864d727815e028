package audio

import (
	"context"
	"io"
	log "log/slog"
	"sync"
	"time"

	"sophie/pkg/audioconv"
)

// FileSource replays a fixed list of audio files, one per Record call. Each
// clip is cut or zero-padded to the requested length. Once the list is used
// up Record fails with a DeviceError wrapping io.EOF.
type FileSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: append([]string(nil), paths...)}
}

func (s *FileSource) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.paths) {
		s.mu.Unlock()
		return nil, &DeviceError{Op: "replay", Err: io.EOF}
	}
	path := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	pcm, err := audioconv.DecodeFile(path)
	if err != nil {
		return nil, &DeviceError{Op: "replay " + path, Err: err}
	}
	log.Debug("Replaying clip", "path", path, "samples", len(pcm))
	return audioconv.Fit(pcm, Samples(d)), nil
}

// Remaining reports how many clips are left.
func (s *FileSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths) - s.next
}

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"heart-audio/pkg/models"
)

const defaultAudioExt = ".m4a"

// AudioStore writes uploaded recordings to a directory on disk.
type AudioStore struct {
	dir string
}

func NewAudioStore(dir string) (*AudioStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	return &AudioStore{dir: dir}, nil
}

// Save writes data as audio_<id><ext> and returns the path. The extension is
// taken from filename and defaults to .m4a.
func (s *AudioStore) Save(id, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = defaultAudioExt
	}
	if id == "" {
		id = models.NewID()
	}
	path := filepath.Join(s.dir, "audio_"+id+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	return path, nil
}

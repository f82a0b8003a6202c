package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists calibration models.
type Store interface {
	Load() (Models, error)
	Save(models Models) error
}

// FileStore keeps the calibration models in a JSON document keyed by sensor id.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the calibration document. A missing document yields the default
// models; a document that cannot be decoded is reported as ErrCorruptState.
func (s *FileStore) Load() (Models, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	var models Models
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, s.Path, err)
	}
	if models == nil {
		return nil, fmt.Errorf("%w: %s: document is not an object", ErrCorruptState, s.Path)
	}
	for sensor, m := range models {
		m.Sensor = sensor
		if !m.valid() {
			return nil, fmt.Errorf("%w: %s: non-finite model for sensor %s", ErrCorruptState, s.Path, sensor)
		}
		models[sensor] = m
	}
	return models, nil
}

// Save replaces the calibration document with models. The document is written
// to a temporary file first and renamed over the old one.
func (s *FileStore) Save(models Models) error {
	for sensor, m := range models {
		if !m.valid() {
			return fmt.Errorf("%w: sensor %s", ErrDegenerateFit, sensor)
		}
	}
	data, err := json.MarshalIndent(models, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

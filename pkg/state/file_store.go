// Package state persists stream positions between runs so extraction
// can resume where it left off.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/atlasync/atlasync/pkg/connector/core"
	"github.com/atlasync/atlasync/pkg/errors"
	"github.com/atlasync/atlasync/pkg/logger"
)

// StoredPosition is a position restored from disk. It carries the
// serialized form; sources parse it back into their own position type.
type StoredPosition struct {
	Value string
}

// String returns the serialized position.
func (p *StoredPosition) String() string {
	return p.Value
}

// Compare orders positions by their serialized form.
func (p *StoredPosition) Compare(other core.Position) int {
	if other == nil {
		return 1
	}
	return strings.Compare(p.Value, other.String())
}

type filePayload struct {
	Position  string    `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileStore persists positions to a JSON file. Writes go through a
// temp file and rename so a crash never leaves a torn state file.
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state file path is required")
	}
	return &FileStore{
		path:   path,
		logger: logger.Get().With(zap.String("component", "state_store")),
	}, nil
}

// SavePosition writes the position to disk.
func (s *FileStore) SavePosition(ctx context.Context, position core.Position) error {
	if position == nil {
		return errors.New(errors.ErrorTypeConfig, "cannot save a nil position")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload := filePayload{
		Position:  position.String(),
		UpdatedAt: time.Now().UTC(),
	}

	data, err := gojson.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create temp state file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close temp state file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to replace state file %s", s.path))
	}

	s.logger.Debug("saved position", zap.String("position", payload.Position))
	return nil
}

// LoadPosition restores the last saved position. A missing file means
// no prior state and returns a nil position without error.
func (s *FileStore) LoadPosition(ctx context.Context) (core.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to read state file %s", s.path))
	}

	var payload filePayload
	if err := gojson.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData,
			fmt.Sprintf("state file %s is corrupt", s.path))
	}
	if payload.Position == "" {
		return nil, nil
	}

	return &StoredPosition{Value: payload.Position}, nil
}

// ResetPosition removes the state file.
func (s *FileStore) ResetPosition(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrorTypeFile,
			fmt.Sprintf("failed to remove state file %s", s.path))
	}
	return nil
}

// Package imagestore keeps product photos as <id>.jpg files in one directory.
// Orders reference images by id only.
package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrInvalidID     = errors.New("invalid image id")
)

const extension = ".jpg"

// Store is a directory of images keyed by id.
type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the file path for id without checking that it exists.
func (s *Store) Path(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+extension), nil
}

// checkID rejects ids that could escape the image directory.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// IDFromFileName maps "<id>.jpg" back to its id.
func IDFromFileName(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), extension) {
		return "", false
	}
	id := strings.TrimSuffix(base, filepath.Ext(base))
	return id, checkID(id) == nil
}

// Save stores data under a fresh id.
func (s *Store) Save(data []byte) (string, error) {
	id := strings.ToUpper(uuid.NewString())
	if err := s.Put(id, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return id, nil
}

// Put writes r under id, replacing an existing image.
func (s *Store) Put(id string, r io.Reader) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".img-*")
	if err != nil {
		return fmt.Errorf("failed to create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close image %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store image %s: %w", id, err)
	}
	return nil
}

func (s *Store) Load(id string) ([]byte, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	return data, nil
}

// Open returns a reader for id; the caller closes it.
func (s *Store) Open(id string) (io.ReadCloser, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to open image %s: %w", id, err)
	}
	return f, nil
}

func (s *Store) Has(id string) bool {
	path, err := s.Path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Delete removes id. A missing image is not an error.
func (s *Store) Delete(id string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	return nil
}

// DeleteMany removes every id and reports all failures together.
func (s *Store) DeleteMany(ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := s.Delete(id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.logger.Warn("some images could not be deleted", zap.Int("failed", len(errs)), zap.Int("requested", len(ids)))
	}
	return errors.Join(errs...)
}

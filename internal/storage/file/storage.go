package file

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/aliskhannn/image-blur/internal/storage"
)

// OutputDir is the subdirectory blurred images are written to.
const OutputDir = "blur_filter_outputs"

// encoder serializes a raster into bytes.
type encoder interface {
	Encode(w io.Writer, img image.Image) error
}

// Storage provides a simple file-based storage backend.
// It reads images from the local filesystem and writes blurred outputs
// under a base directory.
type Storage struct {
	basePath string
	encoder  encoder
}

// NewStorage creates a new Storage instance with the given basePath.
// The basePath defines the root directory where outputs will be stored.
func NewStorage(basePath string, enc encoder) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path %s: %w", basePath, err)
	}

	return &Storage{basePath: abs, encoder: enc}, nil
}

// Open opens the file identified by a file:// locator or a plain path.
func (s *Storage) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	path, err := Path(locator)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	return f, nil
}

// Write encodes img into a new uniquely named file and returns its file:// locator.
// The file only appears at its final path once it has been fully written.
func (s *Storage) Write(ctx context.Context, img image.Image) (string, error) {
	dir := filepath.Join(s.basePath, OutputDir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".blur-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := s.encoder.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close file %s: %w", tmp.Name(), err)
	}

	dstPath := filepath.Join(dir, fmt.Sprintf("blur-filter-output-%s.png", uuid.New()))
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	return Locator(dstPath), nil
}

// Delete removes the file identified by locator.
func (s *Storage) Delete(_ context.Context, locator string) error {
	path, err := Path(locator)
	if err != nil {
		return err
	}

	return os.Remove(path)
}

// Locator returns the file:// locator for path.
func Locator(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// Path returns the filesystem path of a file:// locator or a plain path.
func Path(locator string) (string, error) {
	if !strings.Contains(locator, "://") {
		return locator, nil
	}

	u, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidLocator, err)
	}
	if !strings.EqualFold(u.Scheme, "file") {
		return "", fmt.Errorf("%w: %q", storage.ErrUnsupportedLocator, u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("%w: no path in %q", storage.ErrInvalidLocator, locator)
	}

	return filepath.FromSlash(u.Path), nil
}

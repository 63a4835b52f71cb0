package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MediaStorage persists recording blobs and returns a stable URL path for
// each. The disk implementation below is the default; object storage can
// slot in behind the same interface.
type MediaStorage interface {
	Save(ctx context.Context, ext string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// recordingExtensions maps accepted recording MIME types to on-disk
// extensions. Anything else is rejected before touching storage.
var recordingExtensions = map[string]string{
	"video/webm":       ".webm",
	"video/mp4":        ".mp4",
	"video/x-matroska": ".mkv",
}

// RecordingExt resolves an upload content type to a storage extension.
func RecordingExt(contentType string) (string, error) {
	// Strip parameters such as codecs=.
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	ext, ok := recordingExtensions[strings.ToLower(mediaType)]
	if !ok {
		return "", ErrUnsupportedFile
	}
	return ext, nil
}

const recordingURLPrefix = "/media/recordings/"

// DiskMediaStorage stores recordings on the local filesystem under a
// single flat directory.
type DiskMediaStorage struct {
	dir string
}

// NewDiskMediaStorage creates the storage directory if needed.
func NewDiskMediaStorage(dir string) (*DiskMediaStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}
	return &DiskMediaStorage{dir: dir}, nil
}

// Save streams the blob to a randomly named file and returns its URL path.
func (s *DiskMediaStorage) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	name := uuid.New().String() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create recording file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write recording file: %w", err)
	}
	return recordingURLPrefix + name, nil
}

// Delete removes the file behind a URL previously returned by Save.
func (s *DiskMediaStorage) Delete(ctx context.Context, url string) error {
	name := strings.TrimPrefix(url, recordingURLPrefix)
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("malformed recording url: %q", url)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Dir returns the backing directory, used to mount the static file route.
func (s *DiskMediaStorage) Dir() string { return s.dir }

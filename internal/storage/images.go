package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// storageRefPattern matches the filenames Save produces. Anything else is
// rejected before touching the filesystem, so a ref can never traverse
// outside the upload directory.
var storageRefPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(jpg|png|gif|webp)$`)

// ImageStore persists uploaded binaries to local disk. A ref returned by
// Save refers to a fully written and synced file: subscribers notified
// with the ref can read it immediately.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &ImageStore{dir: dir}, nil
}

// Save sniffs the real content type from the first 512 bytes (the declared
// filename and Content-Type header are not trusted), rejects non-image
// data, and writes the binary under a random name. The file is synced
// before the ref is returned.
func (s *ImageStore) Save(r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read image header: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %s: %w", contentType, ErrNotAnImage)
	}

	ref := uuid.NewString() + ext
	tmpPath := filepath.Join(s.dir, ref+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmpPath, err)
	}

	if err := writeAndSync(f, head, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close %s: %w", tmpPath, err)
	}

	finalPath := filepath.Join(s.dir, ref)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename %s: %w", tmpPath, err)
	}

	return ref, nil
}

func writeAndSync(f *os.File, head []byte, rest io.Reader) error {
	if _, err := f.Write(head); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if _, err := io.Copy(f, rest); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync image: %w", err)
	}
	return nil
}

// Open returns a reader for a previously saved image.
func (s *ImageStore) Open(ref string) (io.ReadCloser, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Path resolves a ref to an absolute file path, or ErrInvalidRef for refs
// that Save could not have produced.
func (s *ImageStore) Path(ref string) (string, error) {
	if !storageRefPattern.MatchString(ref) {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.dir, ref), nil
}

// Exists reports whether the ref resolves to a readable file.
func (s *ImageStore) Exists(ref string) bool {
	path, err := s.Path(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ContentType derives the response content type from a ref's extension.
func ContentType(ref string) string {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

package picstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StoredExtension is used for every picture regardless of the uploaded type.
	StoredExtension = ".jpg"

	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	ErrInvalidFileType = errors.New("invalid file type. Only JPG, JPEG, and PNG are allowed")
	ErrInvalidUsername = errors.New("invalid username for profile picture")
	ErrNotFound        = errors.New("profile picture not found")
)

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// FileStore keeps profile pictures as <dir>/<username>.jpg.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("profile picture directory is empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create profile picture dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Filename returns the stored file name for username.
func Filename(username string) string {
	return username + StoredExtension
}

// Save validates extension and writes r to <username>.jpg, replacing any
// previous picture. The content lands in a temp file first and is renamed
// into place, so readers see either the old or the new picture.
func (s *FileStore) Save(username string, r io.Reader, extension string) (string, error) {
	if !allowedExtensions[strings.ToLower(strings.TrimPrefix(extension, "."))] {
		return "", ErrInvalidFileType
	}
	path, err := s.path(username)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, "."+username+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write profile picture: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync profile picture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close profile picture: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return "", fmt.Errorf("chmod profile picture: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename profile picture: %w", err)
	}

	return Filename(username), nil
}

// Load returns the stored picture bytes for username.
func (s *FileStore) Load(username string) ([]byte, error) {
	path, err := s.path(username)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- username is a single path element
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read profile picture: %w", err)
	}
	return data, nil
}

// path rejects usernames that would escape dir.
func (s *FileStore) path(username string) (string, error) {
	if username == "" || username == "." || username == ".." ||
		strings.ContainsAny(username, `/\`) || strings.ContainsRune(username, 0) {
		return "", ErrInvalidUsername
	}
	return filepath.Join(s.dir, Filename(username)), nil
}

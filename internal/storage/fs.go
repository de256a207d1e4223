package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/coreseekdev/textcase/internal/checksum"
	"github.com/coreseekdev/textcase/internal/models"
)

// LockFile is the name of the advisory lock file created inside locked directories.
const LockFile = ".textcase.lock"

// FS implements Provider on top of an afero file system.
type FS struct {
	fs    afero.Fs
	root  string // absolute project root, empty for in-memory storage
	locks *memLocks
}

// NewFS creates a provider rooted at the given directory of the local file system.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{fs: afero.NewBasePathFs(afero.NewOsFs(), abs), root: abs}, nil
}

// NewMemory creates a provider backed by an in-memory file system.
func NewMemory() *FS {
	return &FS{fs: afero.NewMemMapFs(), locks: newMemLocks()}
}

// Root returns the absolute project root, or "" for in-memory storage.
func (f *FS) Root() string {
	return f.root
}

// LocalPath returns the real file-system path of rel. It reports false for
// in-memory storage.
func (f *FS) LocalPath(rel string) (string, bool) {
	if f.root == "" {
		return "", false
	}
	p, err := f.safePath(rel)
	if err != nil {
		return "", false
	}
	return filepath.Join(f.root, p), true
}

// safePath turns a root-relative path into the afero name and rejects any
// result that escapes the root.
func (f *FS) safePath(rel string) (string, error) {
	sep := string(filepath.Separator)
	if rel == "" || rel == "." || rel == "/" {
		return sep, nil
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+sep) {
		return "", fmt.Errorf("storage: path escapes project root: %s", rel)
	}
	return sep + cleaned, nil
}

func relName(name string) string {
	return filepath.ToSlash(strings.TrimPrefix(name, string(filepath.Separator)))
}

// List walks dir and returns metadata for every .md file.
func (f *FS) List(dir string) ([]models.FileMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.FileMetadata
	err = afero.Walk(f.fs, base, func(p string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			if p != base && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(info.Name(), ".md") {
			return nil
		}
		data, err := afero.ReadFile(f.fs, p)
		if err != nil {
			return err
		}
		out = append(out, models.FileMetadata{
			Path:      relName(p),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return out, nil
}

// ReadDir returns the direct children of dir.
func (f *FS) ReadDir(dir string) ([]models.Entry, error) {
	abs, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(f.fs, abs)
	if err != nil {
		return nil, fmt.Errorf("storage: readdir %s: %w", dir, err)
	}
	out := make([]models.Entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, models.Entry{Name: info.Name(), IsDir: info.IsDir()})
	}
	return out, nil
}

// Read returns the raw bytes of a project file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, ".textcase-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.fs.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Exists reports whether path exists.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(f.fs, abs)
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return ok, nil
}

// Delete removes a file from the project.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := f.fs.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// IsNotExist reports whether err was caused by a missing file.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Package storage defines the file-system capability consumed by every TextCase component.
package storage

import "github.com/coreseekdev/textcase/internal/models"

// Unlock releases a lock obtained from Provider.Lock.
type Unlock func() error

// Provider is the interface for project file operations. All paths are
// slash-separated and relative to the project root.
type Provider interface {
	// List returns metadata for every .md file under dir, skipping hidden directories.
	List(dir string) ([]models.FileMetadata, error)
	// ReadDir returns the direct children of dir sorted by name.
	ReadDir(dir string) ([]models.Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a file or directory exists at path.
	Exists(path string) (bool, error)
	// Delete removes the file at path.
	Delete(path string) error
	// Lock takes an exclusive advisory lock scoped to dir.
	Lock(dir string) (Unlock, error)
}

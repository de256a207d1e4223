// Package editor opens documents in the user's $EDITOR.
package editor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"runtime"
	"strings"

	"github.com/coreseekdev/textcase/internal/checksum"
	"github.com/coreseekdev/textcase/internal/storage"
)

// Localizer is implemented by storage backed by the real file system.
type Localizer interface {
	LocalPath(rel string) (string, bool)
}

// Editor runs an external editor on project files.
type Editor struct {
	command []string
	direct  bool
	logger  *slog.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New creates an editor from an EDITOR-style command line. When direct is
// set, files are edited in place whenever the storage exposes a real path.
func New(command string, direct bool, logger *slog.Logger) *Editor {
	return &Editor{
		command: Command(command),
		direct:  direct,
		logger:  logger,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Command splits an EDITOR value into program and arguments, falling back to
// the platform default.
func Command(value string) []string {
	fields := strings.Fields(value)
	if len(fields) > 0 {
		return fields
	}
	if runtime.GOOS == "windows" {
		return []string{"notepad"}
	}
	return []string{"vi"}
}

// Edit opens the root-relative file rel and reports whether its content changed.
func (e *Editor) Edit(ctx context.Context, store storage.Provider, rel string) (bool, error) {
	if e.direct {
		if l, ok := store.(Localizer); ok {
			if p, ok := l.LocalPath(rel); ok {
				return e.editInPlace(ctx, store, rel, p)
			}
		}
		e.logger.Debug("direct edit unavailable, using a temporary copy", "path", rel)
	}
	return e.editCopy(ctx, store, rel)
}

func (e *Editor) editInPlace(ctx context.Context, store storage.Provider, rel, local string) (bool, error) {
	before, err := store.Read(rel)
	if err != nil {
		return false, err
	}
	if err := e.run(ctx, local); err != nil {
		return false, err
	}
	after, err := store.Read(rel)
	if err != nil {
		return false, err
	}
	return checksum.Changed(before, after), nil
}

// editCopy edits a temporary copy and writes it back atomically only when
// the content changed.
func (e *Editor) editCopy(ctx context.Context, store storage.Provider, rel string) (bool, error) {
	before, err := store.Read(rel)
	if err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp("", "textcase-*-"+path.Base(rel))
	if err != nil {
		return false, fmt.Errorf("editor: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(before); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("editor: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("editor: close temp: %w", err)
	}

	if err := e.run(ctx, tmpName); err != nil {
		return false, err
	}

	after, err := os.ReadFile(tmpName)
	if err != nil {
		return false, fmt.Errorf("editor: read temp: %w", err)
	}
	if !checksum.Changed(before, after) {
		return false, nil
	}
	if err := store.Write(rel, after); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Editor) run(ctx context.Context, file string) error {
	args := append(append([]string{}, e.command[1:]...), file)
	cmd := exec.CommandContext(ctx, e.command[0], args...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	e.logger.Debug("starting editor", "command", e.command[0], "file", file)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s: %w", e.command[0], err)
	}
	return nil
}

package editor

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/coreseekdev/textcase/internal/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newEditor(command string, direct bool) *Editor {
	e := New(command, direct, discard())
	e.Stdin, e.Stdout, e.Stderr = nil, io.Discard, io.Discard
	return e
}

func TestCommand(t *testing.T) {
	got := Command("code --wait")
	if len(got) != 2 || got[0] != "code" || got[1] != "--wait" {
		t.Errorf("Command = %v", got)
	}
	if got := Command("  "); len(got) != 1 {
		t.Errorf("default Command = %v", got)
	}
}

func TestEdit_NoChange(t *testing.T) {
	requireSh(t)
	store := storage.NewMemory()
	_ = store.Write("reqs/REQ001.md", []byte("# REQ001\n"))

	changed, err := newEditor("true", false).Edit(context.Background(), store, "reqs/REQ001.md")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if changed {
		t.Error("changed = true for an editor that does nothing")
	}
}

func TestEdit_CopyWritesBack(t *testing.T) {
	requireSh(t)
	store := storage.NewMemory()
	_ = store.Write("reqs/REQ001.md", []byte("# REQ001\n"))

	e := newEditor("", false)
	e.command = []string{"sh", "-c", `printf 'more\n' >> "$0"`}
	changed, err := e.Edit(context.Background(), store, "reqs/REQ001.md")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !changed {
		t.Error("changed = false")
	}
	got, _ := store.Read("reqs/REQ001.md")
	if string(got) != "# REQ001\nmore\n" {
		t.Errorf("content = %q", got)
	}
}

func TestEdit_DirectInPlace(t *testing.T) {
	requireSh(t)
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("REQ001.md", []byte("a\n"))

	e := newEditor("", true)
	e.command = []string{"sh", "-c", `printf 'b\n' >> "$0"`}
	changed, err := e.Edit(context.Background(), store, "REQ001.md")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	got, _ := store.Read("REQ001.md")
	if !changed || string(got) != "a\nb\n" {
		t.Errorf("changed = %v, content = %q", changed, got)
	}
}

func TestEdit_EditorFailure(t *testing.T) {
	requireSh(t)
	store := storage.NewMemory()
	_ = store.Write("REQ001.md", []byte("a\n"))
	if _, err := newEditor("false", false).Edit(context.Background(), store, "REQ001.md"); err == nil {
		t.Error("expected error from failing editor")
	}
	got, _ := store.Read("REQ001.md")
	if string(got) != "a\n" {
		t.Errorf("content = %q", got)
	}
}

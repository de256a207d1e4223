package internal

import (
	"log/slog"
	"path/filepath"
	"testing"

	pkgconfig "github.com/coreseekdev/textcase/pkg/config"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	root := t.TempDir()
	if got, want := cfg.Index(root), filepath.Join(root, ".textcase", "cache.db"); got != want {
		t.Errorf("Index = %q, want %q", got, want)
	}
}

func TestConfig_AbsoluteIndexPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "links.db")
	cfg := &Config{IndexPath: abs}
	if got := cfg.Index("/elsewhere"); got != abs {
		t.Errorf("Index = %q, want %q", got, abs)
	}
}

func TestConfig_InvalidLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: slog.Level(3)}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown log level should fail validation")
	}
}

func TestConfig_ParseYAML(t *testing.T) {
	t.Setenv("TEXTCASE_TEST_EDITOR", "nano -w")
	file := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, file, "log_level: debug\neditor: ${TEXTCASE_TEST_EDITOR}\ndirect_edit: true\n")

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(file, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.Editor != "nano -w" {
		t.Errorf("Editor = %q, want %q", cfg.Editor, "nano -w")
	}
	if !cfg.DirectEdit {
		t.Error("DirectEdit should be true")
	}
	if cfg.IndexPath != DefaultIndexPath {
		t.Errorf("IndexPath = %q, want default", cfg.IndexPath)
	}
}

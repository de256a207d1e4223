package internal

import (
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultIndexPath is the link index location relative to the project root.
const DefaultIndexPath = ".textcase/cache.db"

// Config represents the application configuration.
type Config struct {
	LogLevel   slog.Level `yaml:"log_level"`
	Editor     string     `yaml:"editor"`
	DirectEdit bool       `yaml:"direct_edit"`
	IndexPath  string     `yaml:"index_path"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In(slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError)),
		validation.Field(&c.IndexPath, validation.Length(0, 4096)),
	)
}

// Index returns the absolute link index path for a project rooted at root.
func (c *Config) Index(root string) string {
	p := c.IndexPath
	if p == "" {
		p = DefaultIndexPath
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:  slog.LevelInfo,
		IndexPath: DefaultIndexPath,
	}
}

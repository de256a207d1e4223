// Package models defines the domain types shared across TextCase packages.
package models

import "time"

// FileMetadata is a lightweight listing entry for a Markdown file under the root.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is a direct child of a directory.
type Entry struct {
	Name  string
	IsDir bool
}

// Link is a directed, labeled edge stored in the source document's frontmatter.
type Link struct {
	Target string   `json:"target"`
	Labels []string `json:"labels"`
}

// Document describes a numbered (or named) document inside a module.
type Document struct {
	ID     string `json:"id"`
	Prefix string `json:"prefix"`
	Path   string `json:"path"`
	Title  string `json:"title,omitempty"`
}

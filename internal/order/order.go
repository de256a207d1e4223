// Package order maintains a module's index.yml: the document outline and the
// allocation high-water mark.
package order

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/project"
	"github.com/coreseekdev/textcase/internal/storage"
	pkgconfig "github.com/coreseekdev/textcase/pkg/config"
)

// File is the name of the ordering index inside a module directory.
const File = "index.yml"

const header = `# THIS FILE DEFINES THE ORDER OF DOCUMENTS IN THIS MODULE
# INDENT ITEMS UNDER ANOTHER ITEM TO NEST THEM, MOVE LINES TO REORDER
# "next" IS THE LAST ALLOCATED NUMBER, DO NOT LOWER IT
#######################################################################
`

// Item is one outline entry, a document filename with optional nested entries.
type Item struct {
	Name     string
	Children []Item
}

// UnmarshalYAML accepts "REQ001.md" or {"REQ001.md": [children]}.
func (it *Item) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		it.Name = value.Value
		return nil
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("line %d: outline entry must have exactly one key", value.Line)
		}
		it.Name = value.Content[0].Value
		if v := value.Content[1]; v.Kind == yaml.SequenceNode {
			return v.Decode(&it.Children)
		}
		return nil
	default:
		return fmt.Errorf("line %d: unexpected outline entry", value.Line)
	}
}

// MarshalYAML writes leaf entries as plain names.
func (it Item) MarshalYAML() (any, error) {
	if len(it.Children) == 0 {
		return it.Name, nil
	}
	return map[string][]Item{it.Name: it.Children}, nil
}

// Index is the decoded content of index.yml.
type Index struct {
	Initial string `yaml:"initial"`
	Next    int    `yaml:"next"`
	Outline []Item `yaml:"outline"`
	Legacy  []Item `yaml:"order,omitempty"`
}

// Load reads a module's index.yml. A missing file yields an empty index.
func Load(store storage.Provider, m *project.Module) (*Index, error) {
	idx := &Index{Initial: "1.0"}
	data, err := store.Read(m.File(File))
	if err != nil {
		if storage.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrConfig, m.File(File), err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return idx, nil
	}
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		err = doc.Decode(&idx.Outline)
	case yaml.MappingNode:
		err = doc.Decode(idx)
	case yaml.ScalarNode:
	default:
		err = fmt.Errorf("unexpected document kind")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrConfig, m.File(File), err)
	}
	if len(idx.Outline) == 0 && len(idx.Legacy) > 0 {
		idx.Outline = idx.Legacy
	}
	idx.Legacy = nil
	if idx.Initial == "" {
		idx.Initial = "1.0"
	}
	return idx, nil
}

// Save writes the index with its header comment.
func Save(store storage.Provider, m *project.Module, idx *Index) error {
	out := struct {
		Initial string `yaml:"initial"`
		Next    int    `yaml:"next"`
		Outline []Item `yaml:"outline"`
	}{idx.Initial, idx.Next, idx.Outline}
	if out.Outline == nil {
		out.Outline = []Item{}
	}
	data, err := pkgconfig.Marshal(out)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.Write(data)
	return store.Write(m.File(File), buf.Bytes())
}

// Update loads the index under the module lock, applies fn and saves the result.
func Update(store storage.Provider, m *project.Module, fn func(*Index) error) error {
	unlock, err := store.Lock(m.Path)
	if err != nil {
		return err
	}
	defer unlock()

	idx, err := Load(store, m)
	if err != nil {
		return err
	}
	if err := fn(idx); err != nil {
		return err
	}
	return Save(store, m, idx)
}

// Contains reports whether name appears anywhere in the outline.
func (idx *Index) Contains(name string) bool {
	var walk func([]Item) bool
	walk = func(items []Item) bool {
		for _, it := range items {
			if it.Name == name || walk(it.Children) {
				return true
			}
		}
		return false
	}
	return walk(idx.Outline)
}

// Add appends name at the top level unless it is already listed.
func (idx *Index) Add(name string) bool {
	if idx.Contains(name) {
		return false
	}
	idx.Outline = append(idx.Outline, Item{Name: name})
	return true
}

// Remove deletes name from the outline. Its children move up to its position.
func (idx *Index) Remove(name string) bool {
	var walk func([]Item) ([]Item, bool)
	walk = func(items []Item) ([]Item, bool) {
		for i, it := range items {
			if it.Name == name {
				rest := append(append([]Item{}, it.Children...), items[i+1:]...)
				return append(items[:i:i], rest...), true
			}
			if children, ok := walk(it.Children); ok {
				items[i].Children = children
				return items, true
			}
		}
		return items, false
	}
	var removed bool
	idx.Outline, removed = walk(idx.Outline)
	return removed
}

// Reserve raises the high-water mark to n.
func (idx *Index) Reserve(n int) {
	if n > idx.Next {
		idx.Next = n
	}
}

// Entry is one document in display order.
type Entry struct {
	Name  string // filename
	ID    string
	Depth int
}

// NumberPattern matches numbered document filenames of a module and captures the number.
func NumberPattern(m *project.Module) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(m.Prefix) + regexp.QuoteMeta(m.Sep()) + `(\d+)\.md$`)
}

// Number extracts the document number from a filename.
func Number(m *project.Module, name string) (int, bool) {
	match := NumberPattern(m).FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Documents returns the document filenames in the module directory: files
// named with the module prefix and a .md extension.
func Documents(store storage.Provider, m *project.Module) ([]string, error) {
	entries, err := store.ReadDir(m.Path)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir || !strings.HasSuffix(e.Name, ".md") {
			continue
		}
		if len(e.Name) <= len(m.Prefix) || !strings.EqualFold(e.Name[:len(m.Prefix)], m.Prefix) {
			continue
		}
		out = append(out, e.Name)
	}
	return out, nil
}

// Items returns the module's documents in display order: outline entries
// that exist, then unlisted numbered documents by number, then the remaining
// documents by name.
func Items(store storage.Provider, m *project.Module) ([]Entry, error) {
	names, err := Documents(store, m)
	if err != nil {
		return nil, err
	}
	idx, err := Load(store, m)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[n] = true
	}

	var out []Entry
	seen := make(map[string]bool)
	var walk func(items []Item, depth int)
	walk = func(items []Item, depth int) {
		for _, it := range items {
			if existing[it.Name] && !seen[it.Name] {
				seen[it.Name] = true
				out = append(out, Entry{Name: it.Name, ID: strings.TrimSuffix(it.Name, ".md"), Depth: depth})
				walk(it.Children, depth+1)
				continue
			}
			walk(it.Children, depth)
		}
	}
	walk(idx.Outline, 0)

	var rest []string
	for _, n := range names {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		ni, iok := Number(m, rest[i])
		nj, jok := Number(m, rest[j])
		switch {
		case iok && jok:
			return ni < nj
		case iok != jok:
			return iok
		default:
			return rest[i] < rest[j]
		}
	})
	for _, n := range rest {
		out = append(out, Entry{Name: n, ID: strings.TrimSuffix(n, ".md")})
	}
	return out, nil
}

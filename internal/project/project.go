// Package project loads and maintains the module registry of a TextCase project.
//
// The project root is itself a module. Its .textcase.yml registers every other
// module under settings.modules as parent prefix → child prefix → path, and each
// module directory carries its own .textcase.yml.
package project

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/storage"
)

// Module is one prefixed container of documents.
type Module struct {
	Prefix string
	// Path is the slash-separated directory relative to the project root; "" for the root.
	Path   string
	Parent string
	Config Config
}

// Sep returns the separator between prefix and number.
func (m *Module) Sep() string { return m.Config.Settings.Sep }

// Digits returns the zero-padding width.
func (m *Module) Digits() int { return m.Config.Settings.Digits }

// DefaultTag returns the tags applied to documents with no explicit tag.
func (m *Module) DefaultTag() []string { return m.Config.Settings.DefaultTag }

// File returns the root-relative path of name inside the module directory.
func (m *Module) File(name string) string { return path.Join(m.Path, name) }

// Dir returns the module directory for display, "." for the root.
func (m *Module) Dir() string {
	if m.Path == "" {
		return "."
	}
	return m.Path
}

// Contains reports whether the root-relative path p lies inside the module directory.
func (m *Module) Contains(p string) bool {
	return m.Path == "" || p == m.Path || strings.HasPrefix(p, m.Path+"/")
}

// Project is the loaded module registry. It is read-only apart from the
// create operations, which rewrite configuration files and reload.
type Project struct {
	store    storage.Provider
	root     *Module
	modules  []*Module
	byPrefix map[string]*Module
	children map[string][]*Module
}

// Load reads the root configuration and every registered module.
func Load(store storage.Provider) (*Project, error) {
	rootCfg, err := readConfig(store, ConfigFile)
	if err != nil {
		return nil, err
	}

	p := &Project{
		store:    store,
		byPrefix: make(map[string]*Module),
		children: make(map[string][]*Module),
	}
	p.root = &Module{Prefix: rootCfg.Settings.Prefix, Config: rootCfg}
	p.add(p.root)

	if err := p.loadChildren(p.root, rootCfg.Settings.Modules); err != nil {
		return nil, err
	}
	for parent := range rootCfg.Settings.Modules {
		if _, ok := p.byPrefix[key(parent)]; !ok {
			return nil, fmt.Errorf("%w: modules registered under unknown parent %q", apperr.ErrConfig, parent)
		}
	}
	return p, nil
}

func (p *Project) loadChildren(parent *Module, registry map[string]map[string]string) error {
	var entries map[string]string
	for k, v := range registry {
		if strings.EqualFold(k, parent.Prefix) {
			entries = v
			break
		}
	}
	prefixes := make([]string, 0, len(entries))
	for prefix := range entries {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		dir, err := cleanModulePath(entries[prefix])
		if err != nil {
			return fmt.Errorf("%w: module %s: %v", apperr.ErrConfig, prefix, err)
		}
		if _, dup := p.byPrefix[key(prefix)]; dup {
			return fmt.Errorf("%w: prefix %s registered twice", apperr.ErrConfig, prefix)
		}
		cfg, err := readConfig(p.store, path.Join(dir, ConfigFile))
		if err != nil {
			return err
		}
		if !strings.EqualFold(cfg.Settings.Prefix, prefix) {
			return fmt.Errorf("%w: %s declares prefix %s, registered as %s",
				apperr.ErrConfig, path.Join(dir, ConfigFile), cfg.Settings.Prefix, prefix)
		}
		m := &Module{Prefix: cfg.Settings.Prefix, Path: dir, Parent: parent.Prefix, Config: cfg}
		p.add(m)
		p.children[key(parent.Prefix)] = append(p.children[key(parent.Prefix)], m)
		if err := p.loadChildren(m, registry); err != nil {
			return err
		}
	}
	return nil
}

func (p *Project) add(m *Module) {
	p.modules = append(p.modules, m)
	p.byPrefix[key(m.Prefix)] = m
}

func readConfig(store storage.Provider, file string) (Config, error) {
	data, err := store.Read(file)
	if err != nil {
		if storage.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s not found", apperr.ErrConfig, file)
		}
		return Config{}, fmt.Errorf("%w: %v", apperr.ErrConfig, err)
	}
	return parseConfig(data, file)
}

func key(prefix string) string { return strings.ToUpper(prefix) }

// cleanModulePath normalizes a module directory and rejects paths outside the root.
func cleanModulePath(p string) (string, error) {
	c := path.Clean(filepath.ToSlash(strings.TrimSpace(p)))
	switch {
	case c == "." || c == "":
		return "", errors.New("module path must not be the project root")
	case path.IsAbs(c) || c == ".." || strings.HasPrefix(c, "../"):
		return "", fmt.Errorf("module path %q must stay inside the project root", p)
	}
	return c, nil
}

// Store returns the storage the project was loaded from.
func (p *Project) Store() storage.Provider { return p.store }

// Root returns the root module.
func (p *Project) Root() *Module { return p.root }

// Modules returns every module, root first, then depth-first by prefix.
func (p *Project) Modules() []*Module {
	out := make([]*Module, len(p.modules))
	copy(out, p.modules)
	return out
}

// Module looks up a module by prefix, ignoring case.
func (p *Project) Module(prefix string) (*Module, error) {
	m, ok := p.byPrefix[key(prefix)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrModuleNotFound, prefix)
	}
	return m, nil
}

// Children returns the direct child modules of prefix.
func (p *Project) Children(prefix string) ([]*Module, error) {
	if _, err := p.Module(prefix); err != nil {
		return nil, err
	}
	return append([]*Module(nil), p.children[key(prefix)]...), nil
}

// Parent returns the parent module of prefix, or nil for the root.
func (p *Project) Parent(prefix string) (*Module, error) {
	m, err := p.Module(prefix)
	if err != nil {
		return nil, err
	}
	if m.Parent == "" {
		return nil, nil
	}
	return p.Module(m.Parent)
}

// ModuleForPath returns the deepest module whose directory contains the
// root-relative path p.
func (p *Project) ModuleForPath(rel string) *Module {
	rel = path.Clean(filepath.ToSlash(rel))
	best := p.root
	for _, m := range p.modules {
		if m.Path != "" && m.Contains(rel) && len(m.Path) > len(best.Path) {
			best = m
		}
	}
	return best
}

// Tags returns the verbs available to a module, mapped to their root-relative
// files: the module's own tags plus those of every ancestor. Nearer
// definitions win.
func (p *Project) Tags(prefix string) (map[string]string, error) {
	m, err := p.Module(prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for m != nil {
		for verb, file := range m.Config.Tags {
			if _, ok := out[verb]; ok {
				continue
			}
			if file == "" {
				file = TagFile(verb)
			}
			out[verb] = path.Clean(filepath.ToSlash(file))
		}
		if m.Parent == "" {
			break
		}
		m = p.byPrefix[key(m.Parent)]
	}
	return out, nil
}

// AllTags returns every verb defined anywhere in the project.
func (p *Project) AllTags() map[string]string {
	out := make(map[string]string)
	for _, m := range p.modules {
		for verb, file := range m.Config.Tags {
			if _, ok := out[verb]; ok {
				continue
			}
			if file == "" {
				file = TagFile(verb)
			}
			out[verb] = path.Clean(filepath.ToSlash(file))
		}
	}
	return out
}

// FindRoot walks up from start to the first directory holding a .textcase.yml.
// The search stops at a directory containing .git.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%w: no %s found from %s", apperr.ErrConfig, ConfigFile, start)
}

// Identify reports the module and document ID of a root-relative Markdown
// path. Only files placed directly in a module directory and named with the
// module prefix are documents.
func (p *Project) Identify(rel string) (prefix, id string, ok bool) {
	rel = path.Clean(filepath.ToSlash(rel))
	if !strings.HasSuffix(rel, ".md") {
		return "", "", false
	}
	m := p.ModuleForPath(rel)
	dir, name := path.Split(rel)
	if strings.TrimSuffix(dir, "/") != m.Path {
		return "", "", false
	}
	id = strings.TrimSuffix(name, ".md")
	if len(id) <= len(m.Prefix) || !strings.EqualFold(id[:len(m.Prefix)], m.Prefix) {
		return "", "", false
	}
	return m.Prefix, id, true
}

package project

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/storage"
)

// Spec describes a module to create.
type Spec struct {
	Prefix string
	Path   string
	Parent string
	Sep    string
	// Digits is the zero padding; nil selects DefaultDigits.
	Digits     *int
	DefaultTag []string
}

func (s Spec) settings() Settings {
	digits := DefaultDigits
	if s.Digits != nil {
		digits = *s.Digits
	}
	return Settings{Prefix: s.Prefix, Sep: s.Sep, Digits: digits, DefaultTag: TagList(s.DefaultTag)}
}

// Init creates the root configuration and returns the loaded project.
func Init(store storage.Provider, spec Spec) (*Project, error) {
	exists, err := store.Exists(ConfigFile)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: project already initialized", apperr.ErrAlreadyExists)
	}
	cfg := Config{Settings: spec.settings()}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrConfig, err)
	}
	if err := writeConfig(store, ConfigFile, cfg); err != nil {
		return nil, err
	}
	return Load(store)
}

// CreateModule registers a new module below its parent (the root by default)
// and writes its configuration.
func (p *Project) CreateModule(spec Spec) (*Module, error) {
	cfg := Config{Settings: spec.settings()}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrConfig, err)
	}
	dir, err := cleanModulePath(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrConfig, err)
	}

	unlock, err := p.store.Lock("")
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload under the lock so concurrent creates see each other.
	current, err := Load(p.store)
	if err != nil {
		return nil, err
	}
	*p = *current

	parent := p.root
	if spec.Parent != "" {
		if parent, err = p.Module(spec.Parent); err != nil {
			return nil, err
		}
	}
	if _, err := p.Module(spec.Prefix); err == nil {
		return nil, fmt.Errorf("%w: prefix %s", apperr.ErrDuplicateModule, spec.Prefix)
	}
	for _, m := range p.modules {
		if m.Path == dir {
			return nil, fmt.Errorf("%w: %s already belongs to %s", apperr.ErrDuplicateModule, dir, m.Prefix)
		}
	}
	if !parent.Contains(dir) {
		return nil, fmt.Errorf("%w: %s is outside parent module %s", apperr.ErrConfig, dir, parent.Prefix)
	}
	file := path.Join(dir, ConfigFile)
	if exists, err := p.store.Exists(file); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, file)
	}

	if err := writeConfig(p.store, file, cfg); err != nil {
		return nil, err
	}
	rootCfg := p.root.Config
	rootCfg.Settings.Modules = cloneRegistry(rootCfg.Settings.Modules)
	if rootCfg.Settings.Modules[parent.Prefix] == nil {
		rootCfg.Settings.Modules[parent.Prefix] = make(map[string]string)
	}
	rootCfg.Settings.Modules[parent.Prefix][spec.Prefix] = dir
	if err := writeConfig(p.store, ConfigFile, rootCfg); err != nil {
		return nil, err
	}

	if err := p.reload(); err != nil {
		return nil, err
	}
	return p.Module(spec.Prefix)
}

// DefineTag adds a tag verb to a module configuration. An empty file maps the
// verb to the default location under .textcase/tags.
func (p *Project) DefineTag(prefix, verb, file string) error {
	if !ValidVerb(verb) {
		return fmt.Errorf("%w: invalid tag verb %q", apperr.ErrConfig, verb)
	}
	m, err := p.Module(prefix)
	if err != nil {
		return err
	}
	if file == "" {
		file = TagFile(verb)
	}
	file = path.Clean(filepath.ToSlash(file))
	if path.IsAbs(file) || strings.HasPrefix(file, "../") {
		return fmt.Errorf("%w: tag file %q must stay inside the project root", apperr.ErrConfig, file)
	}

	cfg := m.Config
	tags := make(map[string]string, len(cfg.Tags)+1)
	for k, v := range cfg.Tags {
		tags[k] = v
	}
	tags[verb] = file
	cfg.Tags = tags
	if err := writeConfig(p.store, m.File(ConfigFile), cfg); err != nil {
		return err
	}
	return p.reload()
}

func (p *Project) reload() error {
	np, err := Load(p.store)
	if err != nil {
		return err
	}
	*p = *np
	return nil
}

func writeConfig(store storage.Provider, file string, cfg Config) error {
	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	if err := store.Write(file, data); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	return nil
}

func cloneRegistry(in map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(in)+1)
	for parent, children := range in {
		c := make(map[string]string, len(children))
		for k, v := range children {
			c[k] = v
		}
		out[parent] = c
	}
	return out
}

// Package tags maintains the tag index: one YAML file per tag verb mapping
// tag names to the documents and directories that carry them.
package tags

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/order"
	"github.com/coreseekdev/textcase/internal/project"
	"github.com/coreseekdev/textcase/internal/storage"
	pkgconfig "github.com/coreseekdev/textcase/pkg/config"
)

// Ref is a tag reference: a verb with an optional name ("status:draft").
type Ref struct {
	Verb string
	Name string
}

// ParseRef parses "verb" or "verb:name".
func ParseRef(s string) (Ref, error) {
	verb, name, _ := strings.Cut(strings.TrimSpace(s), ":")
	ref := Ref{Verb: strings.TrimSpace(verb), Name: strings.TrimSpace(name)}
	if !project.ValidVerb(ref.Verb) {
		return Ref{}, fmt.Errorf("%w: invalid tag %q", apperr.ErrTagUndefined, s)
	}
	return ref, nil
}

// ParseRefs parses a comma-separated list of tag references.
func ParseRefs(s string) ([]Ref, error) {
	var out []Ref
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ref, err := ParseRef(part)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// ParseList parses a list of references; each item may itself be
// comma-separated.
func ParseList(items []string) ([]Ref, error) {
	var out []Ref
	for _, it := range items {
		refs, err := ParseRefs(it)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

// String formats the reference as "verb" or "verb:name".
func (r Ref) String() string {
	if r.Name == "" {
		return r.Verb
	}
	return r.Verb + ":" + r.Name
}

// name is the tag name entries are stored under; a bare verb uses itself.
func (r Ref) name() string {
	if r.Name == "" {
		return r.Verb
	}
	return r.Name
}

// Entry is one tag name of a verb with its explicit entries.
type Entry struct {
	Ref   Ref
	Paths []string
}

// mapping is the content of a verb file: tag name → root-relative paths.
type mapping map[string][]string

// Index reads and writes verb files of a project.
type Index struct {
	project *project.Project
	store   storage.Provider
}

// New creates a tag index for p.
func New(p *project.Project) *Index {
	return &Index{project: p, store: p.Store()}
}

// Tag adds path under ref in the verb file. The verb must be available to
// the module owning path. Tagging twice is a no-op.
func (x *Index) Tag(p string, ref Ref) error {
	p, err := x.existing(p)
	if err != nil {
		return err
	}
	file, err := x.verbFile(p, ref.Verb)
	if err != nil {
		return err
	}
	return x.update(file, func(m mapping) {
		name := ref.name()
		for _, e := range m[name] {
			if e == p {
				return
			}
		}
		m[name] = append(m[name], p)
	})
}

// Untag removes path from ref. Names left empty are dropped, and an empty
// verb file is deleted.
func (x *Index) Untag(p string, ref Ref) error {
	p = clean(p)
	file, err := x.verbFile(p, ref.Verb)
	if err != nil {
		return err
	}
	return x.update(file, func(m mapping) {
		name := ref.name()
		kept := m[name][:0]
		for _, e := range m[name] {
			if e != p {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(m, name)
			return
		}
		m[name] = kept
	})
}

// TagsFor returns the tags carried by path directly or through an ancestor
// directory. A document with no explicit tag gets its module's default tag.
func (x *Index) TagsFor(p string) ([]Ref, error) {
	p = clean(p)
	m := x.project.ModuleForPath(p)
	verbs, err := x.project.Tags(m.Prefix)
	if err != nil {
		return nil, err
	}
	all, err := x.load(verbs)
	if err != nil {
		return nil, err
	}
	refs := explicitTags(all, p)
	if len(refs) == 0 {
		return ParseList(m.DefaultTag())
	}
	return refs, nil
}

// DocumentsForTag returns the documents carrying ref: explicit entries with
// directories expanded, plus untagged documents of modules whose default tag
// matches. A ref without a name matches every name of the verb.
func (x *Index) DocumentsForTag(ref Ref) ([]string, error) {
	verbs := x.project.AllTags()
	defaulted := x.defaultModules(ref)
	if _, ok := verbs[ref.Verb]; !ok && len(defaulted) == 0 {
		return nil, fmt.Errorf("%w: %s", apperr.ErrTagUndefined, ref.Verb)
	}
	all, err := x.load(verbs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for name, entries := range all[ref.Verb] {
		if ref.Name != "" && name != ref.Name {
			continue
		}
		for _, e := range entries {
			docs, err := x.expand(e)
			if err != nil {
				return nil, err
			}
			for _, d := range docs {
				seen[d] = true
			}
		}
	}

	for _, m := range defaulted {
		names, err := order.Documents(x.store, m)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			doc := m.File(n)
			if len(explicitTags(all, doc)) == 0 {
				seen[doc] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// List returns every tag name of every defined verb, sorted.
func (x *Index) List() ([]Entry, error) {
	all, err := x.load(x.project.AllTags())
	if err != nil {
		return nil, err
	}
	var out []Entry
	for verb, names := range all {
		for name, paths := range names {
			out = append(out, Entry{Ref: Ref{Verb: verb, Name: name}, Paths: paths})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ref.Verb != out[j].Ref.Verb {
			return out[i].Ref.Verb < out[j].Ref.Verb
		}
		return out[i].Ref.Name < out[j].Ref.Name
	})
	return out, nil
}

func (x *Index) defaultModules(ref Ref) []*project.Module {
	var out []*project.Module
	for _, m := range x.project.Modules() {
		refs, err := ParseList(m.DefaultTag())
		if err != nil {
			continue
		}
		for _, d := range refs {
			if d.Verb == ref.Verb && (ref.Name == "" || d.name() == ref.Name) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (x *Index) verbFile(p, verb string) (string, error) {
	m := x.project.ModuleForPath(p)
	verbs, err := x.project.Tags(m.Prefix)
	if err != nil {
		return "", err
	}
	file, ok := verbs[verb]
	if !ok {
		return "", fmt.Errorf("%w: %s is not available in module %s", apperr.ErrTagUndefined, verb, m.Prefix)
	}
	return file, nil
}

func (x *Index) existing(p string) (string, error) {
	p = clean(p)
	ok, err := x.store.Exists(p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", apperr.ErrDocumentNotFound, p)
	}
	return p, nil
}

// expand turns an entry into document paths; directories yield every
// document below them.
func (x *Index) expand(entry string) ([]string, error) {
	if strings.HasSuffix(entry, ".md") {
		ok, err := x.store.Exists(entry)
		if err != nil || !ok {
			return nil, err
		}
		return []string{entry}, nil
	}
	files, err := x.store.List(entry)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, f := range files {
		if _, _, ok := x.project.Identify(f.Path); ok {
			out = append(out, f.Path)
		}
	}
	return out, nil
}

// load reads the verb files of verbs. Missing files are empty.
func (x *Index) load(verbs map[string]string) (map[string]mapping, error) {
	out := make(map[string]mapping, len(verbs))
	for verb, file := range verbs {
		m, err := x.read(file)
		if err != nil {
			return nil, err
		}
		out[verb] = m
	}
	return out, nil
}

func (x *Index) read(file string) (mapping, error) {
	m := make(mapping)
	data, err := x.store.Read(file)
	if err != nil {
		if storage.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrConfig, file, err)
	}
	if m == nil {
		m = make(mapping)
	}
	return m, nil
}

func (x *Index) update(file string, fn func(mapping)) error {
	unlock, err := x.store.Lock(path.Dir(file))
	if err != nil {
		return err
	}
	defer unlock()

	m, err := x.read(file)
	if err != nil {
		return err
	}
	fn(m)
	if len(m) == 0 {
		if err := x.store.Delete(file); err != nil && !storage.IsNotExist(err) {
			return err
		}
		return nil
	}
	data, err := pkgconfig.Marshal(m)
	if err != nil {
		return err
	}
	return x.store.Write(file, data)
}

func explicitTags(all map[string]mapping, p string) []Ref {
	var out []Ref
	for verb, names := range all {
		for name, entries := range names {
			for _, e := range entries {
				if covers(e, p) {
					out = append(out, Ref{Verb: verb, Name: name})
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// covers reports whether entry is p or an ancestor directory of p.
func covers(entry, p string) bool {
	entry = clean(entry)
	return entry == p || entry == "." || strings.HasPrefix(p, entry+"/")
}

func clean(p string) string {
	return path.Clean(filepath.ToSlash(strings.TrimPrefix(p, "./")))
}

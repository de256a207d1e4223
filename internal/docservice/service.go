// Package docservice implements the document operations shared by the CLI
// and the MCP server on top of the registry, resolver, link graph and tag index.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/editor"
	"github.com/coreseekdev/textcase/internal/index"
	"github.com/coreseekdev/textcase/internal/links"
	"github.com/coreseekdev/textcase/internal/models"
	"github.com/coreseekdev/textcase/internal/order"
	"github.com/coreseekdev/textcase/internal/parser"
	"github.com/coreseekdev/textcase/internal/project"
	"github.com/coreseekdev/textcase/internal/resolver"
	"github.com/coreseekdev/textcase/internal/storage"
	"github.com/coreseekdev/textcase/internal/tags"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Service orchestrates document operations for one project.
type Service struct {
	store  storage.Provider
	db     index.LinkIndex
	logger *slog.Logger

	project  *project.Project
	resolver *resolver.Resolver
	links    *links.Graph
	tags     *tags.Index
}

// New creates a service. The project is loaded from store when it has been
// initialized; otherwise only CreateModule is available. db may be nil, in
// which case backlink queries are unavailable.
func New(store storage.Provider, db index.LinkIndex, logger *slog.Logger) (*Service, error) {
	s := &Service{store: store, db: db, logger: logger}
	exists, err := store.Exists(project.ConfigFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		return s, nil
	}
	p, err := project.Load(store)
	if err != nil {
		return nil, err
	}
	s.bind(p)
	return s, nil
}

func (s *Service) bind(p *project.Project) {
	s.project = p
	s.resolver = resolver.New(p)
	s.links = links.New(s.resolver, s.store)
	s.tags = tags.New(p)
}

func (s *Service) requireProject() error {
	if s.project == nil {
		return fmt.Errorf("%w: no %s found, run 'textcase create <PREFIX> .' first", apperr.ErrConfig, project.ConfigFile)
	}
	return nil
}

// Project returns the loaded project, or nil before initialization.
func (s *Service) Project() *project.Project { return s.project }

// Modules returns every module, root first.
func (s *Service) Modules() ([]*project.Module, error) {
	if err := s.requireProject(); err != nil {
		return nil, err
	}
	return s.project.Modules(), nil
}

// Children returns the direct submodules of prefix.
func (s *Service) Children(prefix string) ([]*project.Module, error) {
	if err := s.requireProject(); err != nil {
		return nil, err
	}
	return s.project.Children(prefix)
}

// CreateModule creates a module. The first module must be created at the
// project root ("."), which initializes the project.
func (s *Service) CreateModule(spec project.Spec) (*project.Module, error) {
	root := spec.Path == "" || spec.Path == "."
	if s.project == nil {
		if !root {
			return nil, s.requireProject()
		}
		p, err := project.Init(s.store, spec)
		if err != nil {
			return nil, err
		}
		s.bind(p)
		s.logger.Info("project initialized", slog.String("prefix", p.Root().Prefix))
		return p.Root(), nil
	}
	if root {
		return nil, fmt.Errorf("%w: project already initialized with prefix %s", apperr.ErrAlreadyExists, s.project.Root().Prefix)
	}
	m, err := s.project.CreateModule(spec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("module created", slog.String("prefix", m.Prefix), slog.String("path", m.Path))
	return m, nil
}

// AddOptions controls AddDocument.
type AddOptions struct {
	// Name is a custom number or name; empty allocates the next number.
	Name string
	// Message becomes the heading text after the ID.
	Message string
}

// AddDocument creates a document skeleton in the module and appends it to
// the module order.
func (s *Service) AddDocument(prefix string, opts AddOptions) (models.Document, error) {
	if err := s.requireProject(); err != nil {
		return models.Document{}, err
	}
	m, err := s.project.Module(prefix)
	if err != nil {
		return models.Document{}, err
	}

	var (
		id     string
		number int
	)
	switch name := strings.TrimSpace(opts.Name); {
	case name == "":
		if number, err = s.resolver.AllocateNext(m); err != nil {
			return models.Document{}, err
		}
		id = resolver.Format(m, number)
	case isDigits(name):
		number, _ = strconv.Atoi(name)
		if number <= 0 {
			return models.Document{}, fmt.Errorf("%w: document number must be positive", apperr.ErrConfig)
		}
		id = resolver.Format(m, number)
	case nameRe.MatchString(name):
		id = m.Prefix + m.Sep() + name
	default:
		return models.Document{}, fmt.Errorf("%w: invalid document name %q", apperr.ErrConfig, opts.Name)
	}

	p := resolver.Path(m, id)
	if taken, err := s.taken(m, p, number); err != nil {
		return models.Document{}, err
	} else if taken {
		return models.Document{}, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, id)
	}

	heading := "# " + id
	if msg := strings.TrimSpace(opts.Message); msg != "" {
		heading += ": " + msg
	}
	if err := s.store.Write(p, []byte(heading+"\n\n")); err != nil {
		return models.Document{}, err
	}
	err = order.Update(s.store, m, func(idx *order.Index) error {
		idx.Reserve(number)
		idx.Add(id + ".md")
		return nil
	})
	if err != nil {
		return models.Document{}, err
	}
	s.reindex(p)

	s.logger.Debug("document added", slog.String("id", id), slog.String("path", p))
	return models.Document{ID: id, Prefix: m.Prefix, Path: p, Title: strings.TrimPrefix(heading, "# ")}, nil
}

// RemoveDocument deletes a document and drops it from the order. Its number
// stays reserved.
func (s *Service) RemoveDocument(id string) error {
	ref, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ref.Path); err != nil {
		return err
	}
	err = order.Update(s.store, ref.Module, func(idx *order.Index) error {
		idx.Remove(ref.ID + ".md")
		return nil
	})
	if err != nil {
		return err
	}
	if s.db != nil {
		if err := s.db.DeleteDocument(ref.Path); err != nil {
			s.logger.Warn("index delete failed", slog.String("path", ref.Path), slog.String("error", err.Error()))
		}
	}
	return nil
}

// Resolve resolves a partial ID to an existing document.
func (s *Service) Resolve(id string) (models.Document, error) {
	ref, err := s.resolve(id)
	if err != nil {
		return models.Document{}, err
	}
	data, err := s.store.Read(ref.Path)
	if err != nil {
		return models.Document{}, err
	}
	return document(ref, data), nil
}

// Read returns a document and its raw content.
func (s *Service) Read(id string) (models.Document, []byte, error) {
	ref, err := s.resolve(id)
	if err != nil {
		return models.Document{}, nil, err
	}
	data, err := s.store.Read(ref.Path)
	if err != nil {
		return models.Document{}, nil, err
	}
	return document(ref, data), data, nil
}

// Details is everything Show reports about a document.
type Details struct {
	models.Document
	Links     []models.Link   `json:"links"`
	Tags      []string        `json:"tags"`
	Backlinks []index.LinkRow `json:"backlinks"`
}

// Show returns a document with its links, tags and backlinks.
func (s *Service) Show(id string) (*Details, error) {
	doc, data, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	d := &Details{Document: doc}

	parsed, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doc.ID, err)
	}
	if d.Links, err = parsed.Links(); err != nil {
		return nil, fmt.Errorf("%s: %w", doc.ID, err)
	}
	refs, err := s.tags.TagsFor(doc.Path)
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		d.Tags = append(d.Tags, r.String())
	}
	if s.db != nil {
		if d.Backlinks, err = s.Backlinks(doc.ID); err != nil {
			return nil, err
		}
	}
	d.Links = nonNilSlice(d.Links)
	d.Tags = nonNilSlice(d.Tags)
	d.Backlinks = nonNilSlice(d.Backlinks)
	return d, nil
}

// Entry is one document in a listing.
type Entry struct {
	models.Document
	Depth int `json:"depth"`
}

// List returns the documents of one module in display order, or of every
// module when prefix is empty.
func (s *Service) List(prefix string) ([]Entry, error) {
	if err := s.requireProject(); err != nil {
		return nil, err
	}
	modules := s.project.Modules()
	if prefix != "" {
		m, err := s.project.Module(prefix)
		if err != nil {
			return nil, err
		}
		modules = []*project.Module{m}
	}

	out := []Entry{}
	for _, m := range modules {
		items, err := order.Items(s.store, m)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			p := m.File(it.Name)
			doc := models.Document{ID: it.ID, Prefix: m.Prefix, Path: p}
			if data, err := s.store.Read(p); err == nil {
				doc.Title = title(data)
			}
			out = append(out, Entry{Document: doc, Depth: it.Depth})
		}
	}
	return out, nil
}

// Link adds a labeled edge between two documents.
func (s *Service) Link(source, target, label string) error {
	if err := s.requireProject(); err != nil {
		return err
	}
	if err := s.links.Link(source, target, label); err != nil {
		return err
	}
	s.reindexID(source)
	return nil
}

// Unlink removes a label, or the whole edge when label is empty.
func (s *Service) Unlink(source, target, label string) error {
	if err := s.requireProject(); err != nil {
		return err
	}
	if err := s.links.Unlink(source, target, label); err != nil {
		return err
	}
	s.reindexID(source)
	return nil
}

// Clear removes every outgoing link of a document.
func (s *Service) Clear(source string) error {
	if err := s.requireProject(); err != nil {
		return err
	}
	if err := s.links.Clear(source); err != nil {
		return err
	}
	s.reindexID(source)
	return nil
}

// Links returns the outgoing links of a document.
func (s *Service) Links(source string) ([]models.Link, error) {
	if err := s.requireProject(); err != nil {
		return nil, err
	}
	l, err := s.links.Links(source)
	return nonNilSlice(l), err
}

// Backlinks returns the edges pointing at a document, refreshing the index first.
func (s *Service) Backlinks(id string) ([]index.LinkRow, error) {
	ref, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if err := s.Sync(); err != nil {
		return nil, err
	}
	rows, err := s.db.Backlinks(ref.ID)
	return nonNilSlice(rows), err
}

// Check returns every link whose target does not exist.
func (s *Service) Check() ([]index.LinkRow, error) {
	if err := s.Sync(); err != nil {
		return nil, err
	}
	rows, err := s.db.Dangling()
	return nonNilSlice(rows), err
}

// Sync brings the link index up to date with the project files.
func (s *Service) Sync() error {
	if err := s.requireProject(); err != nil {
		return err
	}
	if s.db == nil {
		return errors.New("link index not available")
	}
	return index.Sync(s.db, s.store, s.project, s.logger)
}

// Edit opens a document in the editor and reports whether it changed.
func (s *Service) Edit(ctx context.Context, ed *editor.Editor, id string) (bool, error) {
	ref, err := s.resolve(id)
	if err != nil {
		return false, err
	}
	changed, err := ed.Edit(ctx, s.store, ref.Path)
	if err != nil {
		return false, err
	}
	if changed {
		s.reindex(ref.Path)
	}
	return changed, nil
}

// AddInteractive adds a document and opens it in the editor. When the
// editor fails or the skeleton is left unchanged the document is removed
// again; its number stays reserved.
func (s *Service) AddInteractive(ctx context.Context, ed *editor.Editor, prefix string, opts AddOptions) (models.Document, bool, error) {
	doc, err := s.AddDocument(prefix, opts)
	if err != nil {
		return models.Document{}, false, err
	}
	changed, err := s.Edit(ctx, ed, doc.ID)
	if err != nil || !changed {
		if rmErr := s.RemoveDocument(doc.ID); rmErr != nil {
			s.logger.Warn("remove cancelled document failed", slog.String("id", doc.ID), slog.String("error", rmErr.Error()))
		}
		return doc, false, err
	}
	return doc, true, nil
}

// taken reports whether p exists or, for numbered documents, whether another
// file already carries the same number.
func (s *Service) taken(m *project.Module, p string, number int) (bool, error) {
	exists, err := s.store.Exists(p)
	if err != nil || exists || number == 0 {
		return exists, err
	}
	names, err := order.Documents(s.store, m)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if n, ok := order.Number(m, name); ok && n == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) resolve(id string) (resolver.Ref, error) {
	if err := s.requireProject(); err != nil {
		return resolver.Ref{}, err
	}
	return s.resolver.Resolve(id)
}

// reindex refreshes one document in the link index; failures only log.
func (s *Service) reindex(p string) {
	if s.db == nil {
		return
	}
	data, err := s.store.Read(p)
	if err != nil {
		s.logger.Warn("reindex: read failed", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	if err := index.IndexFile(s.db, s.project, p, data); err != nil {
		s.logger.Warn("reindex failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

func (s *Service) reindexID(id string) {
	if ref, err := s.resolver.Resolve(id); err == nil {
		s.reindex(ref.Path)
	}
}

func document(ref resolver.Ref, data []byte) models.Document {
	return models.Document{ID: ref.ID, Prefix: ref.Module.Prefix, Path: ref.Path, Title: title(data)}
}

func title(data []byte) string {
	if doc, err := parser.Parse(data); err == nil {
		return doc.Title()
	}
	return parser.HeadingTitle(data)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// nonNilSlice returns s if non-nil, otherwise an empty slice.
// This ensures JSON serialization produces [] instead of null.
func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

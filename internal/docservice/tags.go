package docservice

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/models"
	"github.com/coreseekdev/textcase/internal/tags"
)

// Tag attaches tag ("verb" or "verb:name") to a document ID or a project
// path. With force an undefined verb is first defined on the owning module.
func (s *Service) Tag(tag, target string, force bool) error {
	ref, p, err := s.tagArgs(tag, target)
	if err != nil {
		return err
	}
	err = s.tags.Tag(p, ref)
	if errors.Is(err, apperr.ErrTagUndefined) && force {
		m := s.project.ModuleForPath(p)
		if err := s.project.DefineTag(m.Prefix, ref.Verb, ""); err != nil {
			return err
		}
		s.logger.Info("tag defined", slog.String("verb", ref.Verb), slog.String("module", m.Prefix))
		err = s.tags.Tag(p, ref)
	}
	return err
}

// Untag detaches tag from a document ID or project path.
func (s *Service) Untag(tag, target string) error {
	ref, p, err := s.tagArgs(tag, target)
	if err != nil {
		return err
	}
	return s.tags.Untag(p, ref)
}

// TagsFor returns the tags of a document ID or project path.
func (s *Service) TagsFor(target string) ([]string, error) {
	if err := s.requireProject(); err != nil {
		return nil, err
	}
	p, err := s.target(target)
	if err != nil {
		return nil, err
	}
	refs, err := s.tags.TagsFor(p)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out, nil
}

// DocumentsForTag returns the documents carrying tag.
func (s *Service) DocumentsForTag(tag string) ([]models.Document, error) {
	if err := s.requireProject(); err != nil {
		return nil, err
	}
	ref, err := tags.ParseRef(tag)
	if err != nil {
		return nil, err
	}
	paths, err := s.tags.DocumentsForTag(ref)
	if err != nil {
		return nil, err
	}
	out := []models.Document{}
	for _, p := range paths {
		prefix, id, ok := s.project.Identify(p)
		if !ok {
			continue
		}
		doc := models.Document{ID: id, Prefix: prefix, Path: p}
		if data, err := s.store.Read(p); err == nil {
			doc.Title = title(data)
		}
		out = append(out, doc)
	}
	return out, nil
}

// ListTags returns every tag name in use with its explicit entries.
func (s *Service) ListTags() ([]tags.Entry, error) {
	if err := s.requireProject(); err != nil {
		return nil, err
	}
	return s.tags.List()
}

func (s *Service) tagArgs(tag, target string) (tags.Ref, string, error) {
	if err := s.requireProject(); err != nil {
		return tags.Ref{}, "", err
	}
	ref, err := tags.ParseRef(tag)
	if err != nil {
		return tags.Ref{}, "", err
	}
	p, err := s.target(target)
	if err != nil {
		return tags.Ref{}, "", err
	}
	return ref, p, nil
}

// target accepts a document ID or an existing root-relative path.
func (s *Service) target(arg string) (string, error) {
	ref, err := s.resolver.Resolve(arg)
	if err == nil {
		return ref.Path, nil
	}
	p := path.Clean(filepath.ToSlash(arg))
	if exists, statErr := s.store.Exists(p); statErr == nil && exists {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", arg, err)
}

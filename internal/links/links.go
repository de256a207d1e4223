// Package links manages the labeled link graph stored in document frontmatter.
package links

import (
	"fmt"
	"strings"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/models"
	"github.com/coreseekdev/textcase/internal/parser"
	"github.com/coreseekdev/textcase/internal/resolver"
	"github.com/coreseekdev/textcase/internal/storage"
)

// Graph edits the outgoing links of documents.
type Graph struct {
	resolver *resolver.Resolver
	store    storage.Provider
}

// New creates a link graph manager.
func New(r *resolver.Resolver, store storage.Provider) *Graph {
	return &Graph{resolver: r, store: store}
}

// Link adds an edge from source to target, with label when it is non-empty.
// Both documents must exist. Linking an existing edge or label is a no-op.
func (g *Graph) Link(source, target, label string) error {
	if label != "" && strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: blank label", apperr.ErrLinkTargetInvalid)
	}
	label = strings.TrimSpace(label)

	src, err := g.resolver.Resolve(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	tgt, err := g.resolver.Resolve(target)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	return g.edit(src, func(links []models.Link) ([]models.Link, bool, error) {
		i := find(links, tgt.ID)
		if i < 0 {
			l := models.Link{Target: tgt.ID, Labels: []string{}}
			if label != "" {
				l.Labels = append(l.Labels, label)
			}
			return append(links, l), true, nil
		}
		if label == "" || contains(links[i].Labels, label) {
			return links, false, nil
		}
		links[i].Labels = append(links[i].Labels, label)
		return links, true, nil
	})
}

// Unlink removes label from the edge source → target, or the whole edge when
// label is empty. The target does not need to exist any more.
func (g *Graph) Unlink(source, target, label string) error {
	src, err := g.resolver.Resolve(source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	targetID := strings.TrimSpace(target)
	if ref, err := g.resolver.Parse(target); err == nil {
		targetID = ref.ID
	}
	label = strings.TrimSpace(label)

	return g.edit(src, func(links []models.Link) ([]models.Link, bool, error) {
		i := find(links, targetID)
		if i < 0 {
			return nil, false, fmt.Errorf("%w: %s does not link to %s", apperr.ErrLinkTargetInvalid, src.ID, targetID)
		}
		if label == "" {
			return append(links[:i], links[i+1:]...), true, nil
		}
		j := index(links[i].Labels, label)
		if j < 0 {
			return nil, false, fmt.Errorf("%w: link %s → %s has no label %q", apperr.ErrLinkTargetInvalid, src.ID, targetID, label)
		}
		links[i].Labels = append(links[i].Labels[:j], links[i].Labels[j+1:]...)
		return links, true, nil
	})
}

// Clear removes every outgoing edge of source.
func (g *Graph) Clear(source string) error {
	src, err := g.resolver.Resolve(source)
	if err != nil {
		return err
	}
	return g.edit(src, func(links []models.Link) ([]models.Link, bool, error) {
		return nil, len(links) > 0, nil
	})
}

// Links returns the outgoing edges of source in stored order.
func (g *Graph) Links(source string) ([]models.Link, error) {
	src, err := g.resolver.Resolve(source)
	if err != nil {
		return nil, err
	}
	data, err := g.store.Read(src.Path)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Links()
}

// edit rewrites the source frontmatter under the module lock when fn reports
// a change. The body bytes are written back unchanged.
func (g *Graph) edit(src resolver.Ref, fn func([]models.Link) ([]models.Link, bool, error)) error {
	unlock, err := g.store.Lock(src.Module.Path)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := g.store.Read(src.Path)
	if err != nil {
		if storage.IsNotExist(err) {
			return fmt.Errorf("%w: %s", apperr.ErrDocumentNotFound, src.ID)
		}
		return err
	}
	doc, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", src.ID, err)
	}
	current, err := doc.Links()
	if err != nil {
		return fmt.Errorf("%s: %w", src.ID, err)
	}
	updated, changed, err := fn(current)
	if err != nil || !changed {
		return err
	}
	doc.SetLinks(updated)
	out, err := doc.Render()
	if err != nil {
		return err
	}
	return g.store.Write(src.Path, out)
}

func find(links []models.Link, target string) int {
	for i, l := range links {
		if strings.EqualFold(l.Target, target) {
			return i
		}
	}
	return -1
}

func index(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}

func contains(labels []string, label string) bool {
	return index(labels, label) >= 0
}

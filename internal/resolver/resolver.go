// Package resolver turns user-typed document identifiers into canonical
// document references and allocates new document numbers.
package resolver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/order"
	"github.com/coreseekdev/textcase/internal/project"
	"github.com/coreseekdev/textcase/internal/storage"
)

// Ref is a resolved document identifier.
type Ref struct {
	Module *project.Module
	// ID is the canonical identifier, e.g. REQ001.
	ID string
	// Path is the root-relative document path.
	Path string
	// Number is the document number, 0 for named documents.
	Number int
	// Exists reports whether the document file was found.
	Exists bool
}

// Resolver parses identifiers against a loaded project.
type Resolver struct {
	project *project.Project
	store   storage.Provider
}

// New creates a resolver for p.
func New(p *project.Project) *Resolver {
	return &Resolver{project: p, store: p.Store()}
}

// Format builds the canonical ID of document n in module m.
func Format(m *project.Module, n int) string {
	return fmt.Sprintf("%s%s%0*d", m.Prefix, m.Sep(), m.Digits(), n)
}

// Path returns the root-relative path of the document id in module m.
func Path(m *project.Module, id string) string {
	return m.File(id + ".md")
}

// Parse resolves id to a reference without requiring the document to exist.
// Matching is case-insensitive. Every module whose prefix starts the input is
// a candidate split point; the remainder (after an optional separator) must be
// a number, or the name of an existing document. When more than one split is
// valid the one backed by an existing file wins; otherwise the input is
// ambiguous.
func (r *Resolver) Parse(id string) (Ref, error) {
	input := strings.TrimSuffix(strings.TrimSpace(id), ".md")
	if input == "" {
		return Ref{}, fmt.Errorf("%w: empty id", apperr.ErrDocumentNotFound)
	}

	var (
		candidates    []Ref
		prefixMatched bool
	)
	for _, m := range r.project.Modules() {
		if len(input) < len(m.Prefix) || !strings.EqualFold(input[:len(m.Prefix)], m.Prefix) {
			continue
		}
		prefixMatched = true
		rest := input[len(m.Prefix):]
		if sep := m.Sep(); sep != "" && len(rest) >= len(sep) && strings.EqualFold(rest[:len(sep)], sep) {
			rest = rest[len(sep):]
		}
		if rest == "" {
			continue
		}
		ref, ok, err := r.candidate(m, rest)
		if err != nil {
			return Ref{}, err
		}
		if ok {
			candidates = append(candidates, ref)
		}
	}

	switch len(candidates) {
	case 0:
		if !prefixMatched && !strings.ContainsAny(input, "0123456789") {
			return Ref{}, fmt.Errorf("%w: no module prefix matches %q", apperr.ErrModuleNotFound, id)
		}
		return Ref{}, fmt.Errorf("%w: %s", apperr.ErrDocumentNotFound, id)
	case 1:
		return candidates[0], nil
	}

	var existing []Ref
	for _, c := range candidates {
		if c.Exists {
			existing = append(existing, c)
		}
	}
	if len(existing) == 1 {
		return existing[0], nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return Ref{}, fmt.Errorf("%w: %s could be %s", apperr.ErrAmbiguousID, id, strings.Join(ids, ", "))
}

// candidate checks one split point. Numeric remainders are always valid;
// names are valid only when the document exists.
func (r *Resolver) candidate(m *project.Module, rest string) (Ref, bool, error) {
	names, err := order.Documents(r.store, m)
	if err != nil {
		return Ref{}, false, err
	}

	if isDigits(rest) {
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			return Ref{}, false, nil
		}
		ref := Ref{Module: m, ID: Format(m, n), Number: n}
		for _, name := range names {
			if got, ok := order.Number(m, name); ok && got == n {
				ref.ID = strings.TrimSuffix(name, ".md")
				ref.Exists = true
				break
			}
		}
		ref.Path = Path(m, ref.ID)
		return ref, true, nil
	}

	want := m.Prefix + m.Sep() + rest + ".md"
	for _, name := range names {
		if strings.EqualFold(name, want) {
			id := strings.TrimSuffix(name, ".md")
			return Ref{Module: m, ID: id, Path: Path(m, id), Exists: true}, true, nil
		}
	}
	return Ref{}, false, nil
}

// Resolve is Parse plus an existence check.
func (r *Resolver) Resolve(id string) (Ref, error) {
	ref, err := r.Parse(id)
	if err != nil {
		return Ref{}, err
	}
	if !ref.Exists {
		return Ref{}, fmt.Errorf("%w: %s", apperr.ErrDocumentNotFound, ref.ID)
	}
	return ref, nil
}

// AllocateNext reserves the next document number of m. The number is one
// above both the highest existing document and the recorded high-water mark,
// so numbers of deleted documents are never handed out again.
func (r *Resolver) AllocateNext(m *project.Module) (int, error) {
	var next int
	err := order.Update(r.store, m, func(idx *order.Index) error {
		names, err := order.Documents(r.store, m)
		if err != nil {
			return err
		}
		highest := idx.Next
		for _, name := range names {
			if n, ok := order.Number(m, name); ok && n > highest {
				highest = n
			}
		}
		next = highest + 1
		idx.Reserve(next)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("allocate %s: %w", m.Prefix, err)
	}
	return next, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

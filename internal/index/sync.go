package index

import (
	"log/slog"

	"github.com/coreseekdev/textcase/internal/checksum"
	"github.com/coreseekdev/textcase/internal/parser"
	"github.com/coreseekdev/textcase/internal/storage"
)

// Sync brings the index up to date with the project: changed documents are
// re-parsed by checksum and documents gone from disk are dropped.
func Sync(db LinkIndex, store storage.Provider, catalog Catalog, logger *slog.Logger) error {
	return syncIndex(db, store, catalog, logger, nil)
}

// syncIndex is Sync reporting each change to cb.
func syncIndex(db LinkIndex, store storage.Provider, catalog Catalog, logger *slog.Logger, cb EventCallback) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}
	indexed, err := db.AllChecksums()
	if err != nil {
		return err
	}
	notify := func(kind, p string) {
		if cb != nil {
			cb(kind, p)
		}
	}

	onDisk := make(map[string]bool, len(metas))
	for _, m := range metas {
		if _, _, ok := catalog.Identify(m.Path); !ok {
			continue
		}
		onDisk[m.Path] = true

		old, known := indexed[m.Path]
		if old == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, catalog, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		if known {
			notify("updated", m.Path)
		} else {
			notify("created", m.Path)
		}
	}

	for p := range indexed {
		if onDisk[p] {
			continue
		}
		if err := db.DeleteDocument(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", p))
		notify("deleted", p)
	}
	return nil
}

// IndexFile parses data and upserts it into the DB. Files that are not
// documents are skipped. A document with malformed frontmatter is indexed
// without links so that it still counts as a link target.
func IndexFile(db LinkIndex, catalog Catalog, path string, data []byte) error {
	module, id, ok := catalog.Identify(path)
	if !ok {
		return nil
	}
	row := DocumentRow{
		Path:     path,
		ID:       id,
		Module:   module,
		Checksum: checksum.Sum(data),
		Title:    parser.HeadingTitle(data),
	}

	doc, err := parser.Parse(data)
	if err != nil {
		if uerr := db.UpsertDocument(row, nil); uerr != nil {
			return uerr
		}
		return err
	}
	row.Title = doc.Title()

	links, err := doc.Links()
	if err != nil {
		if uerr := db.UpsertDocument(row, nil); uerr != nil {
			return uerr
		}
		return err
	}
	var rows []LinkRow
	for _, l := range links {
		if len(l.Labels) == 0 {
			rows = append(rows, LinkRow{Target: l.Target})
			continue
		}
		for _, label := range l.Labels {
			rows = append(rows, LinkRow{Target: l.Target, Label: label})
		}
	}
	return db.UpsertDocument(row, rows)
}

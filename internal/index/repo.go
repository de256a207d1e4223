package index

import (
	"fmt"
	"time"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string
	ID        string
	Module    string
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// LinkRow is one labeled edge. An unlabeled edge has an empty Label.
type LinkRow struct {
	SourcePath string `json:"source_path"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Label      string `json:"label,omitempty"`
}

// UpsertDocument inserts or replaces a document and its outgoing links within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, links []LinkRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO documents (path, id, module, title, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id         = excluded.id,
			module     = excluded.module,
			title      = excluded.title,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, d.Path, d.ID, d.Module, d.Title, d.Checksum, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// Replace links: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM links WHERE source_path = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source_path, source, target, label) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if _, err := stmt.Exec(d.Path, d.ID, l.Target, l.Label); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document and its outgoing links.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM links WHERE source_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Documents returns every indexed document ordered by module and ID.
func (db *DB) Documents() ([]DocumentRow, error) {
	rows, err := db.conn.Query(`SELECT path, id, module, title, checksum, updated_at FROM documents ORDER BY module, id`)
	if err != nil {
		return nil, fmt.Errorf("index: documents: %w", err)
	}
	defer rows.Close()
	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.Path, &d.ID, &d.Module, &d.Title, &d.Checksum, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Backlinks returns every edge pointing at the target ID, ignoring case.
func (db *DB) Backlinks(target string) ([]LinkRow, error) {
	return db.queryLinks(`
		SELECT source_path, source, target, label FROM links
		WHERE target = ?
		ORDER BY source, label`, target)
}

// Dangling returns every edge whose target is not an indexed document.
func (db *DB) Dangling() ([]LinkRow, error) {
	return db.queryLinks(`
		SELECT l.source_path, l.source, l.target, l.label FROM links l
		LEFT JOIN documents d ON d.id = l.target COLLATE NOCASE
		WHERE d.path IS NULL
		ORDER BY l.source, l.target, l.label`)
}

func (db *DB) queryLinks(query string, args ...any) ([]LinkRow, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query links: %w", err)
	}
	defer rows.Close()

	var out []LinkRow
	for rows.Next() {
		var l LinkRow
		if err := rows.Scan(&l.SourcePath, &l.Source, &l.Target, &l.Label); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

package index

import (
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/coreseekdev/textcase/internal/storage"
)

// prefixCatalog treats every "<DIR>/<PREFIX>NNN.md" file as a document whose
// module is the upper-cased first three letters and the rest are digits.
type prefixCatalog struct{}

func (prefixCatalog) Identify(rel string) (string, string, bool) {
	name := path.Base(rel)
	if !strings.HasSuffix(name, ".md") || len(name) < 7 {
		return "", "", false
	}
	id := strings.TrimSuffix(name, ".md")
	for _, c := range id[3:] {
		if c < '0' || c > '9' {
			return "", "", false
		}
	}
	return strings.ToUpper(id[:3]), id, true
}

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{Path: "reqs/REQ001.md", ID: "REQ001", Module: "REQ", Title: "Login", Checksum: "abc123"}
	if err := db.UpsertDocument(row, []LinkRow{{Target: "TST001", Label: "verified-by"}}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("reqs/REQ001.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestUpsertReplacesLinks(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{Path: "reqs/REQ001.md", ID: "REQ001", Module: "REQ", Checksum: "1"}
	_ = db.UpsertDocument(row, []LinkRow{{Target: "REQ002"}, {Target: "REQ003"}})
	row.Checksum = "2"
	_ = db.UpsertDocument(row, []LinkRow{{Target: "REQ003", Label: "parent"}})

	bl, _ := db.Backlinks("REQ002")
	if len(bl) != 0 {
		t.Errorf("stale backlinks = %+v", bl)
	}
	bl, _ = db.Backlinks("REQ003")
	if len(bl) != 1 || bl[0].Label != "parent" || bl[0].Source != "REQ001" {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestBacklinks_CaseInsensitive(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "a/REQ001.md", ID: "REQ001", Module: "REQ", Checksum: "1"}, []LinkRow{{Target: "TST001"}})
	_ = db.UpsertDocument(DocumentRow{Path: "a/REQ002.md", ID: "REQ002", Module: "REQ", Checksum: "2"}, []LinkRow{{Target: "tst001", Label: "x"}})

	bl, err := db.Backlinks("TST001")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("expected 2 backlinks, got %d", len(bl))
	}
}

func TestDangling(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "a/REQ001.md", ID: "REQ001", Module: "REQ", Checksum: "1"},
		[]LinkRow{{Target: "REQ002"}, {Target: "REQ404", Label: "parent"}})
	_ = db.UpsertDocument(DocumentRow{Path: "a/REQ002.md", ID: "REQ002", Module: "REQ", Checksum: "2"}, nil)

	d, err := db.Dangling()
	if err != nil {
		t.Fatalf("Dangling: %v", err)
	}
	if len(d) != 1 || d[0].Target != "REQ404" || d[0].Source != "REQ001" {
		t.Errorf("dangling = %+v", d)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "a/REQ001.md", ID: "REQ001", Module: "REQ", Checksum: "x"}, []LinkRow{{Target: "REQ002"}})

	if err := db.DeleteDocument("a/REQ001.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	cs, _ := db.GetChecksum("a/REQ001.md")
	if cs != "" {
		t.Error("document still indexed after delete")
	}
	bl, _ := db.Backlinks("REQ002")
	if len(bl) != 0 {
		t.Errorf("links survived delete: %+v", bl)
	}
}

func TestSync_IndexesAndRemoves(t *testing.T) {
	db := testDB(t)
	store := storage.NewMemory()
	_ = store.Write("reqs/REQ001.md", []byte("---\nlinks:\n  REQ002: [parent, refines]\n  TST001: []\n---\n# Login\n"))
	_ = store.Write("reqs/REQ002.md", []byte("# REQ002\n"))
	_ = store.Write("reqs/README.md", []byte("not a document\n"))

	if err := Sync(db, store, prefixCatalog{}, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	docs, _ := db.Documents()
	if len(docs) != 2 || docs[0].Title != "Login" {
		t.Fatalf("documents = %+v", docs)
	}
	bl, _ := db.Backlinks("REQ002")
	if len(bl) != 2 {
		t.Errorf("backlinks = %+v, want two labels", bl)
	}
	d, _ := db.Dangling()
	if len(d) != 1 || d[0].Target != "TST001" || d[0].Label != "" {
		t.Errorf("dangling = %+v", d)
	}

	_ = store.Delete("reqs/REQ002.md")
	if err := Sync(db, store, prefixCatalog{}, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("reqs/REQ002.md"); cs != "" {
		t.Error("removed document still indexed")
	}
}

func TestSyncIndex_ReportsChanges(t *testing.T) {
	db := testDB(t)
	store := storage.NewMemory()
	_ = store.Write("reqs/REQ001.md", []byte("# One\n"))
	_ = store.Write("reqs/REQ002.md", []byte("# Two\n"))
	if err := Sync(db, store, prefixCatalog{}, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	_ = store.Write("reqs/REQ001.md", []byte("# One, edited\n"))
	_ = store.Delete("reqs/REQ002.md")
	_ = store.Write("reqs/REQ003.md", []byte("# Three\n"))

	var events []string
	err := syncIndex(db, store, prefixCatalog{}, quietLogger(), func(kind, p string) {
		events = append(events, kind+":"+p)
	})
	if err != nil {
		t.Fatalf("syncIndex: %v", err)
	}
	sort.Strings(events)
	want := "created:reqs/REQ003.md,deleted:reqs/REQ002.md,updated:reqs/REQ001.md"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("events = %s, want %s", got, want)
	}

	events = nil
	if err := syncIndex(db, store, prefixCatalog{}, quietLogger(), func(kind, p string) {
		events = append(events, kind+":"+p)
	}); err != nil {
		t.Fatalf("syncIndex: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("second pass events = %v, want none", events)
	}
}

func TestSync_MalformedStillIndexed(t *testing.T) {
	db := testDB(t)
	store := storage.NewMemory()
	_ = store.Write("reqs/REQ001.md", []byte("---\nlinks: [\n---\n# Broken\n"))

	if err := Sync(db, store, prefixCatalog{}, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("reqs/REQ001.md"); cs == "" {
		t.Error("malformed document not indexed")
	}
}

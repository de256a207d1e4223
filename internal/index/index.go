package index

// LinkIndex defines the interface for document and link index operations.
// Consumers should depend on this interface rather than the concrete *DB type.
type LinkIndex interface {
	UpsertDocument(d DocumentRow, links []LinkRow) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	Documents() ([]DocumentRow, error)
	Backlinks(target string) ([]LinkRow, error)
	Dangling() ([]LinkRow, error)
	Close() error
}

// Verify *DB satisfies LinkIndex at compile time.
var _ LinkIndex = (*DB)(nil)

// Catalog identifies which project files are documents.
// *project.Project satisfies it.
type Catalog interface {
	Identify(rel string) (module, id string, ok bool)
}

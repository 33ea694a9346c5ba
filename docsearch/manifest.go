package docsearch

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Manifest records which chunks have been uploaded and with what content
// hash, so repeated sync runs only push what changed. It is a single-table
// sqlite database living next to the docs build.
type Manifest struct {
	db *sql.DB
}

const manifestSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	hash        TEXT NOT NULL,
	uploaded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_path ON chunks(path);
`

// OpenManifest opens (creating if needed) a manifest database at path.
// Use ":memory:" for a throwaway manifest.
func OpenManifest(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	// One connection, so ":memory:" manifests see a single database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(manifestSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init manifest schema: %w", err)
	}
	return &Manifest{db: db}, nil
}

// Close releases the database handle.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// Hashes returns the recorded hash for every known chunk ID.
func (m *Manifest) Hashes() (map[string]string, error) {
	rows, err := m.db.Query(`SELECT id, hash FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		out[id] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return out, nil
}

// Record stores or replaces the hash for a chunk.
func (m *Manifest) Record(id, path, hash string) error {
	_, err := m.db.Exec(
		`INSERT INTO chunks (id, path, hash, uploaded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET path = excluded.path, hash = excluded.hash,
		 uploaded_at = excluded.uploaded_at`,
		id, path, hash, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record chunk %s: %w", id, err)
	}
	return nil
}

// Forget removes chunk IDs from the manifest.
func (m *Manifest) Forget(ids ...string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("forget chunks: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM chunks WHERE id = ?`, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("forget chunk %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("forget chunks: %w", err)
	}
	return nil
}

package poidb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/b1naryth1ef/isocarto"
)

const FileName = "poi.db"

// SQLiteStore keeps POI state in a SQLite database, one row per POI in
// sequence order.
type SQLiteStore struct {
	db *sql.DB
}

func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// OpenInCache opens the store at its default location in a cache directory.
func OpenInCache(cacheDir string) (*SQLiteStore, error) {
	return Open(filepath.Join(cacheDir, FileName))
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS poi (
			seq INTEGER PRIMARY KEY,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			label TEXT NOT NULL,
			kind TEXT NOT NULL,
			chunk_x INTEGER NOT NULL,
			chunk_y INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_poi_chunk ON poi(chunk_x, chunk_y);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Load() (*isocarto.State, error) {
	rows, err := s.db.Query(`SELECT x,y,z,label,kind,chunk_x,chunk_y FROM poi ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state := isocarto.NewState()
	for rows.Next() {
		var (
			p    isocarto.POI
			kind string
		)
		if err := rows.Scan(&p.X, &p.Y, &p.Z, &p.Label, &kind, &p.Chunk.X, &p.Chunk.Y); err != nil {
			return nil, err
		}
		p.Kind = isocarto.POIKind(kind)
		state.POI = append(state.POI, p)
	}
	return state, rows.Err()
}

// Save replaces the stored POIs with the state's in a single transaction.
func (s *SQLiteStore) Save(state *isocarto.State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM poi`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO poi(seq,x,y,z,label,kind,chunk_x,chunk_y) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range state.POI {
		if _, err := stmt.Exec(i, p.X, p.Y, p.Z, p.Label, string(p.Kind), p.Chunk.X, p.Chunk.Y); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

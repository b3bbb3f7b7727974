package searchindex

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// sqliteVectorStore backs the vector layer with an in-memory sqlite-vec
// virtual table, grounded on GoKitt's SQLiteStore (internal/store/sqlite_store.go),
// which registers the same pure-Go ncruces/go-sqlite3 driver plus the
// sqlite-vec extension. Unlike GoKitt's tables, this one is never
// source-of-truth: Reindex always rebuilds it from observations.json, so a
// dropped or corrupted database file costs nothing but a rebuild.
type sqliteVectorStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteVectorStore opens an ephemeral (":memory:" by default) sqlite-vec
// table sized for dim-dimensional vectors.
func NewSQLiteVectorStore(dsn string, dim int) (VectorStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("searchindex: open vector store: %w", err)
	}
	schema := fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS observation_vectors USING vec0(id INTEGER PRIMARY KEY, embedding FLOAT[%d])",
		dim,
	)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("searchindex: create vec table: %w", err)
	}
	return &sqliteVectorStore{db: db, dim: dim}, nil
}

func (s *sqliteVectorStore) Upsert(id int64, vector []float32) error {
	if len(vector) != s.dim {
		return fmt.Errorf("searchindex: vector has %d dims, store wants %d", len(vector), s.dim)
	}
	lit := vectorLiteral(vector)
	_, err := s.db.Exec(`DELETE FROM observation_vectors WHERE id = ?`, id)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO observation_vectors (id, embedding) VALUES (?, ?)`, id, lit)
	return err
}

func (s *sqliteVectorStore) Remove(id int64) error {
	_, err := s.db.Exec(`DELETE FROM observation_vectors WHERE id = ?`, id)
	return err
}

func (s *sqliteVectorStore) TopK(query []float32, k int, threshold float64) ([]ScoredID, error) {
	lit := vectorLiteral(query)
	rows, err := s.db.Query(`
		SELECT id, distance FROM observation_vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, lit, k)
	if err != nil {
		return nil, fmt.Errorf("searchindex: vector query: %w", err)
	}
	defer rows.Close()

	var out []ScoredID
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		// sqlite-vec reports L2 distance on normalized vectors; convert to
		// a cosine-similarity-like score in [0,1] via 1 - distance/2.
		score := 1 - distance/2
		if score >= threshold {
			out = append(out, ScoredID{ID: id, Score: score})
		}
	}
	return out, rows.Err()
}

func (s *sqliteVectorStore) Close() error {
	return s.db.Close()
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')
	return b.String()
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/similarity"
)

// Ensure Store implements the interface.
var _ driven.VectorBackend = (*Store)(nil)

// Store is a SQLite-backed vector store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragchat/data/vectors.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragchat", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_vectors.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Indexes ====================

// CreateIndex creates an empty index.
func (s *Store) CreateIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if !metric.IsValid() {
		return fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, metric)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO vector_indexes (name, dimension, metric) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, dimension, metric.String())
	if err != nil {
		return fmt.Errorf("create index %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("create index %q: %w", name, domain.ErrIndexExists)
	}
	return nil
}

// ListIndexes returns index names in lexical order.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM vector_indexes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DescribeIndex returns the dimension and metric of an index.
func (s *Store) DescribeIndex(ctx context.Context, name string) (domain.IndexDescription, error) {
	desc := domain.IndexDescription{Name: name}
	var metric string
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension, metric FROM vector_indexes WHERE name = ?", name,
	).Scan(&desc.Dimension, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IndexDescription{}, fmt.Errorf("describe %q: %w", name, domain.ErrIndexNotFound)
	}
	if err != nil {
		return domain.IndexDescription{}, fmt.Errorf("describe %q: %w", name, err)
	}
	desc.Metric = domain.Metric(metric)
	return desc, nil
}

// ==================== Records ====================

// Upsert writes records into a namespace in one transaction.
// An existing ID keeps its original insertion position.
func (s *Store) Upsert(ctx context.Context, index, namespace string, records []domain.IndexRecord) error {
	desc, err := s.DescribeIndex(ctx, index)
	if err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Vector) != desc.Dimension {
			return &domain.DimensionMismatchError{Index: index, Expected: desc.Dimension, Actual: len(r.Vector)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_records (index_name, namespace, id, vector, source_id, sequence_index, format, text, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_name, namespace, id) DO UPDATE SET
			vector = excluded.vector,
			source_id = excluded.source_id,
			sequence_index = excluded.sequence_index,
			format = excluded.format,
			text = excluded.text,
			attributes = excluded.attributes,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		attrs, err := json.Marshal(r.Metadata.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes of %s: %w", r.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			index, namespace, r.ID, float32SliceToBytes(r.Vector),
			r.Metadata.SourceID, r.Metadata.SequenceIndex, r.Metadata.Format.String(), r.Metadata.Text, string(attrs),
		)
		if err != nil {
			return fmt.Errorf("upsert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Query ranks the records of namespace against vector.
// Rows are read in insertion order and sorted stably, so ties keep that order.
func (s *Store) Query(ctx context.Context, index, namespace string, vector []float32, k int) ([]domain.Match, error) {
	desc, err := s.DescribeIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	if len(vector) != desc.Dimension {
		return nil, &domain.DimensionMismatchError{Index: index, Expected: desc.Dimension, Actual: len(vector)}
	}
	if k <= 0 {
		return []domain.Match{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vector, source_id, sequence_index, format, text, attributes
		FROM vector_records
		WHERE index_name = ? AND namespace = ?
		ORDER BY seq
	`, index, namespace)
	if err != nil {
		return nil, fmt.Errorf("query %q/%s: %w", index, namespace, err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			m      domain.Match
			blob   []byte
			format string
			attrs  string
		)
		if err := rows.Scan(&m.ID, &blob, &m.Metadata.SourceID, &m.Metadata.SequenceIndex, &format, &m.Text, &attrs); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &m.Metadata.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of %s: %w", m.ID, err)
		}
		m.Score = similarity.Score(desc.Metric, vector, bytesToFloat32Slice(blob))
		m.Metadata.Namespace = namespace
		m.Metadata.Format = domain.Format(format)
		m.Metadata.Text = m.Text
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	return matches, nil
}

// Namespaces lists non-empty namespaces in lexical order.
func (s *Store) Namespaces(ctx context.Context, index string) ([]domain.NamespaceStats, error) {
	if _, err := s.DescribeIndex(ctx, index); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, COUNT(*) FROM vector_records
		WHERE index_name = ?
		GROUP BY namespace
		ORDER BY namespace
	`, index)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	stats := []domain.NamespaceStats{}
	for rows.Next() {
		var ns domain.NamespaceStats
		if err := rows.Scan(&ns.Name, &ns.RecordCount); err != nil {
			return nil, err
		}
		stats = append(stats, ns)
	}
	return stats, rows.Err()
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/AndreasM009/entitystore-go/store"
	_ "modernc.org/sqlite"
)

const (
	// PathKey is the metadata property holding the database file
	PathKey = "path"
	// TableKey is the metadata property holding the entity table name
	TableKey = "table"

	sequenceTable = "entitystore_sequences"
	busyTimeoutMs = 5000
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type sqlitestore struct {
	db    *sql.DB
	table string
}

// NewStore creates a SQLite backed store, one table per entity type
func NewStore() store.Backend {
	return &sqlitestore{}
}

func (s *sqlitestore) Init(metadata store.Metadata) error {
	path := metadata.Properties[PathKey]
	if path == "" {
		return fmt.Errorf("sqlite store: property %q is required", PathKey)
	}

	table := metadata.Properties[TableKey]
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("sqlite store: invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	// one connection per table; tables sharing a file wait on each other's locks
	db.SetMaxOpenConns(1)

	s.db = db
	s.table = table
	return s.bootstrap(context.Background())
}

func (s *sqlitestore) bootstrap(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id   INTEGER PRIMARY KEY,
			data BLOB NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`, sequenceTable),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite store: bootstrap schema: %w", err)
		}
	}
	return nil
}

func (s *sqlitestore) Put(ctx context.Context, id int64, data []byte) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`, s.table)

	if _, err := s.db.ExecContext(ctx, query, id, data); err != nil {
		return fmt.Errorf("sqlite store: put %d: %w", id, err)
	}
	return nil
}

func (s *sqlitestore) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, s.table)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("sqlite store: get %d: %w", id, err)
	}
	return data, true, nil
}

func (s *sqlitestore) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table)

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("sqlite store: delete %d: %w", id, err)
	}
	return nil
}

func (s *sqlitestore) Scan(ctx context.Context) ([]store.Record, error) {
	query := fmt.Sprintf(`SELECT id, data FROM %s ORDER BY id`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: scan: %w", err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		var rec store.Record
		if err := rows.Scan(&rec.ID, &rec.Data); err != nil {
			return nil, fmt.Errorf("sqlite store: scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: scan: %w", err)
	}
	return records, nil
}

func (s *sqlitestore) NextID(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite store: begin sequence tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmts := []string{
		fmt.Sprintf(`INSERT INTO %s (name, value) VALUES (?, 0) ON CONFLICT(name) DO NOTHING`, sequenceTable),
		fmt.Sprintf(`UPDATE %s SET value = value + 1 WHERE name = ?`, sequenceTable),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, s.table); err != nil {
			return 0, fmt.Errorf("sqlite store: advance sequence: %w", err)
		}
	}

	var id int64
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, sequenceTable)
	if err := tx.QueryRowContext(ctx, query, s.table).Scan(&id); err != nil {
		return 0, fmt.Errorf("sqlite store: read sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite store: commit sequence: %w", err)
	}
	return id, nil
}

func (s *sqlitestore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// dsn waits for locks held by other connections and takes the write lock
// when a transaction begins
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_txlock=immediate", path, sep, busyTimeoutMs)
}

var _ store.Backend = (*sqlitestore)(nil)

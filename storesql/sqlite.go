/*
Package storesql provides a SQLite-backed fact.IndexProvider.

PURPOSE:
  A reference implementation of the storage collaborator contract (section
  6), suitable for a single-process embedded deployment. Two tables back
  it: a durable, append-only transaction log (datoms_log) and a
  materialized current-state index (datoms_current) kept in sync on every
  Append so LookupUnique/ScanEAV never have to replay history.

KEY TABLES:
  datoms_log:      Immutable (e,a,v,tx,added,timeline) transaction history.
  datoms_current:  Materialized current-state index, one row per live
                    (e,a,v) triple (multiple rows per (e,a) iff cardinality
                    many).

FULLTEXT:
  `:db/fulltext` is parsed and reported on Attribute like any other
  reserved-vocabulary flag (section 4.9), but neither reference
  IndexProvider indirects fulltext strings through a separate value store —
  see DESIGN.md's Open Question decisions for why this core leaves it
  recorded-but-unenforced rather than wiring a storage-level indirection
  table no read path in this core consults.

WAL MODE:
  Opened with WAL for concurrent readers; a single in-process RWMutex
  additionally serializes writers the way the store's single-writer model
  requires (section 5), independent of SQLite's own locking.

SEE ALSO:
  - fact/provider.go:   the interface this type implements
  - fact/store/memory:  the in-memory counterpart, used in unit tests
*/
package storesql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/factdb/fact"
)

// Store is a SQLite-backed fact.IndexProvider.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens a SQLite-backed store at dbPath. Use ":memory:" for
// an ephemeral database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("storesql: failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storesql: failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datoms_log (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		e         INTEGER NOT NULL,
		a         INTEGER NOT NULL,
		v         BLOB,
		tag       INTEGER NOT NULL,
		tx        INTEGER NOT NULL,
		added     INTEGER NOT NULL,
		timeline  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_datoms_log_tx ON datoms_log(tx);
	CREATE INDEX IF NOT EXISTS idx_datoms_log_timeline_tx ON datoms_log(timeline, tx);

	CREATE TABLE IF NOT EXISTS datoms_current (
		e    INTEGER NOT NULL,
		a    INTEGER NOT NULL,
		v    BLOB,
		tag  INTEGER NOT NULL,
		PRIMARY KEY (e, a, v, tag)
	);
	CREATE INDEX IF NOT EXISTS idx_datoms_current_av ON datoms_current(a, v, tag);
	CREATE INDEX IF NOT EXISTS idx_datoms_current_e ON datoms_current(e, a);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LookupUnique implements fact.IndexProvider.
func (s *Store) LookupUnique(ctx context.Context, a fact.Entid, v fact.TypedValue) (fact.Entid, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlValue, tag := fact.EncodeValue(v)
	var e int64
	err := s.db.QueryRowContext(ctx,
		`SELECT e FROM datoms_current WHERE a = ? AND v = ? AND tag = ? LIMIT 1`,
		int64(a), sqlValue, tag,
	).Scan(&e)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return fact.Entid(e), true, nil
}

// ScanEAV implements fact.IndexProvider.
func (s *Store) ScanEAV(ctx context.Context, e fact.Entid, a fact.Entid) ([]fact.Datom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if a == 0 {
		rows, err = s.db.QueryContext(ctx, `SELECT e, a, v, tag FROM datoms_current WHERE e = ?`, int64(e))
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT e, a, v, tag FROM datoms_current WHERE e = ? AND a = ?`, int64(e), int64(a))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fact.Datom
	for rows.Next() {
		var (
			eID, aID int64
			v        any
			tag      int
		)
		if err := rows.Scan(&eID, &aID, &v, &tag); err != nil {
			return nil, err
		}
		typed, err := s.decode(v, tag)
		if err != nil {
			return nil, err
		}
		out = append(out, fact.Datom{E: fact.Entid(eID), A: fact.Entid(aID), V: typed, Added: true})
	}
	fact.SortEAVT(out)
	return out, rows.Err()
}

// ScanTx implements fact.IndexProvider.
func (s *Store) ScanTx(ctx context.Context, tx fact.Entid) ([]fact.Datom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT e, a, v, tag, added FROM datoms_log WHERE tx = ? ORDER BY id ASC`,
		int64(tx),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fact.Datom
	for rows.Next() {
		var (
			eID, aID int64
			v        any
			tag      int
			added    int
		)
		if err := rows.Scan(&eID, &aID, &v, &tag, &added); err != nil {
			return nil, err
		}
		typed, err := s.decode(v, tag)
		if err != nil {
			return nil, err
		}
		out = append(out, fact.Datom{E: fact.Entid(eID), A: fact.Entid(aID), V: typed, Tx: tx, Added: added != 0})
	}
	return out, rows.Err()
}

// Append implements fact.IndexProvider. All-or-nothing: wrapped in a single
// SQL transaction.
func (s *Store) Append(ctx context.Context, timeline string, datoms []fact.Datom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	for _, d := range datoms {
		sqlValue, tag := fact.EncodeValue(d.V)
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT INTO datoms_log (e, a, v, tag, tx, added, timeline) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(d.E), int64(d.A), sqlValue, tag, int64(d.Tx), boolToInt(d.Added), timeline,
		); err != nil {
			return err
		}
		if d.Added {
			if _, err := sqlTx.ExecContext(ctx,
				`INSERT OR REPLACE INTO datoms_current (e, a, v, tag) VALUES (?, ?, ?, ?)`,
				int64(d.E), int64(d.A), sqlValue, tag,
			); err != nil {
				return err
			}
		} else {
			if _, err := sqlTx.ExecContext(ctx,
				`DELETE FROM datoms_current WHERE e = ? AND a = ? AND v = ? AND tag = ?`,
				int64(d.E), int64(d.A), sqlValue, tag,
			); err != nil {
				return err
			}
		}
	}

	return sqlTx.Commit()
}

// TimelineUpdate implements fact.IndexProvider: the rewind operation's
// commit step (section 4.11). Applies inverse to current-state, then
// relabels [fromTx, toTx] on the source timeline to the destination.
func (s *Store) TimelineUpdate(ctx context.Context, from, to string, fromTx, toTx fact.Entid, inverse []fact.Datom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	for _, d := range inverse {
		sqlValue, tag := fact.EncodeValue(d.V)
		if d.Added {
			if _, err := sqlTx.ExecContext(ctx,
				`INSERT OR REPLACE INTO datoms_current (e, a, v, tag) VALUES (?, ?, ?, ?)`,
				int64(d.E), int64(d.A), sqlValue, tag,
			); err != nil {
				return err
			}
		} else {
			if _, err := sqlTx.ExecContext(ctx,
				`DELETE FROM datoms_current WHERE e = ? AND a = ? AND v = ? AND tag = ?`,
				int64(d.E), int64(d.A), sqlValue, tag,
			); err != nil {
				return err
			}
		}
	}

	if _, err := sqlTx.ExecContext(ctx,
		`UPDATE datoms_log SET timeline = ? WHERE timeline = ? AND tx >= ? AND tx <= ?`,
		to, from, int64(fromTx), int64(toTx),
	); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// DeleteTx implements fact.IndexProvider. Reserved for callers that want to
// discard a transaction's log entries outright; rewind never calls this.
func (s *Store) DeleteTx(ctx context.Context, timeline string, tx fact.Entid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM datoms_log WHERE timeline = ? AND tx = ?`, timeline, int64(tx))
	return err
}

func (s *Store) decode(sqlValue any, tag int) (fact.TypedValue, error) {
	declared, ok := fact.ValueTypeForTag(tag)
	if !ok {
		return fact.TypedValue{}, fmt.Errorf("storesql: unrecognized value_type_tag %d", tag)
	}
	return fact.DecodeValue(sqlValue, tag, declared)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

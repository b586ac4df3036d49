package capability

import (
	"container/list"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"hull/internal/logging"
)

// preparedCacheSize is the LRU size for the statement cache (§4.2.2).
const preparedCacheSize = 32

// Row is one result row from a query, keyed by column name in column order.
type Row map[string]any

// DB is the database capability primitive. It owns the single SQLite
// connection and the prepared-statement LRU cache; there is no connection
// pool because Hull's event loop is single-threaded and cooperative (no
// second thread ever contends for the handle).
type DB struct {
	mu     sync.Mutex
	conn   *sql.DB
	cache  map[string]*list.Element
	order  *list.List // front = most recently used
	tx     *sql.Tx
	closed bool
}

type cacheEntry struct {
	sqlText string
	stmt    *sql.Stmt
}

// OpenDB opens (or creates) the SQLite database at path and applies the
// pragma sequence from §4.2.2: a single connection, WAL journaling, and
// NORMAL synchronous durability (safe under WAL, 5-10x faster than FULL).
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrIOFailure, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA cache_size = -16384",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA wal_autocheckpoint = 1000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: applying %q: %v", ErrIOFailure, pragma, err)
		}
	}

	logging.StoreDebug("db.open: path=%s", path)
	return &DB{
		conn:  conn,
		cache: make(map[string]*list.Element),
		order: list.New(),
	}, nil
}

// Close finalizes every cached prepared statement and closes the
// connection. The prepared statement's lifecycle ends here if LRU eviction
// never reached it first (§5 lifecycle table).
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	for e := d.order.Front(); e != nil; e = e.Next() {
		e.Value.(*cacheEntry).stmt.Close()
	}
	d.cache = nil
	d.order = nil

	if _, err := d.conn.Exec("PRAGMA optimize"); err != nil {
		logging.StoreDebug("db.close: optimize failed: %v", err)
	}
	if _, err := d.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.StoreDebug("db.close: truncate checkpoint failed: %v", err)
	}
	return d.conn.Close()
}

// FlushPreparedCache finalizes every cached statement without closing the
// connection. Called on schema change per §4.2.2.
func (d *DB) FlushPreparedCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for e := d.order.Front(); e != nil; e = e.Next() {
		e.Value.(*cacheEntry).stmt.Close()
	}
	d.cache = make(map[string]*list.Element)
	d.order = list.New()
	logging.StoreDebug("db.cache: flushed")
}

// querier is satisfied by both *sql.DB and *sql.Tx so prepare() works the
// same whether or not a transaction is open.
type querier interface {
	Prepare(query string) (*sql.Stmt, error)
}

func (d *DB) activeQuerier() querier {
	if d.tx != nil {
		return d.tx
	}
	return d.conn
}

// prepare returns a cached statement for sqlText, preparing and inserting it
// into the LRU if it is not already present, evicting the least-recently
// used entry if the cache is at capacity. Must be called with d.mu held.
func (d *DB) prepare(sqlText string) (*sql.Stmt, error) {
	if el, ok := d.cache[sqlText]; ok {
		d.order.MoveToFront(el)
		return el.Value.(*cacheEntry).stmt, nil
	}

	stmt, err := d.activeQuerier().Prepare(sqlText)
	if err != nil {
		return nil, fmt.Errorf("%w: preparing statement: %v", ErrInvalid, err)
	}

	if d.order.Len() >= preparedCacheSize {
		back := d.order.Back()
		evicted := back.Value.(*cacheEntry)
		evicted.stmt.Close()
		delete(d.cache, evicted.sqlText)
		d.order.Remove(back)
		logging.StoreDebug("db.cache: evicted sql=%q", evicted.sqlText)
	}

	el := d.order.PushFront(&cacheEntry{sqlText: sqlText, stmt: stmt})
	d.cache[sqlText] = el
	return stmt, nil
}

// Query runs sqlText with params bound positionally to "?" placeholders and
// returns the result rows. sqlText must be a literal string from scripted
// source; there is no variant that accepts concatenation, so injection is
// structurally impossible (§4.2.2).
func (d *DB) Query(sqlText string, params []any) ([]Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%w: database closed", ErrInvalid)
	}

	stmt, err := d.prepare(sqlText)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return out, nil
}

// Exec runs sqlText with bound params and returns the number of rows
// affected.
func (d *DB) Exec(sqlText string, params []any) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, fmt.Errorf("%w: database closed", ErrInvalid)
	}

	stmt, err := d.prepare(sqlText)
	if err != nil {
		return 0, err
	}
	result, err := stmt.Exec(params...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return n, nil
}

// Begin opens a transaction. Nested Begin calls are rejected: the
// single-threaded model means there is never a legitimate reason for one.
func (d *DB) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx != nil {
		return fmt.Errorf("%w: transaction already open", ErrInvalid)
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	d.tx = tx
	return nil
}

// Commit commits the open transaction.
func (d *DB) Commit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("%w: no transaction open", ErrInvalid)
	}
	err := d.tx.Commit()
	d.tx = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// Rollback discards the open transaction.
func (d *DB) Rollback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("%w: no transaction open", ErrInvalid)
	}
	err := d.tx.Rollback()
	d.tx = nil
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// Batch runs fn inside a transaction, committing on success and rolling
// back automatically if fn returns an error — §8's "transactions roll back
// automatically on handler error" applied to the capability layer itself.
func (d *DB) Batch(fn func() error) error {
	if err := d.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := d.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return d.Commit()
}

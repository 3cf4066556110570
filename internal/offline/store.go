package offline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotCached = errors.New("offline: not cached")

// Entry is a stored response.
type Entry struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Response rebuilds an *http.Response for req from the entry.
func (e *Entry) Response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(CacheHeader, "hit")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Store holds named caches of responses.
type Store interface {
	Match(ctx context.Context, cache, url string) (*Entry, error)
	Put(ctx context.Context, cache string, e Entry) error
	Caches(ctx context.Context) ([]string, error)
	DeleteCache(ctx context.Context, cache string) error
}

// SQLiteStore keeps caches in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS responses (
    cache_name TEXT NOT NULL,
    url TEXT NOT NULL,
    status INTEGER NOT NULL,
    header TEXT NOT NULL DEFAULT '{}',
    body BLOB,
    stored_at INTEGER NOT NULL,
    PRIMARY KEY (cache_name, url)
);
`

// OpenSQLite creates or opens the cache database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	return newSQLiteStore(db)
}

// OpenMemory creates an in-memory cache database.
func OpenMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory cache database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSQLiteStore(db)
}

func newSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running cache migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Match(ctx context.Context, cache, url string) (*Entry, error) {
	var (
		e        Entry
		header   string
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, status, header, body, stored_at FROM responses WHERE cache_name = ? AND url = ?`,
		cache, url,
	).Scan(&e.URL, &e.Status, &header, &e.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", url, err)
	}
	if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
		return nil, fmt.Errorf("decode cached header for %s: %w", url, err)
	}
	e.StoredAt = time.Unix(0, storedAt)
	return &e, nil
}

func (s *SQLiteStore) Put(ctx context.Context, cache string, e Entry) error {
	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO responses (cache_name, url, status, header, body, stored_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(cache_name, url) DO UPDATE SET
    status = excluded.status,
    header = excluded.header,
    body = excluded.body,
    stored_at = excluded.stored_at`,
		cache, e.URL, e.Status, string(header), e.Body, e.StoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", e.URL, err)
	}
	return nil
}

func (s *SQLiteStore) Caches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT cache_name FROM responses ORDER BY cache_name`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan cache name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) DeleteCache(ctx context.Context, cache string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE cache_name = ?`, cache); err != nil {
		return fmt.Errorf("delete cache %s: %w", cache, err)
	}
	return nil
}

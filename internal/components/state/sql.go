package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const Schema = `
create table if not exists blobs (
	key text primary key,
	value blob not null,
	updated_at integer not null
);`

func isRemoteDSN(dsn string) bool {
	for _, prefix := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

// OpenSQL opens a remote libsql database for URL DSNs and a local sqlite
// file (or :memory:) otherwise.
func OpenSQL(dsn, authToken string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a database was not specified")
	}

	if isRemoteDSN(dsn) {
		if authToken != "" {
			parsed, err := url.Parse(dsn)
			if err != nil {
				return nil, err
			}
			query := parsed.Query()
			query.Set("authToken", authToken)
			parsed.RawQuery = query.Encode()
			dsn = parsed.String()
		}
		return sql.Open("libsql", dsn)
	}

	if dsn != ":memory:" {
		_, statErr := os.Stat(dsn)
		if os.IsNotExist(statErr) {
			f, err := os.Create(dsn)
			if err != nil {
				return nil, err
			}
			f.Close()
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite only has one writer, and :memory: databases are per-connection
	db.SetMaxOpenConns(1)
	if dsn != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// SQLStore keeps named blobs in a single table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates the blobs table if it does not exist yet.
func NewSQLStore(ctx context.Context, db *sql.DB) (SQLStore, error) {
	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return SQLStore{}, fmt.Errorf("create blobs table: %w", err)
	}
	return SQLStore{db: db}, nil
}

func (s SQLStore) Blob(key string) Blob {
	return sqlBlob{db: s.db, key: key}
}

type sqlBlob struct {
	db  *sql.DB
	key string
}

func (b sqlBlob) String() string {
	return fmt.Sprintf("blobs[%s]", b.key)
}

func (b sqlBlob) Load(ctx context.Context) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx, "select value from blobs where key = ?", b.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b sqlBlob) Save(ctx context.Context, value []byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`insert into blobs (key, value, updated_at) values (?, ?, ?)
		on conflict(key) do update set value = excluded.value, updated_at = excluded.updated_at`,
		b.key, value, time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

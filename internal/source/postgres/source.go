// Package postgres replays start documents stored as jsonb rows. The
// table needs a "doc" jsonb column; rows are read in time order through
// a server-side cursor so memory stays bounded by the batch size.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/brokerdex/internal/source"
)

// DefaultBatchSize is the number of rows fetched per round trip.
const DefaultBatchSize = 500

const cursorName = "brokerdex_replay"

// Compile-time check: Source implements source.Opener.
var _ source.Opener = (*Source)(nil)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds connection and query parameters.
type Config struct {
	DSN       string
	Table     string
	BatchSize int
}

// Source opens cursors over the document table.
type Source struct {
	db        *sql.DB
	table     string
	batchSize int
}

// New opens the database and pings it.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if err := ValidateTable(cfg.Table); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return NewFromDB(db, cfg.Table, cfg.BatchSize), nil
}

// NewFromDB wraps an open handle. The table name must already be valid.
func NewFromDB(db *sql.DB, table string, batchSize int) *Source {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Source{db: db, table: table, batchSize: batchSize}
}

// ValidateTable rejects anything but a plain SQL identifier.
func ValidateTable(table string) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// Ping checks connectivity.
func (s *Source) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// Query returns the cursor declaration for the table.
func (s *Source) Query() string {
	return fmt.Sprintf(
		"DECLARE %s NO SCROLL CURSOR FOR SELECT doc FROM %s ORDER BY (doc->>'time')::double precision NULLS LAST",
		cursorName, pq.QuoteIdentifier(s.table))
}

// Open begins a read-only transaction and declares the replay cursor.
func (s *Source) Open(ctx context.Context) (source.Iterator, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.Query()); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("declaring cursor: %w", err)
	}
	return &cursorIterator{
		tx:    tx,
		fetch: fmt.Sprintf("FETCH FORWARD %d FROM %s", s.batchSize, cursorName),
	}, nil
}

type cursorIterator struct {
	tx    *sql.Tx
	fetch string
	rows  *sql.Rows
	// read counts rows of the current batch; zero after a fetch means done.
	read int
	done bool
}

func (it *cursorIterator) Next(ctx context.Context) (map[string]any, error) {
	for !it.done {
		if it.rows == nil {
			rows, err := it.tx.QueryContext(ctx, it.fetch)
			if err != nil {
				return nil, fmt.Errorf("fetching rows: %w", err)
			}
			it.rows, it.read = rows, 0
		}

		if it.rows.Next() {
			it.read++
			var raw []byte
			if err := it.rows.Scan(&raw); err != nil {
				return nil, fmt.Errorf("scanning row: %w", err)
			}
			return DecodeDocument(raw)
		}
		if err := it.rows.Err(); err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
		_ = it.rows.Close()
		it.rows = nil
		if it.read == 0 {
			it.done = true
		}
	}
	return nil, io.EOF
}

func (it *cursorIterator) Close() error {
	if it.rows != nil {
		_ = it.rows.Close()
	}
	if err := it.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("closing cursor: %w", err)
	}
	return nil
}

// DecodeDocument parses a jsonb value, keeping numbers as json.Number.
func DecodeDocument(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("document is null")
	}
	return doc, nil
}

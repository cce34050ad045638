package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/newtron-network/sotboard/pkg/util"
)

// SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLJournal stores journals in two tables: metadata holds one row per
// journal, entries one row per recorded step.
type SQLJournal struct {
	db     *sql.DB
	driver string
}

func schema(driver string) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS metadata (
			uuid       TEXT PRIMARY KEY,
			app        TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id         ` + serial + `,
			uuid       TEXT NOT NULL REFERENCES metadata(uuid),
			app        TEXT NOT NULL DEFAULT '',
			device     TEXT NOT NULL DEFAULT '',
			step       TEXT NOT NULL DEFAULT '',
			object     TEXT NOT NULL DEFAULT '',
			ok         BOOLEAN NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS entries_uuid ON entries (uuid)`,
	}
}

// OpenSQL connects to the database and creates the tables when missing.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLJournal, error) {
	driver = strings.ToLower(driver)
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported journal driver '%s': %w", driver, util.ErrInvalidConfig)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if driver == DriverSQLite {
		// one writer; sqlite locks the whole file anyway
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}

	j := &SQLJournal{db: db, driver: driver}
	for _, stmt := range schema(driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: create schema: %w", err)
		}
	}
	return j, nil
}

// rebind turns ? placeholders into $n for postgres.
func (j *SQLJournal) rebind(query string) string {
	if j.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (j *SQLJournal) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return j.db.ExecContext(ctx, j.rebind(query), args...)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		util.Debugf("journal: bad timestamp %q", s)
	}
	return t
}

// Open implements Journal.
func (j *SQLJournal) Open(ctx context.Context, app string) (string, error) {
	id := newID()
	_, err := j.exec(ctx,
		`INSERT INTO metadata (uuid, app, status, created_at) VALUES (?, ?, ?, ?)`,
		id, app, string(StatusActive), formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("journal: open: %w", err)
	}
	return id, nil
}

// Record implements Journal. Entries of a closed or unknown journal are
// rejected.
func (j *SQLJournal) Record(ctx context.Context, e *Entry) error {
	var status string
	err := j.db.QueryRowContext(ctx, j.rebind(`SELECT status FROM metadata WHERE uuid = ?`), e.Journal).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("journal %s: %w", e.Journal, util.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	if Status(status) == StatusClosed {
		return fmt.Errorf("journal %s is closed: %w", e.Journal, util.ErrInvalidConfig)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = j.exec(ctx,
		`INSERT INTO entries (uuid, app, device, step, object, ok, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Journal, e.App, e.Device, e.Step, e.Object, e.OK, e.Message, formatTime(ts))
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Finish implements Journal.
func (j *SQLJournal) Finish(ctx context.Context, id string) error {
	res, err := j.exec(ctx, `UPDATE metadata SET status = ? WHERE uuid = ?`, string(StatusClosed), id)
	if err != nil {
		return fmt.Errorf("journal: finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal %s: %w", id, util.ErrNotFound)
	}
	return nil
}

// Entries implements Journal.
func (j *SQLJournal) Entries(ctx context.Context, id string, filter Filter) ([]*Entry, error) {
	query := `SELECT uuid, app, device, step, object, ok, message, created_at FROM entries WHERE uuid = ?`
	args := []interface{}{id}
	if filter.Device != "" {
		query += ` AND device = ?`
		args = append(args, filter.Device)
	}
	if filter.Step != "" {
		query += ` AND step = ?`
		args = append(args, filter.Step)
	}
	if filter.FailureOnly {
		query += ` AND ok = ?`
		args = append(args, false)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		// sqlite only accepts OFFSET after a LIMIT
		if filter.Limit <= 0 && j.driver == DriverSQLite {
			query += ` LIMIT -1`
		}
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := j.db.QueryContext(ctx, j.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("journal: entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e  Entry
			ts string
		)
		if err := rows.Scan(&e.Journal, &e.App, &e.Device, &e.Step, &e.Object, &e.OK, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Timestamp = parseTime(ts)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Journals implements Journal.
func (j *SQLJournal) Journals(ctx context.Context) ([]*Meta, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT uuid, app, status, created_at FROM metadata ORDER BY created_at, uuid`)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []*Meta
	for rows.Next() {
		var (
			m          Meta
			status, ts string
		)
		if err := rows.Scan(&m.ID, &m.App, &status, &ts); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		m.Status = Status(status)
		m.CreatedAt = parseTime(ts)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *SQLJournal) Close() error {
	return j.db.Close()
}

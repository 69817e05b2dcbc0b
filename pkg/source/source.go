// Package source pages subtitle archives out of the relational dump.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/xhad/subsearch/internal/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	DefaultTable = "zipfiles"
)

var (
	ErrUnknownDriver = errors.New("unknown source driver")
	ErrInvalidTable  = errors.New("invalid table name")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects to the source database. An empty driver selects SQLite.
func Open(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to source database: %w", err)
	}
	return db, nil
}

// Pager reads (num, name, content) rows in ascending num order.
type Pager struct {
	db    *sqlx.DB
	query string
}

func NewPager(db *sqlx.DB, table string) (*Pager, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	q := fmt.Sprintf("SELECT num, COALESCE(name, '') AS name, content FROM %s WHERE num > ? ORDER BY num ASC LIMIT ?", table)
	return &Pager{db: db, query: db.Rebind(q)}, nil
}

type row struct {
	Num     int64  `db:"num"`
	Name    string `db:"name"`
	Content []byte `db:"content"`
}

// Next returns up to limit rows with num strictly greater than after.
func (p *Pager) Next(ctx context.Context, after int64, limit int) ([]models.SubtitleRecord, error) {
	var rows []row
	if err := p.db.SelectContext(ctx, &rows, p.query, after, limit); err != nil {
		return nil, fmt.Errorf("failed to query source page: %w", err)
	}
	out := make([]models.SubtitleRecord, len(rows))
	for i, r := range rows {
		out[i] = models.SubtitleRecord{Num: r.Num, Name: r.Name, Content: r.Content}
	}
	return out, nil
}

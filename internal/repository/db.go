package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Table names of the pre-existing schema. They are quoted in every
// statement because the legacy databases use mixed-case cyrillic
// identifiers.
const (
	TablePersona     = `"Персона"`
	TableModule      = `"Модуль"`
	TableQuestion    = `"Вопрос"`
	TableAnswer      = `"Ответ"`
	TableAnswerGroup = `"Группа_ответов"`
	TableQA          = `"Вопрос_ответ"`
	TableAnketa      = `"Анкета"`
	TableAnketaRow   = `"Анкета_ответ"`
)

// Querier is the subset of *sql.DB / *sql.Tx the repositories run
// statements through, so the same code serves both transactional and
// plain calls.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the configured database. An empty URL falls back to
// a local sqlite file, postgres:// URLs go through lib/pq; anything
// else is treated as a sqlite path.
func Open(databaseURL string) (*sql.DB, error) {
	driver, dsn := resolveDSN(databaseURL)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// sqlite handles one writer; a larger pool just trades errors
		// for lock timeouts.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func resolveDSN(databaseURL string) (driver, dsn string) {
	switch {
	case databaseURL == "":
		return "sqlite3", "db.sqlite3"
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", databaseURL
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(databaseURL, "sqlite://")
	default:
		return "sqlite3", databaseURL
	}
}

// placeholders builds "$1, $2, ..." starting at from, for IN clauses.
func placeholders(from, count int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", from+i)
	}
	return b.String()
}

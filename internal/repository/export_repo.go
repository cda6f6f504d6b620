package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// ExportDump is the administrative snapshot of the survey tables. Each
// table is dumped independently: a failure on one (for example a legacy
// deployment missing a column) is recorded in Errors instead of
// aborting the whole export.
type ExportDump struct {
	Personas      []map[string]any  `json:"persona"`
	Submissions   []map[string]any  `json:"anketa"`
	AnswerRows    []map[string]any  `json:"anketa_answers"`
	Errors        map[string]string `json:"errors,omitempty"`
	PersonaCount  int               `json:"personaCount"`
	AnswerCount   int               `json:"answerCount"`
	AnketaCount   int               `json:"anketaCount"`
}

// ExportRepo produces administrative dumps of the persisted survey data.
type ExportRepo interface {
	Dump(ctx context.Context) (*ExportDump, error)
}

type exportRepo struct {
	db *sql.DB
}

func NewExportRepo(db *sql.DB) ExportRepo {
	return &exportRepo{db: db}
}

func (r *exportRepo) Dump(ctx context.Context) (*ExportDump, error) {
	dump := &ExportDump{Errors: make(map[string]string)}

	tables := []struct {
		name  string
		table string
		dest  *[]map[string]any
	}{
		{"persona", TablePersona, &dump.Personas},
		{"anketa", TableAnketa, &dump.Submissions},
		{"anketa_answers", TableAnketaRow, &dump.AnswerRows},
	}
	for _, t := range tables {
		rows, err := r.dumpTable(ctx, t.table)
		if err != nil {
			dump.Errors[t.name] = err.Error()
			continue
		}
		*t.dest = rows
	}
	if len(dump.Errors) == 0 {
		dump.Errors = nil
	}
	dump.PersonaCount = len(dump.Personas)
	dump.AnketaCount = len(dump.Submissions)
	dump.AnswerCount = len(dump.AnswerRows)
	return dump, nil
}

// dumpTable reads a whole table without assuming its column layout.
func (r *exportRepo) dumpTable(ctx context.Context, table string) ([]map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT * FROM `+table)
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"fmt"
)

// DictionaryRepo reads the canonical answer-text dictionary (Ответ).
// The reconciler uses it to opportunistically link answer rows to
// dictionary ids; the seeder populates it.
type DictionaryRepo interface {
	// IDsByText resolves distinct literal texts to dictionary ids in a
	// single query. Unknown texts are simply absent from the result.
	IDsByText(ctx context.Context, q Querier, texts []string) (map[string]int64, error)
	Insert(ctx context.Context, q Querier, text string) (int64, error)
}

type dictionaryRepo struct{}

func NewDictionaryRepo() DictionaryRepo {
	return &dictionaryRepo{}
}

func (r *dictionaryRepo) IDsByText(ctx context.Context, q Querier, texts []string) (map[string]int64, error) {
	out := make(map[string]int64, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	args := make([]any, len(texts))
	for i, t := range texts {
		args[i] = t
	}
	query := `SELECT "id", "text" FROM ` + TableAnswer + ` WHERE "text" IN (` + placeholders(1, len(texts)) + `)`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dictionary lookup: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan dictionary row: %w", err)
		}
		out[text] = id
	}
	return out, rows.Err()
}

// Insert adds a canonical answer text; used by the seeder.
func (r *dictionaryRepo) Insert(ctx context.Context, q Querier, text string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO `+TableAnswer+` ("text") VALUES ($1) RETURNING "id"`, text).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert dictionary text: %w", err)
	}
	return id, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cityforall/internal/model"
)

// SubmissionRepo handles Анкета and Анкета_ответ rows. All methods run
// through the caller's transaction; the reconciler owns commit and
// rollback.
type SubmissionRepo interface {
	// Latest returns the most recent submission owned by the identity,
	// or found=false.
	Latest(ctx context.Context, q Querier, shape model.SchemaShape, personID int64) (id int64, found bool, err error)
	// Create inserts a submission row using the layout the deployment
	// carries. firstQID feeds the legacy id_q ordinal column.
	Create(ctx context.Context, q Querier, shape model.SchemaShape, personID, firstQID int64) (int64, error)
	DeleteAnswers(ctx context.Context, q Querier, submissionID int64) error
	InsertAnswer(ctx context.Context, q Querier, row *model.AnswerRow) error
	AnswersBySubmission(ctx context.Context, q Querier, submissionID int64) ([]*model.AnswerRow, error)
}

type submissionRepo struct{}

func NewSubmissionRepo() SubmissionRepo {
	return &submissionRepo{}
}

func (r *submissionRepo) Latest(ctx context.Context, q Querier, shape model.SchemaShape, personID int64) (int64, bool, error) {
	var query string
	switch shape {
	case model.ShapePersonColumn:
		// Order by id, not created_at: some legacy schemas lack the
		// timestamp column.
		query = `SELECT "id" FROM ` + TableAnketa + ` WHERE "person_id" = $1 ORDER BY "id" DESC LIMIT 1`
	case model.ShapeLegacyOrdinal, model.ShapeSharedID:
		query = `SELECT "id" FROM ` + TableAnketa + ` WHERE "id" = $1 LIMIT 1`
	default:
		return 0, false, fmt.Errorf("latest submission: unresolved schema shape")
	}
	var id int64
	err := q.QueryRowContext(ctx, query, personID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find latest submission: %w", err)
	}
	return id, true, nil
}

func (r *submissionRepo) Create(ctx context.Context, q Querier, shape model.SchemaShape, personID, firstQID int64) (int64, error) {
	var (
		query string
		args  []any
	)
	switch shape {
	case model.ShapePersonColumn:
		query = `INSERT INTO ` + TableAnketa + ` ("person_id") VALUES ($1) RETURNING "id"`
		args = []any{personID}
	case model.ShapeLegacyOrdinal:
		query = `INSERT INTO ` + TableAnketa + ` ("id", "id_q") VALUES ($1, $2) RETURNING "id"`
		args = []any{personID, firstQID}
	case model.ShapeSharedID:
		query = `INSERT INTO ` + TableAnketa + ` ("id") VALUES ($1) RETURNING "id"`
		args = []any{personID}
	default:
		return 0, fmt.Errorf("create submission: unresolved schema shape")
	}
	var id int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create submission (%s): %w", shape, err)
	}
	return id, nil
}

func (r *submissionRepo) DeleteAnswers(ctx context.Context, q Querier, submissionID int64) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM `+TableAnketaRow+` WHERE "anketa_id" = $1`, submissionID)
	if err != nil {
		return fmt.Errorf("delete previous answers: %w", err)
	}
	return nil
}

func (r *submissionRepo) InsertAnswer(ctx context.Context, q Querier, row *model.AnswerRow) error {
	qid := sql.NullInt64{}
	if row.QuestionID != nil {
		qid = sql.NullInt64{Int64: *row.QuestionID, Valid: true}
	}
	aid := sql.NullInt64{}
	if row.AnswerID != nil {
		aid = sql.NullInt64{Int64: *row.AnswerID, Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO `+TableAnketaRow+` ("anketa_id", "question_id", "answer_id", "answer_text") VALUES ($1, $2, $3, $4)`,
		row.SubmissionID, qid, aid, row.Text)
	if err != nil {
		return fmt.Errorf("insert answer row: %w", err)
	}
	return nil
}

func (r *submissionRepo) AnswersBySubmission(ctx context.Context, q Querier, submissionID int64) ([]*model.AnswerRow, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT "id", "anketa_id", "question_id", "answer_id", "answer_text" FROM `+TableAnketaRow+
			` WHERE "anketa_id" = $1 ORDER BY "id"`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("load answer rows: %w", err)
	}
	defer rows.Close()

	var out []*model.AnswerRow
	for rows.Next() {
		var (
			row      model.AnswerRow
			qid, aid sql.NullInt64
			text     sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.SubmissionID, &qid, &aid, &text); err != nil {
			return nil, fmt.Errorf("scan answer row: %w", err)
		}
		if qid.Valid {
			row.QuestionID = &qid.Int64
		}
		if aid.Valid {
			row.AnswerID = &aid.Int64
		}
		row.Text = text.String
		out = append(out, &row)
	}
	return out, rows.Err()
}

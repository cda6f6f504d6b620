package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cityforall/internal/model"
)

// PersonaRepo handles the respondent identity table. Identity creation
// is monotonic: once a row exists it is never removed by later
// rollbacks, so FindOrCreate runs outside the reconciliation
// transaction.
type PersonaRepo interface {
	FindOrCreate(ctx context.Context, userID int64, username string) (*model.Identity, error)
	Find(ctx context.Context, userID int64) (*model.Identity, error)
}

type personaRepo struct {
	db *sql.DB
}

func NewPersonaRepo(db *sql.DB) PersonaRepo {
	return &personaRepo{db: db}
}

func (r *personaRepo) Find(ctx context.Context, userID int64) (*model.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT "id", "user_id", "username" FROM `+TablePersona+` WHERE "user_id" = $1`, userID)
	var p model.Identity
	err := row.Scan(&p.ID, &p.UserID, &p.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find persona: %w", err)
	}
	return &p, nil
}

func (r *personaRepo) FindOrCreate(ctx context.Context, userID int64, username string) (*model.Identity, error) {
	if p, err := r.Find(ctx, userID); err != nil || p != nil {
		return p, err
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO `+TablePersona+` ("user_id", "username") VALUES ($1, $2) RETURNING "id"`,
		userID, username)
	var id int64
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("create persona: %w", err)
	}
	return &model.Identity{ID: id, UserID: userID, Username: username}, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cityforall/internal/model"
)

// ensureSchema creates the modern table layout when the database is
// empty. Pre-existing deployments keep whatever shape they already
// have; only fresh local databases go through here, so the DDL is
// sqlite-flavored.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS "Персона" (
		"id" INTEGER PRIMARY KEY,
		"user_id" INTEGER NOT NULL,
		"username" TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "Модуль" (
		"id" INTEGER PRIMARY KEY,
		"name" TEXT NOT NULL,
		"description" TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS "Вопрос" (
		"id" INTEGER PRIMARY KEY,
		"pid" INTEGER,
		"module_id" INTEGER,
		"text" TEXT NOT NULL,
		"type" TEXT NOT NULL,
		"pic" BOOLEAN DEFAULT FALSE,
		"condition" TEXT,
		"image" TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS "Ответ" (
		"id" INTEGER PRIMARY KEY,
		"text" TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "Группа_ответов" (
		"id" INTEGER PRIMARY KEY,
		"group_id" INTEGER NOT NULL,
		"answer_id" INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "Вопрос_ответ" (
		"id" INTEGER PRIMARY KEY,
		"question_id" INTEGER NOT NULL,
		"group_id" INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "Анкета" (
		"id" INTEGER PRIMARY KEY,
		"person_id" INTEGER,
		"id_q" INTEGER,
		"group_id" INTEGER,
		"created_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS "Анкета_ответ" (
		"id" INTEGER PRIMARY KEY,
		"anketa_id" INTEGER NOT NULL,
		"question_id" INTEGER,
		"answer_id" INTEGER,
		"answer_text" TEXT,
		"created_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_anketa_otvet_anketa ON "Анкета_ответ" ("anketa_id")`,
	`CREATE INDEX IF NOT EXISTS idx_otvet_text ON "Ответ" ("text")`,
}

// EnsureSchema creates missing tables for fresh databases. Existing
// tables are left untouched whatever their shape.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DetectShape probes which physical layout of the Анкета table this
// deployment carries, by column existence, in the same precedence order
// the writer uses. Called once at startup; reconciliation never
// re-discovers the shape per call.
func DetectShape(ctx context.Context, db *sql.DB) (model.SchemaShape, error) {
	probes := []struct {
		column string
		shape  model.SchemaShape
	}{
		{"person_id", model.ShapePersonColumn},
		{"id_q", model.ShapeLegacyOrdinal},
		{"id", model.ShapeSharedID},
	}
	var lastErr error
	for _, p := range probes {
		query := fmt.Sprintf(`SELECT %q FROM %s LIMIT 1`, p.column, TableAnketa)
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		rows.Close()
		return p.shape, nil
	}
	return model.ShapeUnknown, fmt.Errorf("probe %s layout: %w", TableAnketa, lastErr)
}

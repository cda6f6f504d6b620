package service

import (
	"context"
	"database/sql"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cityforall/internal/model"
	"cityforall/internal/repository"
)

// AnswerSink receives the frozen answer map of a completed survey.
type AnswerSink interface {
	Reconcile(ctx context.Context, userID int64, username string, answers map[string]model.Value) (int64, error)
}

// Reconciler maps a flat answer map into the relational record set:
// identity upsert, submission reuse with full answer overwrite, and
// best-effort linkage into the canonical answer dictionary. The schema
// shape is resolved once at construction; the write path never probes.
type Reconciler struct {
	db          *sql.DB
	shape       model.SchemaShape
	personas    repository.PersonaRepo
	submissions repository.SubmissionRepo
	dictionary  repository.DictionaryRepo
	log         *zap.Logger
}

// NewReconciler probes the Анкета layout and returns a writer bound to
// it. The database must already carry the survey tables (EnsureSchema
// creates them for fresh local files).
func NewReconciler(ctx context.Context, db *sql.DB, log *zap.Logger) (*Reconciler, error) {
	shape, err := repository.DetectShape(ctx, db)
	if err != nil {
		return nil, err
	}
	log.Info("submission schema shape resolved", zap.Stringer("shape", shape))
	return &Reconciler{
		db:          db,
		shape:       shape,
		personas:    repository.NewPersonaRepo(db),
		submissions: repository.NewSubmissionRepo(),
		dictionary:  repository.NewDictionaryRepo(),
		log:         log,
	}, nil
}

// Reconcile upserts the identity, then rewrites that identity's latest
// submission inside one transaction: previous answer rows are deleted
// and replaced by the new set, so a respondent restarting the survey
// overwrites rather than duplicates. Returns the submission id.
//
// Any storage failure after identity resolution is logged with full
// context and returned as *PersistenceError; the caller must not assume
// the submission was saved. There is no retry here.
func (r *Reconciler) Reconcile(ctx context.Context, userID int64, username string, answers map[string]model.Value) (int64, error) {
	callID := uuid.NewString()
	log := r.log.With(
		zap.String("reconcileId", callID),
		zap.Int64("userId", userID),
		zap.Stringer("shape", r.shape),
	)

	// Identity is monotonic: persisted outside the transaction so a
	// later rollback never removes it.
	identity, err := r.personas.FindOrCreate(ctx, userID, username)
	if err != nil {
		log.Error("identity upsert failed", zap.Error(err))
		return 0, &PersistenceError{UserID: userID, Err: err}
	}

	keys := sortedKeys(answers)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("begin reconcile transaction failed", zap.Error(err))
		return 0, &PersistenceError{UserID: userID, Err: err}
	}
	defer tx.Rollback()

	submissionID, reused, err := r.resolveSubmission(ctx, tx, identity.ID, keys, answers)
	if err != nil {
		log.Error("submission resolution failed", zap.Error(err))
		return 0, &PersistenceError{UserID: userID, Err: err}
	}

	dict, err := r.dictionary.IDsByText(ctx, tx, distinctTexts(keys, answers))
	if err != nil {
		// The dictionary link is opportunistic; an unmatched text never
		// blocks the write, but a failing lookup is a storage error.
		log.Error("dictionary lookup failed", zap.Error(err))
		return 0, &PersistenceError{UserID: userID, Err: err}
	}

	rows := 0
	for _, key := range keys {
		var qidPtr *int64
		if qid, ok := model.ParseQuestionID(key); ok {
			v := int64(qid)
			qidPtr = &v
		}
		for _, text := range answers[key].Texts() {
			row := &model.AnswerRow{
				SubmissionID: submissionID,
				QuestionID:   qidPtr,
				Text:         text,
			}
			if id, ok := dict[text]; ok {
				row.AnswerID = &id
			}
			if err := r.submissions.InsertAnswer(ctx, tx, row); err != nil {
				log.Error("answer row insert failed", zap.String("key", key), zap.Error(err))
				return 0, &PersistenceError{UserID: userID, Err: err}
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("reconcile commit failed", zap.Error(err))
		return 0, &PersistenceError{UserID: userID, Err: err}
	}

	log.Info("survey answers reconciled",
		zap.Int64("submissionId", submissionID),
		zap.Bool("reusedSubmission", reused),
		zap.Int("rows", rows),
	)
	return submissionID, nil
}

// resolveSubmission reuses the identity's latest submission (clearing
// its answer rows for the overwrite) or creates one in the deployment's
// layout.
func (r *Reconciler) resolveSubmission(ctx context.Context, tx *sql.Tx, personID int64, keys []string, answers map[string]model.Value) (int64, bool, error) {
	id, found, err := r.submissions.Latest(ctx, tx, r.shape, personID)
	if err != nil {
		return 0, false, err
	}
	if found {
		if err := r.submissions.DeleteAnswers(ctx, tx, id); err != nil {
			return 0, false, err
		}
		return id, true, nil
	}
	id, err = r.submissions.Create(ctx, tx, r.shape, personID, firstQuestionID(keys))
	if err != nil {
		return 0, false, err
	}
	return id, false, nil
}

// firstQuestionID picks the first parsable question id to feed the
// legacy id_q column; 0 when none parses.
func firstQuestionID(keys []string) int64 {
	for _, key := range keys {
		if qid, ok := model.ParseQuestionID(key); ok {
			return int64(qid)
		}
	}
	return 0
}

func sortedKeys(answers map[string]model.Value) []string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func distinctTexts(keys []string, answers map[string]model.Value) []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range keys {
		for _, text := range answers[key].Texts() {
			if !seen[text] {
				seen[text] = true
				out = append(out, text)
			}
		}
	}
	return out
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"cityforall/internal/model"
	"cityforall/internal/survey"
)

// SeedStats summarizes one dictionary rebuild.
type SeedStats struct {
	Modules    int
	Questions  int
	Answers    int
	GroupLinks int
	QALinks    int
}

// DictionarySeeder rebuilds the survey dictionary tables (modules,
// questions, canonical answers and their groupings) from a loaded
// survey graph. Respondent data (Персона, Анкета) is never touched.
type DictionarySeeder struct {
	db   *sql.DB
	dict DictionaryRepo
}

func NewDictionarySeeder(db *sql.DB) *DictionarySeeder {
	return &DictionarySeeder{db: db, dict: NewDictionaryRepo()}
}

// Rebuild wipes and re-imports the dictionary in one transaction.
// Question ids are renumbered globally in traversal order, so routing
// conditions are rewritten against the new ids. Answer texts inserted
// here are what the reconciler later links answer rows to.
func (s *DictionarySeeder) Rebuild(ctx context.Context, graph *survey.Graph) (*SeedStats, error) {
	nav := survey.NewNavigator(graph)
	stats := &SeedStats{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Child tables first.
	for _, table := range []string{TableQA, TableAnswerGroup, TableAnswer, TableQuestion, TableModule} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	ids := renumber(graph)

	// Bare scale options go in first so completed level answers resolve
	// against the dictionary by their own text.
	seenScale := make(map[string]bool)
	for _, name := range graph.ModuleOrder() {
		mod, _ := graph.Module(name)
		for _, qid := range mod.Order {
			for i := range mod.Questions[qid].Levels {
				for _, opt := range nav.OptionsForLevel(&mod.Questions[qid].Levels[i]) {
					if seenScale[opt] {
						continue
					}
					seenScale[opt] = true
					if _, err := s.dict.Insert(ctx, tx, opt); err != nil {
						return nil, err
					}
					stats.Answers++
				}
			}
		}
	}

	for _, name := range graph.ModuleOrder() {
		mod, _ := graph.Module(name)
		var moduleID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO `+TableModule+` ("name") VALUES ($1) RETURNING "id"`, name,
		).Scan(&moduleID)
		if err != nil {
			return nil, fmt.Errorf("insert module %s: %w", name, err)
		}
		stats.Modules++

		for _, qid := range mod.Order {
			q := mod.Questions[qid]
			newID := ids[name][qid]

			var condition sql.NullString
			if text := conditionText(name, q, ids); text != "" {
				condition = sql.NullString{String: text, Valid: true}
			}
			var image sql.NullString
			if q.Image != "" {
				image = sql.NullString{String: q.Image, Valid: true}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO `+TableQuestion+` ("id", "pid", "module_id", "text", "type", "pic", "condition", "image")
				 VALUES ($1, NULL, $2, $3, $4, $5, $6, $7)`,
				newID, moduleID, q.Text, string(q.Type), q.Image != "", condition, image,
			)
			if err != nil {
				return nil, fmt.Errorf("insert question %d: %w", newID, err)
			}
			stats.Questions++

			if err := s.seedOptions(ctx, tx, newID, q.Options, newID, stats); err != nil {
				return nil, err
			}
			if err := s.seedLevels(ctx, tx, nav, newID, q, stats); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stats, nil
}

// seedOptions inserts one question's option texts, groups them under
// groupID and links the question to the first group row as the
// representative.
func (s *DictionarySeeder) seedOptions(ctx context.Context, tx *sql.Tx, questionID int, options []string, groupID int, stats *SeedStats) error {
	var representative int64
	for _, text := range options {
		answerID, err := s.dict.Insert(ctx, tx, text)
		if err != nil {
			return err
		}
		stats.Answers++
		rowID, err := insertGroupRow(ctx, tx, groupID, answerID)
		if err != nil {
			return err
		}
		stats.GroupLinks++
		if representative == 0 {
			representative = rowID
		}
	}
	if representative == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO `+TableQA+` ("question_id", "group_id") VALUES ($1, $2)`,
		questionID, representative,
	)
	if err != nil {
		return fmt.Errorf("link question %d answers: %w", questionID, err)
	}
	stats.QALinks++
	return nil
}

// seedLevels fans out level descriptions crossed with their scale
// options, grouped apart from the question's plain options.
func (s *DictionarySeeder) seedLevels(ctx context.Context, tx *sql.Tx, nav *survey.Navigator, questionID int, q *model.Question, stats *SeedStats) error {
	if !q.HasLevels() {
		return nil
	}
	texts := make([]string, 0, len(q.Levels)*4)
	for i := range q.Levels {
		lvl := &q.Levels[i]
		for _, opt := range nav.OptionsForLevel(lvl) {
			texts = append(texts, levelText(lvl)+" - "+opt)
		}
	}
	// level groups live in an id range apart from plain option groups
	return s.seedOptions(ctx, tx, questionID, texts, questionID+1000, stats)
}

func insertGroupRow(ctx context.Context, tx *sql.Tx, groupID int, answerID int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO `+TableAnswerGroup+` ("group_id", "answer_id") VALUES ($1, $2) RETURNING "id"`,
		groupID, answerID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert answer group row: %w", err)
	}
	return id, nil
}

// renumber assigns sequential ids to every question in traversal order.
func renumber(graph *survey.Graph) map[string]map[int]int {
	ids := make(map[string]map[int]int)
	next := 1
	for _, name := range graph.ModuleOrder() {
		mod, _ := graph.Module(name)
		ids[name] = make(map[int]int, len(mod.Order))
		for _, qid := range mod.Order {
			ids[name][qid] = next
			next++
		}
	}
	return ids
}

// conditionText renders routing rules as "answer:newId" pairs against
// the renumbered question ids.
func conditionText(module string, q *model.Question, ids map[string]map[int]int) string {
	if len(q.Routing) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q.Routing))
	for k := range q.Routing {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		target := q.Routing[k]
		targetModule := target.Module
		if targetModule == "" {
			targetModule = module
		}
		if newID, ok := ids[targetModule][target.QuestionID]; ok {
			parts = append(parts, fmt.Sprintf("%s:%d", k, newID))
		}
	}
	return strings.Join(parts, ";")
}

// levelText renders the display attributes of a level the way the
// dictionary stores them.
func levelText(lvl *model.Level) string {
	var parts []string
	if lvl.Height != "" {
		parts = append(parts, "height: "+lvl.Height)
	}
	if lvl.Angle != "" {
		parts = append(parts, "angle: "+lvl.Angle)
	}
	if lvl.Surface != "" {
		parts = append(parts, "surface: "+lvl.Surface)
	}
	return strings.Join(parts, " | ")
}

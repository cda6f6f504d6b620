package model

// Identity is a respondent as stored in the Персона table.
type Identity struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId"`   // external (chat platform) id, unique
	Username string `json:"username"`
}

// AnswerRow is one persisted answer (an Анкета_ответ row). List-valued
// answers produce one row per element. QuestionID and AnswerID are
// pointers because legacy rows may carry NULLs.
type AnswerRow struct {
	ID           int64  `json:"id"`
	SubmissionID int64  `json:"anketaId"`
	QuestionID   *int64 `json:"questionId"`
	AnswerID     *int64 `json:"answerId"` // link into the Ответ dictionary, when resolvable
	Text         string `json:"answerText"`
}

// SchemaShape identifies which physical layout of the Анкета table a
// deployment carries. Probed once at startup; the reconciler hot path
// never re-discovers it.
type SchemaShape int

const (
	// ShapeUnknown means probing was inconclusive; the writer falls back
	// to trying each shape in order.
	ShapeUnknown SchemaShape = iota
	// ShapePersonColumn: Анкета has a person_id column (modern layout).
	ShapePersonColumn
	// ShapeLegacyOrdinal: no person_id; rows are keyed by id plus the
	// auxiliary id_q ordinal column.
	ShapeLegacyOrdinal
	// ShapeSharedID: Анкета.id is the Персона.id (oldest layout).
	ShapeSharedID
)

func (s SchemaShape) String() string {
	switch s {
	case ShapePersonColumn:
		return "person_column"
	case ShapeLegacyOrdinal:
		return "legacy_ordinal"
	case ShapeSharedID:
		return "shared_id"
	}
	return "unknown"
}

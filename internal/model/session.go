package model

import (
	"fmt"
	"strings"
)

// SessionPhase tracks where a conversation is in the survey lifecycle.
type SessionPhase string

const (
	PhaseInProgress     SessionPhase = "in_progress"
	PhaseAwaitingCustom SessionPhase = "awaiting_custom_text"
)

// Session is the mutable per-respondent conversation state for one
// survey attempt. It is owned exclusively by its chat; a restart
// replaces it wholesale.
type Session struct {
	ChatID   int64  `json:"chatId"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`

	Phase SessionPhase `json:"phase"`

	Module     string `json:"module"`
	QuestionID int    `json:"questionId"`
	Level      int    `json:"level"`

	// Answers maps composite keys ("module:qid" or "module:qid:level_N")
	// to recorded values.
	Answers map[string]Value `json:"answers"`

	// Selected holds the in-progress multi-select option indices. It is
	// transient: cleared on submit and on every question change.
	Selected []int `json:"selected,omitempty"`

	// AwaitingCustomFor is the composite key of a multi-select draft
	// whose "other" option still needs a free-text reply.
	AwaitingCustomFor string `json:"awaitingCustomFor,omitempty"`

	// SentMessageIDs remembers prompts already emitted so a restart can
	// clean them up.
	SentMessageIDs []int64 `json:"sentMessageIds,omitempty"`
}

// NewSession returns an in-progress session positioned at the entry
// coordinate.
func NewSession(chatID, userID int64, username, module string, questionID int) *Session {
	return &Session{
		ChatID:     chatID,
		UserID:     userID,
		Username:   username,
		Phase:      PhaseInProgress,
		Module:     module,
		QuestionID: questionID,
		Answers:    make(map[string]Value),
	}
}

// AnswerKey builds the composite key for the session's current question.
func (s *Session) AnswerKey() string {
	return AnswerKey(s.Module, s.QuestionID)
}

// LevelKey builds the composite key for a level within the current question.
func (s *Session) LevelKey(level int) string {
	return LevelKey(s.Module, s.QuestionID, level)
}

// ToggleSelected flips an option index in the multi-select buffer.
// Applying it twice restores the previous selection.
func (s *Session) ToggleSelected(idx int) {
	for i, v := range s.Selected {
		if v == idx {
			s.Selected = append(s.Selected[:i], s.Selected[i+1:]...)
			return
		}
	}
	s.Selected = append(s.Selected, idx)
}

// MoveTo repositions the session at a question and resets the
// per-question transients.
func (s *Session) MoveTo(module string, questionID int) {
	s.Module = module
	s.QuestionID = questionID
	s.Level = 0
	s.Selected = nil
}

// AnswerKey builds the composite key "module:qid".
func AnswerKey(module string, questionID int) string {
	return fmt.Sprintf("%s:%d", module, questionID)
}

// LevelKey builds the composite key "module:qid:level_N".
func LevelKey(module string, questionID, level int) string {
	return fmt.Sprintf("%s:%d:level_%d", module, questionID, level)
}

// CustomAnswerKey derives the key a free-text "other" reply is stored
// under, next to its multi-select draft.
func CustomAnswerKey(draftKey string) string {
	return draftKey + ":custom_answer"
}

// ParseQuestionID extracts the numeric question id from a composite
// key: the first colon-delimited token after the module name. Malformed
// keys return ok=false; the caller stores a NULL question id instead of
// failing.
func ParseQuestionID(key string) (int, bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return 0, false
	}
	id := 0
	for _, r := range parts[1] {
		if r < '0' || r > '9' {
			return 0, false
		}
		id = id*10 + int(r-'0')
	}
	if parts[1] == "" {
		return 0, false
	}
	return id, true
}

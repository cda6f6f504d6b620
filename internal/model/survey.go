package model

// QuestionType defines how a question is answered
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"   // one option, advances immediately
	QuestionMultiple QuestionType = "multiple" // toggle several options, explicit submit
	QuestionText     QuestionType = "text"     // free-text reply
)

// Target is the destination coordinate of a routing rule.
type Target struct {
	Module     string `json:"module,omitempty"`
	QuestionID int    `json:"id"`
}

// Question is a single survey item. A question either carries its own
// option list or a list of Levels that share one rating scale.
type Question struct {
	ID      int          `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Levels  []Level      `json:"levels,omitempty"`
	Image   string       `json:"image,omitempty"`

	// Routing maps a literal answer value to the coordinate the survey
	// jumps to when that value is chosen. Nil means default linear order.
	Routing map[string]Target `json:"if,omitempty"`
}

// HasLevels reports whether the question is answered level by level.
func (q *Question) HasLevels() bool {
	return len(q.Levels) > 0
}

// Level is a sub-question sharing one rating scale with its siblings.
// Options holds either the literal option list or, via OptionsRef, the
// name of a shared scale array defined at the survey root.
type Level struct {
	Options    []string `json:"-"`
	OptionsRef string   `json:"-"`
	Image      string   `json:"image,omitempty"`

	// Display attributes; exactly one is normally set and becomes the
	// level caption.
	Height  string `json:"height,omitempty"`
	Angle   string `json:"angle,omitempty"`
	Surface string `json:"surface,omitempty"`
}

// Caption returns the descriptive attribute used as the level title.
func (l *Level) Caption() string {
	switch {
	case l.Height != "":
		return l.Height
	case l.Angle != "":
		return l.Angle
	case l.Surface != "":
		return l.Surface
	}
	return ""
}

// Module groups questions traversed in declaration order.
type Module struct {
	Name      string
	Questions map[int]*Question
	Order     []int // question ids in declaration order
}

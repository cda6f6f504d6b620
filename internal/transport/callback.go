package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback data formats:
//
//	single:<question_id>:<option_index>
//	multi:<question_id>:<option_index>
//	level:<question_id>:<level_index>:<option_index>
//	multi_submit
//	start_survey
type CallbackKind string

const (
	CallbackSingle      CallbackKind = "single"
	CallbackMulti       CallbackKind = "multi"
	CallbackLevel       CallbackKind = "level"
	CallbackMultiSubmit CallbackKind = "multi_submit"
	CallbackStartSurvey CallbackKind = "start_survey"
)

// Callback is a decoded button press.
type Callback struct {
	Kind        CallbackKind
	QuestionID  int
	LevelIndex  int
	OptionIndex int
}

// ParseCallback decodes button callback data. Unknown or malformed data
// is an error; the flow warns the respondent and changes nothing.
func ParseCallback(data string) (Callback, error) {
	switch data {
	case string(CallbackMultiSubmit):
		return Callback{Kind: CallbackMultiSubmit}, nil
	case string(CallbackStartSurvey):
		return Callback{Kind: CallbackStartSurvey}, nil
	}
	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return Callback{}, fmt.Errorf("malformed callback data %q", data)
	}
	cb := Callback{Kind: CallbackKind(parts[0])}
	switch cb.Kind {
	case CallbackSingle, CallbackMulti:
		qid, err1 := strconv.Atoi(parts[1])
		idx, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			return Callback{}, fmt.Errorf("malformed callback indices %q", data)
		}
		cb.QuestionID, cb.OptionIndex = qid, idx
	case CallbackLevel:
		if len(parts) < 4 {
			return Callback{}, fmt.Errorf("malformed level callback %q", data)
		}
		qid, err1 := strconv.Atoi(parts[1])
		lvl, err2 := strconv.Atoi(parts[2])
		idx, err3 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return Callback{}, fmt.Errorf("malformed level callback indices %q", data)
		}
		cb.QuestionID, cb.LevelIndex, cb.OptionIndex = qid, lvl, idx
	default:
		return Callback{}, fmt.Errorf("unknown callback kind %q", parts[0])
	}
	return cb, nil
}

func singleCallback(questionID, optionIndex int) string {
	return fmt.Sprintf("%s:%d:%d", CallbackSingle, questionID, optionIndex)
}

func multiCallback(questionID, optionIndex int) string {
	return fmt.Sprintf("%s:%d:%d", CallbackMulti, questionID, optionIndex)
}

func levelCallback(questionID, levelIndex, optionIndex int) string {
	return fmt.Sprintf("%s:%d:%d:%d", CallbackLevel, questionID, levelIndex, optionIndex)
}

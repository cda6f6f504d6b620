package transport

import "cityforall/internal/model"

const (
	selectedMark     = "✅ "
	submitLabel      = "Подтвердить"
	startSurveyLabel = "Начать опрос"
)

// SingleKeyboard builds the option keyboard for a single-select question.
func SingleKeyboard(q *model.Question) *Keyboard {
	kb := &Keyboard{}
	for i, opt := range q.Options {
		kb.Buttons = append(kb.Buttons, Button{Label: opt, Data: singleCallback(q.ID, i)})
	}
	return kb
}

// MultiKeyboard builds the toggle keyboard for a multi-select question,
// marking the currently selected indices, plus the submit button.
func MultiKeyboard(q *model.Question, selected []int) *Keyboard {
	chosen := make(map[int]bool, len(selected))
	for _, i := range selected {
		chosen[i] = true
	}
	kb := &Keyboard{}
	for i, opt := range q.Options {
		label := opt
		if chosen[i] {
			label = selectedMark + label
		}
		kb.Buttons = append(kb.Buttons, Button{Label: label, Data: multiCallback(q.ID, i)})
	}
	kb.Buttons = append(kb.Buttons, Button{Label: submitLabel, Data: string(CallbackMultiSubmit)})
	return kb
}

// LevelKeyboard builds the scale keyboard for one level of a question.
func LevelKeyboard(q *model.Question, levelIndex int, options []string) *Keyboard {
	kb := &Keyboard{}
	for i, opt := range options {
		kb.Buttons = append(kb.Buttons, Button{Label: opt, Data: levelCallback(q.ID, levelIndex, i)})
	}
	return kb
}

// GreetingKeyboard is the single start button shown before a survey
// begins.
func GreetingKeyboard() *Keyboard {
	return &Keyboard{Buttons: []Button{{Label: startSurveyLabel, Data: string(CallbackStartSurvey)}}}
}

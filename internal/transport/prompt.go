package transport

import (
	"fmt"

	"cityforall/internal/cache"
	"cityforall/internal/model"
)

// PromptBuilder turns questions and levels into outbound prompts,
// attaching images when the cache can resolve them.
type PromptBuilder struct {
	images *cache.ImageCache
}

func NewPromptBuilder(images *cache.ImageCache) *PromptBuilder {
	return &PromptBuilder{images: images}
}

// Question builds the prompt for a plain question, with the keyboard
// matching its type and current selection.
func (b *PromptBuilder) Question(q *model.Question, selected []int) Prompt {
	p := Prompt{Text: q.Text, Image: b.images.Path(q.Image)}
	switch q.Type {
	case model.QuestionMultiple:
		p.Keyboard = MultiKeyboard(q, selected)
	case model.QuestionText:
		// free text: no keyboard
	default:
		p.Keyboard = SingleKeyboard(q)
	}
	return p
}

// Level builds the prompt for one level of a question. The question
// text heads only the first level; subsequent bubbles carry just the
// level caption.
func (b *PromptBuilder) Level(q *model.Question, lvl *model.Level, levelIndex int, options []string) Prompt {
	text := ""
	if levelIndex == 0 {
		text = q.Text + "\n\n"
	}
	if caption := lvl.Caption(); caption != "" {
		text += fmt.Sprintf("• %s", caption)
	}
	image := b.images.Path(lvl.Image)
	if levelIndex == 0 && image == "" {
		image = b.images.Path(q.Image)
	}
	return Prompt{
		Text:     text,
		Image:    image,
		Keyboard: LevelKeyboard(q, levelIndex, options),
	}
}

// Greeting is the pre-survey invitation bubble.
func (b *PromptBuilder) Greeting() Prompt {
	return Prompt{
		Text:     "Привет! Готовы пройти короткий опрос о доступности городской среды? Нажмите кнопку ниже, чтобы начать.",
		Keyboard: GreetingKeyboard(),
	}
}

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cityforall/internal/cache"
	"cityforall/internal/model"
)

func newBuilder(t *testing.T) *PromptBuilder {
	t.Helper()
	return NewPromptBuilder(cache.NewImageCache(t.TempDir(), zap.NewNop()))
}

func TestPromptBuilder_QuestionKeyboards(t *testing.T) {
	b := newBuilder(t)

	single := b.Question(&model.Question{ID: 1, Text: "q", Type: model.QuestionSingle, Options: []string{"a"}}, nil)
	require.NotNil(t, single.Keyboard)
	assert.Equal(t, "single:1:0", single.Keyboard.Buttons[0].Data)

	multi := b.Question(&model.Question{ID: 2, Text: "q", Type: model.QuestionMultiple, Options: []string{"a"}}, []int{0})
	require.NotNil(t, multi.Keyboard)
	assert.Equal(t, "✅ a", multi.Keyboard.Buttons[0].Label)

	text := b.Question(&model.Question{ID: 3, Text: "q", Type: model.QuestionText}, nil)
	assert.Nil(t, text.Keyboard)
}

func TestPromptBuilder_LevelHeading(t *testing.T) {
	b := newBuilder(t)
	q := &model.Question{ID: 4, Text: "Оцените пандус"}
	lvl := &model.Level{Height: "до 10 см"}

	first := b.Level(q, lvl, 0, []string{"Плохо"})
	assert.Contains(t, first.Text, "Оцените пандус")
	assert.Contains(t, first.Text, "• до 10 см")

	// only the first level carries the question text
	second := b.Level(q, lvl, 1, []string{"Плохо"})
	assert.NotContains(t, second.Text, "Оцените пандус")
	assert.Contains(t, second.Text, "• до 10 см")
}

func TestPromptBuilder_Greeting(t *testing.T) {
	p := newBuilder(t).Greeting()
	require.NotNil(t, p.Keyboard)
	assert.Equal(t, "start_survey", p.Keyboard.Buttons[0].Data)
}

package survey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityforall/internal/model"
)

const fixtureJSON = `{
	"options_scale": ["Плохо", "Нормально", "Хорошо"],
	"modul_1": [
		{"id": 1, "text": "Ваш возраст?", "type": "single", "options": ["18-34", "35-59", "60+"]},
		{"id": 2, "text": "Есть ли у вас инвалидность?", "type": "single", "options": ["Да", "Нет"],
		 "if": {"Да": {"module": "modul_2", "id": 5}}},
		{"id": 3, "text": "С какими барьерами вы сталкиваетесь?", "type": "multiple",
		 "options": ["Пандусы", "Лифты", "Не готов", "Другое"]},
		{"id": 4, "text": "Оцените пандус", "type": "single", "image": "ramp.png",
		 "levels": [
			{"height": "до 10 см", "options": "options_scale"},
			{"angle": "30 градусов", "options": ["Удобно", "Неудобно"], "image": "ramp_30.png"}
		 ]}
	],
	"modul_2": [
		{"id": 5, "text": "Опишите свой опыт", "type": "text"},
		{"id": 6, "text": "Готовы участвовать в следующих опросах?", "type": "single", "options": ["Да", "Нет"]}
	]
}`

func loadFixture(t *testing.T) *Graph {
	t.Helper()
	g, err := Parse([]byte(fixtureJSON))
	require.NoError(t, err)
	return g
}

func TestParse_BuildsGraph(t *testing.T) {
	g := loadFixture(t)

	assert.Equal(t, []string{"modul_1", "modul_2"}, g.ModuleOrder())
	assert.Equal(t, 6, g.QuestionCount())

	scale, ok := g.Scale("options_scale")
	require.True(t, ok)
	assert.Equal(t, []string{"Плохо", "Нормально", "Хорошо"}, scale)

	mod, ok := g.Module("modul_1")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4}, mod.Order)

	q := mod.Questions[2]
	require.NotNil(t, q)
	assert.Equal(t, model.QuestionSingle, q.Type)
	assert.Equal(t, model.Target{Module: "modul_2", QuestionID: 5}, q.Routing["Да"])
}

func TestParse_LevelOptionsUnion(t *testing.T) {
	g := loadFixture(t)
	mod, _ := g.Module("modul_1")
	q := mod.Questions[4]
	require.Len(t, q.Levels, 2)

	// scale reference
	assert.Equal(t, "options_scale", q.Levels[0].OptionsRef)
	assert.Empty(t, q.Levels[0].Options)
	assert.Equal(t, "до 10 см", q.Levels[0].Caption())

	// literal array
	assert.Empty(t, q.Levels[1].OptionsRef)
	assert.Equal(t, []string{"Удобно", "Неудобно"}, q.Levels[1].Options)
	assert.Equal(t, "30 градусов", q.Levels[1].Caption())
}

func TestParse_RoutingDefaultsToOwnModule(t *testing.T) {
	g, err := Parse([]byte(`{
		"modul_1": [
			{"id": 1, "text": "a", "type": "single", "options": ["x"], "if": {"x": {"id": 2}}},
			{"id": 2, "text": "b", "type": "text"}
		]
	}`))
	require.NoError(t, err)
	mod, _ := g.Module("modul_1")
	assert.Equal(t, model.Target{Module: "modul_1", QuestionID: 2}, mod.Questions[1].Routing["x"])
}

func TestParse_MissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"no id":   `{"modul_1": [{"text": "a", "type": "single"}]}`,
		"no text": `{"modul_1": [{"id": 1, "type": "single"}]}`,
		"no type": `{"modul_1": [{"id": 1, "text": "a"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestParse_UnknownRoutingTarget(t *testing.T) {
	_, err := Parse([]byte(`{
		"modul_1": [{"id": 1, "text": "a", "type": "single", "options": ["x"], "if": {"x": {"id": 99}}}]
	}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{
		"modul_1": [{"id": 1, "text": "a", "type": "single", "options": ["x"],
		             "if": {"x": {"module": "modul_9", "id": 1}}}]
	}`))
	assert.Error(t, err)
}

func TestParse_UnknownScaleReference(t *testing.T) {
	_, err := Parse([]byte(`{
		"modul_1": [{"id": 1, "text": "a", "type": "single",
		             "levels": [{"height": "h", "options": "no_such_scale"}]}]
	}`))
	assert.Error(t, err)
}

func TestParse_DuplicateQuestionID(t *testing.T) {
	_, err := Parse([]byte(`{
		"modul_1": [
			{"id": 1, "text": "a", "type": "text"},
			{"id": 1, "text": "b", "type": "text"}
		]
	}`))
	assert.Error(t, err)
}

func TestParse_NoModules(t *testing.T) {
	_, err := Parse([]byte(`{"options_scale": ["a"]}`))
	assert.Error(t, err)
}

func TestParse_ModuleOrderIsNumeric(t *testing.T) {
	g, err := Parse([]byte(`{
		"modul_10": [{"id": 1, "text": "a", "type": "text"}],
		"modul_2":  [{"id": 2, "text": "b", "type": "text"}],
		"modul_1":  [{"id": 3, "text": "c", "type": "text"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"modul_1", "modul_2", "modul_10"}, g.ModuleOrder())
}

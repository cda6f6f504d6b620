package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggleSelected_IsOwnInverse(t *testing.T) {
	s := NewSession(1, 1, "u", "modul_1", 1)

	s.ToggleSelected(2)
	assert.Equal(t, []int{2}, s.Selected)
	s.ToggleSelected(0)
	assert.Equal(t, []int{2, 0}, s.Selected)
	s.ToggleSelected(2)
	assert.Equal(t, []int{0}, s.Selected)
	s.ToggleSelected(0)
	assert.Empty(t, s.Selected)
}

func TestMoveTo_ResetsTransients(t *testing.T) {
	s := NewSession(1, 1, "u", "modul_1", 3)
	s.Level = 2
	s.ToggleSelected(1)

	s.MoveTo("modul_2", 5)
	assert.Equal(t, "modul_2", s.Module)
	assert.Equal(t, 5, s.QuestionID)
	assert.Zero(t, s.Level)
	assert.Nil(t, s.Selected)
}

func TestCompositeKeys(t *testing.T) {
	s := NewSession(1, 1, "u", "modul_1", 4)
	assert.Equal(t, "modul_1:4", s.AnswerKey())
	assert.Equal(t, "modul_1:4:level_2", s.LevelKey(2))
	assert.Equal(t, "modul_1:4:custom_answer", CustomAnswerKey(s.AnswerKey()))
}

func TestParseQuestionID(t *testing.T) {
	cases := []struct {
		key string
		id  int
		ok  bool
	}{
		{"modul_1:4", 4, true},
		{"modul_1:4:level_2", 4, true},
		{"modul_1:12:custom_answer", 12, true},
		{"modul_1", 0, false},
		{"modul_1:", 0, false},
		{"modul_1:abc", 0, false},
		{"modul_1:4x:level_0", 0, false},
	}
	for _, tc := range cases {
		id, ok := ParseQuestionID(tc.key)
		assert.Equal(t, tc.ok, ok, tc.key)
		assert.Equal(t, tc.id, id, tc.key)
	}
}

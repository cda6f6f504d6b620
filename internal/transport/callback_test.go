package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data string
		want Callback
	}{
		{"single:3:1", Callback{Kind: CallbackSingle, QuestionID: 3, OptionIndex: 1}},
		{"multi:12:0", Callback{Kind: CallbackMulti, QuestionID: 12, OptionIndex: 0}},
		{"level:4:2:1", Callback{Kind: CallbackLevel, QuestionID: 4, LevelIndex: 2, OptionIndex: 1}},
		{"multi_submit", Callback{Kind: CallbackMultiSubmit}},
		{"start_survey", Callback{Kind: CallbackStartSurvey}},
	}
	for _, tc := range cases {
		cb, err := ParseCallback(tc.data)
		require.NoError(t, err, tc.data)
		assert.Equal(t, tc.want, cb, tc.data)
	}
}

func TestParseCallback_Malformed(t *testing.T) {
	for _, data := range []string{
		"", "bogus", "single:3", "single:x:1", "level:4:2", "level:4:a:1", "unknown:1:2",
	} {
		_, err := ParseCallback(data)
		assert.Error(t, err, data)
	}
}

func TestParseCallback_RoundTrip(t *testing.T) {
	cb, err := ParseCallback(singleCallback(7, 2))
	require.NoError(t, err)
	assert.Equal(t, Callback{Kind: CallbackSingle, QuestionID: 7, OptionIndex: 2}, cb)

	cb, err = ParseCallback(levelCallback(7, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, Callback{Kind: CallbackLevel, QuestionID: 7, LevelIndex: 1}, cb)
}

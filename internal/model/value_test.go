package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_ScalarRoundTrip(t *testing.T) {
	v := StringValue("Да")
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `"Да"`, string(data))

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.IsList())
	assert.Equal(t, []string{"Да"}, back.Texts())
}

func TestValue_ListRoundTrip(t *testing.T) {
	v := ListValue([]string{"Пандусы", "Лифты"})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `["Пандусы","Лифты"]`, string(data))

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.IsList())
	assert.Equal(t, []string{"Пандусы", "Лифты"}, back.Texts())
}

func TestValue_SessionMapRoundTrip(t *testing.T) {
	answers := map[string]Value{
		"modul_1:1": StringValue("18-34"),
		"modul_1:3": ListValue([]string{"Лифты", "Другое"}),
	}
	data, err := json.Marshal(answers)
	require.NoError(t, err)

	var back map[string]Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, answers, back)
}

func TestValue_RejectsOtherJSONTypes(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte(`42`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

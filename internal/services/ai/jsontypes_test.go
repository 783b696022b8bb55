package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt(t *testing.T) {
	tests := []struct {
		raw   string
		want  int
		valid bool
	}{
		{`{"n":30}`, 30, true},
		{`{"n":"45"}`, 45, true},
		{`{"n":29.6}`, 30, true},
		{`{"n":null}`, 0, false},
		{`{"n":"about an hour"}`, 0, false},
		{`{}`, 0, false},
	}
	for _, tt := range tests {
		var v struct {
			N FlexInt `json:"n"`
		}
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &v), tt.raw)
		assert.Equal(t, tt.valid, v.N.Valid, tt.raw)
		assert.Equal(t, tt.want, v.N.Value, tt.raw)
	}
}

func TestFlexBool(t *testing.T) {
	var v struct {
		A FlexBool `json:"a"`
		B FlexBool `json:"b"`
		C FlexBool `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":true,"b":"false","c":"maybe"}`), &v))
	assert.True(t, v.A.Valid && v.A.Value)
	assert.True(t, v.B.Valid)
	assert.False(t, v.B.Value)
	assert.False(t, v.C.Valid)
}

func TestNullableString(t *testing.T) {
	var v struct {
		Absent  NullableString `json:"absent"`
		Removed NullableString `json:"removed"`
		Set     NullableString `json:"set"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"removed":null,"set":"重要会议"}`), &v))

	assert.False(t, v.Absent.Present)
	assert.True(t, v.Removed.Present)
	assert.True(t, v.Removed.Null)
	assert.True(t, v.Set.Present)
	assert.False(t, v.Set.Null)
	assert.Equal(t, "重要会议", v.Set.Value)
}

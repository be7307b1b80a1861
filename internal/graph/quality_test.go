package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityString(t *testing.T) {
	tests := []struct {
		q    Quality
		want string
	}{
		{Valid, "VALID"},
		{Invalid, "INVALID"},
		{Alarm, "ALARM"},
		{Changing, "CHANGING"},
		{Warning, "WARNING"},
		{Quality(9), "Quality(9)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.q.String())
	}
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality("alarm")
	require.NoError(t, err)
	assert.Equal(t, Alarm, q)

	q, err = ParseQuality("ATTR_CHANGING")
	require.NoError(t, err)
	assert.Equal(t, Changing, q)

	_, err = ParseQuality("BROKEN")
	assert.ErrorIs(t, err, ErrInvalidTriplet)
}

func TestQualityJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Quality{"q": Warning})
	require.NoError(t, err)
	assert.JSONEq(t, `{"q":"WARNING"}`, string(data))

	var out map[string]Quality
	require.NoError(t, json.Unmarshal([]byte(`{"q":"invalid"}`), &out))
	assert.Equal(t, Invalid, out["q"])

	_, err = json.Marshal(Quality(7))
	assert.Error(t, err)
}

func TestQualitySeverityOrder(t *testing.T) {
	order := []Quality{Invalid, Alarm, Changing, Warning, Valid}
	for i := range len(order) - 1 {
		assert.True(t, order[i].WorseThan(order[i+1]), "%s should be worse than %s", order[i], order[i+1])
		assert.False(t, order[i+1].WorseThan(order[i]))
	}
}

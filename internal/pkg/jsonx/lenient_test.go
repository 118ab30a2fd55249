package jsonx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		strategy Strategy
		wantKey  string
	}{
		{name: "标准JSON", input: `{"logUpdate":"ok"}`, strategy: StrategyStrict, wantKey: "logUpdate"},
		{name: "尾随逗号", input: `{"logUpdate":"ok", "actions": [],}`, wantKey: "actions"},
		{name: "单引号", input: `{'logUpdate': 'ok'}`, wantKey: "logUpdate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, strategy, err := Normalize(tt.input)
			require.NoError(t, err)
			if tt.strategy != "" {
				assert.Equal(t, tt.strategy, strategy)
			} else {
				assert.NotEqual(t, StrategyStrict, strategy)
			}

			var obj map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(data, &obj))
			assert.Contains(t, obj, tt.wantKey)
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	_, _, err := Normalize("   ")
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestSmartParse(t *testing.T) {
	var outline struct {
		WorldName string   `json:"worldName"`
		Towns     []string `json:"towns"`
	}
	strategy, err := SmartParse(`{"worldName": "Eldoria", "towns": ["Brindle", "Ashford",],}`, &outline)
	require.NoError(t, err)
	assert.NotEqual(t, StrategyStrict, strategy)
	assert.Equal(t, "Eldoria", outline.WorldName)
	assert.Equal(t, []string{"Brindle", "Ashford"}, outline.Towns)
}

package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTypePrimitives(t *testing.T) {
	assert.True(t, MatchType(true, false))
	assert.True(t, MatchType(int64(7), int64(0)))
	assert.False(t, MatchType(int64(7), float64(0)))
	assert.False(t, MatchType("x", int64(0)))
}

func TestMatchTypeSequences(t *testing.T) {
	template := []any{float64(0), float64(0), float64(0)}

	assert.True(t, MatchType([]any{float64(1), float64(2), float64(3)}, template))
	assert.False(t, MatchType([]any{float64(1), float64(2)}, template), "length mismatch must fail")
	assert.False(t, MatchType([]any{float64(1), "oops", float64(3)}, template), "element type mismatch must fail")
}

func TestMatchTypeMaps(t *testing.T) {
	template := map[string]any{"enable": false, "retries": int64(0)}

	assert.True(t, MatchType(map[string]any{"enable": true, "retries": int64(5)}, template))
	assert.False(t, MatchType(map[string]any{"enable": true}, template), "missing key must fail")
	assert.False(t, MatchType(map[string]any{"enable": true, "retries": int64(5), "extra": true}, template), "extra key must fail")
	assert.False(t, MatchType(map[string]any{"enable": int64(1), "retries": int64(5)}, template), "wrong leaf type must fail")
}

func TestMatchTypeNested(t *testing.T) {
	template := map[string]any{
		"waveguide_bias": map[string]any{
			"setpoints": []any{float64(0), float64(0)},
		},
	}
	good := map[string]any{
		"waveguide_bias": map[string]any{
			"setpoints": []any{float64(1.1), float64(2.2)},
		},
	}
	bad := map[string]any{
		"waveguide_bias": map[string]any{
			"setpoints": []any{float64(1.1)},
		},
	}

	assert.True(t, MatchType(good, template))
	assert.False(t, MatchType(bad, template))
}

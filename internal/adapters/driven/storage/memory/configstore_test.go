package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Seeded(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"pipeline.timeout_ms": 5000,
		"cache.backend":       "memory",
	}, map[string]any{
		"cache.backend": "redis",
	})

	assert.Equal(t, 5000, store.GetInt("pipeline.timeout_ms"))
	assert.Equal(t, "redis", store.GetString("cache.backend"), "later seeds win")
	assert.Equal(t, 0, store.Saves())
}

func TestConfigStore_NormalisesNumbers(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("int", 42))
	require.NoError(t, store.Set("float32", float32(2.5)))

	val, ok := store.Get("int")
	require.True(t, ok)
	assert.IsType(t, int64(0), val)

	val, ok = store.Get("float32")
	require.True(t, ok)
	assert.IsType(t, float64(0), val)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"ratelimit.rxnorm_rps":  20,
		"ratelimit.openfda_rps": 2.5,
		"pipeline.max_retries":  2.9,
		"interactions.corroborate_known": true,
		"tags":                  []any{"a", 1, "b"},
		"names":                 []string{"x"},
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"int as float", store.GetFloat("ratelimit.rxnorm_rps"), 20.0},
		{"float", store.GetFloat("ratelimit.openfda_rps"), 2.5},
		{"float as int truncates", store.GetInt("pipeline.max_retries"), 2},
		{"bool", store.GetBool("interactions.corroborate_known"), true},
		{"mixed slice keeps strings", store.GetStringSlice("tags"), []string{"a", "b"}},
		{"string slice", store.GetStringSlice("names"), []string{"x"}},
		{"missing string", store.GetString("missing"), ""},
		{"missing int", store.GetInt("missing"), 0},
		{"missing float", store.GetFloat("missing"), 0.0},
		{"missing bool", store.GetBool("missing"), false},
		{"wrong type", store.GetString("ratelimit.rxnorm_rps"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_GetStringSliceIsCopy(t *testing.T) {
	store := NewConfigStore(map[string]any{"names": []string{"x"}})

	got := store.GetStringSlice("names")
	got[0] = "mutated"

	assert.Equal(t, []string{"x"}, store.GetStringSlice("names"))
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Load())

	assert.Equal(t, 2, store.Saves())
	assert.Equal(t, ":memory:", store.Path())
	assert.Equal(t, "v", store.GetString("k"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("key", n)
			_ = store.GetInt("key")
			_ = store.GetFloat("key")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Saves())
}

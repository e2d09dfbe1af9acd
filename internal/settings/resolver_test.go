package settings

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/chapterhook/internal/types"
)

func TestResolveDefaults(t *testing.T) {
	r := NewResolver(NewMemoryStore(), nil)

	res, err := r.Resolve(context.Background(), "www.example.com")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8787", res.BackendURL)
	assert.Equal(t, 1, res.NovelID)
	assert.Equal(t, 1, res.ChapterNo)
	assert.True(t, res.AutoIncrement)
	assert.Nil(t, res.Rule)
	assert.Equal(t, "example.com", res.KeyUsed)
}

func TestResolveRuleForBothHostForms(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rule := &types.Rule{Mode: types.ModeSelector, Selector: "#content", Prop: types.PropTextContent}
	require.NoError(t, NewEditor(store).SaveRule(ctx, "www.example.com", rule))

	r := NewResolver(store, nil)
	for _, host := range []string{"www.example.com", "example.com"} {
		t.Run(host, func(t *testing.T) {
			res, err := r.Resolve(ctx, host)
			require.NoError(t, err)
			require.NotNil(t, res.Rule)
			assert.Equal(t, *rule, *res.Rule)
			assert.Equal(t, "example.com", res.KeyUsed)
		})
	}
}

func TestResolveFallsBackToRawHost(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyCustomExtractors, map[string]any{
		"example.com":     nil,
		"www.example.com": map[string]string{"mode": "selector", "selector": "article"},
	}))

	res, err := NewResolver(store, nil).Resolve(ctx, "www.example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Rule)
	assert.Equal(t, "article", res.Rule.Selector)
}

func TestResolveIgnoresMalformedRule(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyCustomExtractors, map[string]any{
		"example.com": "not a rule",
	}))

	res, err := NewResolver(store, nil).Resolve(ctx, "example.com")
	require.NoError(t, err)
	assert.Nil(t, res.Rule)
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"www.example.com", "example.com"},
		{"example.com", "example.com"},
		{"WWW.Example.com", "WWW.Example.com"},
		{"www.www.example.com", "www.example.com"},
		{"novels.www.com", "novels.www.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeHost(tt.in), tt.in)
	}
}

func TestGetIntParsing(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"text", "5", 5},
		{"number", 7, 7},
		{"padded text", " 12 ", 12},
		{"empty text", "", 1},
		{"zero", "0", 1},
		{"garbage", "abc", 1},
		{"null", nil, 1},
		{"bool", true, 1},
		{"whole float", 4.0, 4},
		{"whole float text", "6.0", 6},
		{"fractional text", "2.5", 1},
		{"fractional number", 2.5, 1},
		{"negative fraction", -0.5, 1},
		{"overflow text", "1e30", 1},
		{"overflow number", json.RawMessage(`-1e300`), 1},
		{"infinity text", "Inf", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			require.NoError(t, store.Set(ctx, KeyChapterNo, tt.value))

			got, err := GetInt(ctx, store, KeyChapterNo, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAutoIncrementOnlyDisabledByFalse(t *testing.T) {
	ctx := context.Background()
	for _, v := range []any{"false", 0, nil, true} {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, KeyAutoIncrement, v))
		got, err := GetBool(ctx, store, KeyAutoIncrement, true)
		require.NoError(t, err)
		assert.True(t, got, "%v", v)
	}

	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyAutoIncrement, false))
	got, err := GetBool(ctx, store, KeyAutoIncrement, true)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	_, ok, err := store.Get(ctx, KeyChapterNo)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetChapterNo(ctx, store, 5))
	require.NoError(t, SetChapterNo(ctx, store, 6))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	raw, ok, err := reopened.Get(ctx, KeyChapterNo)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `"6"`, string(raw))
}

package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/chapterhook/internal/types"
)

func TestEditorSaveGlobals(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyAutoIncrement, false))

	e := NewEditor(store)
	require.NoError(t, e.SaveGlobals(ctx, Globals{BackendURL: " ", NovelID: "3", ChapterNo: "41"}))

	g, _, err := e.Load(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, Globals{BackendURL: DefaultBackendURL, NovelID: "3", ChapterNo: "41"}, g)

	auto, err := GetBool(ctx, store, KeyAutoIncrement, false)
	require.NoError(t, err)
	assert.True(t, auto)
}

func TestEditorSaveRule(t *testing.T) {
	ctx := context.Background()
	e := NewEditor(NewMemoryStore())

	rule := &types.Rule{Mode: types.ModeShadowSelector, ShadowSelector: ".chapter"}
	require.NoError(t, e.SaveRule(ctx, "www.novels.test", rule))
	require.NoError(t, e.SaveRule(ctx, "other.test", &types.Rule{Mode: types.ModeSelector, Selector: "p"}))

	_, got, err := e.Load(ctx, "novels.test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *rule, *got)

	require.NoError(t, e.SaveRule(ctx, "novels.test", nil))
	_, got, err = e.Load(ctx, "www.novels.test")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, other, err := e.Load(ctx, "other.test")
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestEditorRejectsInvalidRule(t *testing.T) {
	e := NewEditor(NewMemoryStore())
	err := e.SaveRule(context.Background(), "example.com", &types.Rule{Mode: "xyz", Selector: "p"})
	assert.ErrorContains(t, err, "unknown mode")
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule(`{"mode":"selector","selector":"#content","prop":"innerText"}`)
	require.NoError(t, err)
	assert.Equal(t, &types.Rule{Mode: types.ModeSelector, Selector: "#content", Prop: types.PropInnerText}, r)

	r, err = ParseRule("null")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = ParseRule("{mode:")
	assert.ErrorContains(t, err, "valid JSON")
}

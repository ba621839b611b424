//go:build unit

package block

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditor_Apply(t *testing.T) {
	editor := NewEditor(DefaultRegistry())
	spacer := Block{ID: "s1", Type: TypeSpacer, Content: json.RawMessage(`{"height":120}`)}

	t.Run("returns complete replacement", func(t *testing.T) {
		got, err := editor.Apply(spacer, map[string][]string{"backgroundColor": {"#ff0000"}})
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
		assert.Equal(t, TypeSpacer, got.Type)
		assert.JSONEq(t, `{"height":120,"backgroundColor":"#ff0000"}`, string(got.Content))
		assert.JSONEq(t, `{"height":120}`, string(spacer.Content))
	})

	t.Run("unparsable number keeps previous value", func(t *testing.T) {
		got, err := editor.Apply(spacer, map[string][]string{"height": {"abc"}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"height":120,"backgroundColor":"transparent"}`, string(got.Content))
	})

	t.Run("number is clamped to its range", func(t *testing.T) {
		got, err := editor.Apply(spacer, map[string][]string{"height": {"9999"}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"height":500,"backgroundColor":"transparent"}`, string(got.Content))

		got, err = editor.Apply(spacer, map[string][]string{"height": {" 5 "}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"height":10,"backgroundColor":"transparent"}`, string(got.Content))
	})

	t.Run("invalid select and color keep previous value", func(t *testing.T) {
		text := Block{ID: "t1", Type: TypeText, Content: json.RawMessage(`{"text":"Hi","fontSize":"xl","textColor":"#123456"}`)}
		got, err := editor.Apply(text, map[string][]string{
			"fontSize":  {"enormous"},
			"textColor": {"javascript:alert(1)"},
			"textAlign": {"center"},
		})
		require.NoError(t, err)
		c, err := DefaultRegistry().Decode(TypeText, got.Content)
		require.NoError(t, err)
		assert.Equal(t, TextContent{Text: "Hi", TextColor: "#123456", TextAlign: "center", FontSize: "xl"}, c)
	})

	t.Run("toggle uses the last submitted value", func(t *testing.T) {
		grid := Block{ID: "g1", Type: TypeProductGrid, Content: json.RawMessage(`{}`)}
		got, err := editor.Apply(grid, map[string][]string{
			"showPrices":       {"false"},
			"showDescriptions": {"false", "on"},
			"columns":          {"4"},
		})
		require.NoError(t, err)
		c, err := DefaultRegistry().Decode(TypeProductGrid, got.Content)
		require.NoError(t, err)
		gc := c.(ProductGridContent)
		assert.False(t, gc.ShowPrices)
		assert.True(t, gc.ShowDescriptions)
		assert.Equal(t, 4, gc.Columns)
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		got, err := editor.Apply(spacer, map[string][]string{"onclick": {"x"}})
		require.NoError(t, err)
		assert.NotContains(t, string(got.Content), "onclick")
	})

	t.Run("unknown block type", func(t *testing.T) {
		bogus := Block{ID: "b", Type: "bogus", Content: json.RawMessage(`{}`)}
		got, err := editor.Apply(bogus, map[string][]string{"x": {"y"}})
		assert.True(t, errors.Is(err, ErrUnknownBlockType))
		assert.Equal(t, bogus, got)
	})
}

func TestEditor_Form(t *testing.T) {
	editor := NewEditor(DefaultRegistry())

	hero := Block{ID: "h", Type: TypeHero, Content: json.RawMessage(`{"title":"Sale","buttonText":"Shop"}`)}
	fields, err := editor.Form(hero)
	require.NoError(t, err)
	require.Len(t, fields, 7)
	assert.Equal(t, "title", fields[0].Key)
	assert.Equal(t, "Sale", fields[0].Value)
	assert.Equal(t, "Shop", fields[2].Value)
	assert.Equal(t, FieldColor, fields[4].EditedAs)
	assert.Equal(t, "#3B82F6", fields[4].Value)

	grid := Block{ID: "g", Type: TypeProductGrid, Content: json.RawMessage(`{"showPrices":false}`)}
	fields, err = editor.Form(grid)
	require.NoError(t, err)
	assert.Equal(t, "3", fields[1].Value)
	assert.False(t, fields[2].Checked)
	assert.True(t, fields[3].Checked)

	_, err = editor.Form(Block{ID: "x", Type: TypeGallery})
	assert.True(t, errors.Is(err, ErrUnknownBlockType))
}

//go:build unit

package block

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		for _, raw := range []string{"", "null", "  ", "{}"} {
			doc, err := DecodeDocument([]byte(raw))
			require.NoError(t, err, "input %q", raw)
			assert.NotNil(t, doc.Blocks)
			assert.Empty(t, doc.Blocks)
		}
	})

	t.Run("keeps order and unknown members", func(t *testing.T) {
		raw := `{"blocks":[
			{"id":"a","type":"hero","content":{"title":"Hi"},"style":{"margin":4}},
			{"id":"b","type":"bogus","content":{"x":1}},
			{"id":"c","type":"spacer","children":[{"id":"c1","type":"text","content":{}}]}
		]}`
		doc, err := DecodeDocument([]byte(raw))
		require.NoError(t, err)
		require.Len(t, doc.Blocks, 3)
		assert.Equal(t, "a", doc.Blocks[0].ID)
		assert.Equal(t, Type("bogus"), doc.Blocks[1].Type)
		assert.JSONEq(t, `{"margin":4}`, string(doc.Blocks[0].Style))
		assert.JSONEq(t, `{}`, string(doc.Blocks[2].Content))
		require.Len(t, doc.Blocks[2].Children, 1)

		encoded, err := doc.Encode()
		require.NoError(t, err)
		again, err := DecodeDocument(encoded)
		require.NoError(t, err)
		assert.Equal(t, doc, again)
	})

	t.Run("invalid json", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"blocks":[`))
		assert.ErrorIs(t, err, ErrDamagedDocument)
		assert.NotNil(t, doc.Blocks)
	})

	t.Run("one bad block keeps its siblings", func(t *testing.T) {
		raw := `{"blocks":[{"id":"a","type":"text"},{"id":7,"type":"text"},null,{"id":"b","type":"hero"}]}`
		doc, err := DecodeDocument([]byte(raw))
		assert.ErrorIs(t, err, ErrDamagedDocument)
		require.Len(t, doc.Blocks, 2)
		assert.Equal(t, "a", doc.Blocks[0].ID)
		assert.Equal(t, "b", doc.Blocks[1].ID)
		assert.JSONEq(t, `{}`, string(doc.Blocks[1].Content))
	})

	t.Run("broken syntax is salvaged", func(t *testing.T) {
		raw := `{"blocks":[{"id":"a","type":"text","content":{"text":"keep me"}},]}`
		doc, err := DecodeDocument([]byte(raw))
		assert.ErrorIs(t, err, ErrDamagedDocument)
		require.Len(t, doc.Blocks, 1)
		assert.JSONEq(t, `{"text":"keep me"}`, string(doc.Blocks[0].Content))
	})

	t.Run("blocks is not a list", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"blocks":"oops"}`))
		assert.ErrorIs(t, err, ErrDamagedDocument)
		assert.Empty(t, doc.Blocks)
	})
}

func TestRegistry_DecodeEmptyContentUsesDefaults(t *testing.T) {
	reg := DefaultRegistry()

	for _, entry := range reg.Entries() {
		t.Run(string(entry.Type), func(t *testing.T) {
			c, err := reg.Decode(entry.Type, json.RawMessage(`{}`))
			require.NoError(t, err)
			assert.Equal(t, entry.Defaults, c)
			assert.Equal(t, entry.Type, c.BlockType())

			c, err = reg.Decode(entry.Type, nil)
			require.NoError(t, err)
			assert.Equal(t, entry.Defaults, c)
		})
	}

	c, err := reg.Decode(TypeSpacer, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 50, c.(SpacerContent).Height)
	assert.Equal(t, "transparent", c.(SpacerContent).BackgroundColor)
}

func TestRegistry_DecodeMalformedFields(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name string
		typ  Type
		raw  string
		want Content
	}{
		{
			name: "wrong json types fall back per field",
			typ:  TypeHero,
			raw:  `{"title":42,"subtitle":"Sub","buttonText":true,"textColor":"#fff"}`,
			want: HeroContent{Title: "Hero title", Subtitle: "Sub", BackgroundColor: "#3B82F6", TextColor: "#fff"},
		},
		{
			name: "unsafe color is rejected",
			typ:  TypeHero,
			raw:  `{"backgroundColor":"red;background:url(x)"}`,
			want: heroDefaults,
		},
		{
			name: "unknown select value",
			typ:  TypeText,
			raw:  `{"text":"Hello","fontSize":"huge","textAlign":"justify"}`,
			want: TextContent{Text: "Hello", TextColor: "#000000", TextAlign: "justify", FontSize: "base"},
		},
		{
			name: "spacer height out of range",
			typ:  TypeSpacer,
			raw:  `{"height":9000}`,
			want: spacerDefaults,
		},
		{
			name: "spacer height as numeric string",
			typ:  TypeSpacer,
			raw:  `{"height":"120","backgroundColor":"#eee"}`,
			want: SpacerContent{Height: 120, BackgroundColor: "#eee"},
		},
		{
			name: "spacer height NaN string",
			typ:  TypeSpacer,
			raw:  `{"height":"NaN"}`,
			want: spacerDefaults,
		},
		{
			name: "grid columns fractional",
			typ:  TypeProductGrid,
			raw:  `{"columns":2.5,"showPrices":false,"category":"mode"}`,
			want: ProductGridContent{Title: "Our products", Columns: 3, ShowPrices: false, ShowDescriptions: true, Category: "mode"},
		},
		{
			name: "content is not an object",
			typ:  TypeButton,
			raw:  `["text"]`,
			want: buttonDefaults,
		},
		{
			name: "content is not json",
			typ:  TypeImage,
			raw:  `{not json`,
			want: imageDefaults,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := reg.Decode(tc.typ, json.RawMessage(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.Defaults("bogus")
	assert.True(t, errors.Is(err, ErrUnknownBlockType))
	_, err = reg.Fields(TypeGallery)
	assert.True(t, errors.Is(err, ErrUnknownBlockType))
	_, err = reg.Decode(TypeHeader, json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownBlockType))
	assert.False(t, reg.Known(TypeFeatureList))
}

type galleryContent struct {
	Images []string `json:"images"`
}

func (galleryContent) BlockType() Type { return TypeGallery }

func TestRegistry_Register(t *testing.T) {
	reg := DefaultRegistry()

	entry := Entry{
		Type:     TypeGallery,
		Label:    "Gallery",
		Defaults: galleryContent{Images: []string{}},
		Decode: func(raw json.RawMessage) Content {
			var c galleryContent
			if err := json.Unmarshal(raw, &c); err != nil || c.Images == nil {
				return galleryContent{Images: []string{}}
			}
			return c
		},
	}
	require.NoError(t, reg.Register(entry))
	assert.True(t, reg.Known(TypeGallery))
	assert.Error(t, reg.Register(entry), "duplicate registration")

	raw, err := reg.Defaults(TypeGallery)
	require.NoError(t, err)
	assert.JSONEq(t, `{"images":[]}`, string(raw))

	entries := reg.Entries()
	assert.Equal(t, TypeGallery, entries[len(entries)-1].Type)

	assert.Error(t, reg.Register(Entry{Type: "broken"}))
}

func TestRegistry_FieldsAreCopies(t *testing.T) {
	reg := DefaultRegistry()

	fields, err := reg.Fields(TypeHero)
	require.NoError(t, err)
	require.NotEmpty(t, fields)
	fields[0].Key = "changed"

	again, err := reg.Fields(TypeHero)
	require.NoError(t, err)
	assert.Equal(t, "title", again[0].Key)
}

func TestRegistry_Normalize(t *testing.T) {
	reg := DefaultRegistry()

	b := Block{ID: "x", Type: TypeSpacer, Content: json.RawMessage(`{"height":80}`), Style: json.RawMessage(`{"a":1}`)}
	got, err := reg.Normalize(b)
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID)
	assert.JSONEq(t, `{"height":80,"backgroundColor":"transparent"}`, string(got.Content))
	assert.JSONEq(t, `{"a":1}`, string(got.Style))
	assert.JSONEq(t, `{"height":80}`, string(b.Content), "input must not be mutated")

	_, err = reg.Normalize(Block{ID: "y", Type: "bogus"})
	assert.True(t, errors.Is(err, ErrUnknownBlockType))
}

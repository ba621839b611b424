package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Type is the tag selecting which field schema and rendering a block uses.
type Type string

// Block types registered by default.
const (
	TypeHero        Type = "hero"
	TypeText        Type = "text"
	TypeImage       Type = "image"
	TypeButton      Type = "button"
	TypeProductGrid Type = "product-grid"
	TypeSpacer      Type = "spacer"
)

// Block types known to the admin palette but not registered by default.
const (
	TypeHeader      Type = "header"
	TypeGallery     Type = "gallery"
	TypeFeatureList Type = "feature-list"
)

// ErrUnknownBlockType is returned when a type has no registry entry.
var ErrUnknownBlockType = errors.New("unknown block type")

// ErrDamagedDocument is returned when stored content can only be read in part.
var ErrDamagedDocument = errors.New("damaged page content")

// Block is one typed, positioned content unit within a page.
// Content is kept as raw JSON so blocks of unregistered types survive a
// load/save cycle untouched. Style and Children are carried but not rendered.
type Block struct {
	ID       string          `json:"id"`
	Type     Type            `json:"type"`
	Content  json.RawMessage `json:"content"`
	Style    json.RawMessage `json:"style,omitempty"`
	Children []Block         `json:"children,omitempty"`
}

// Document is the persisted shape of a page's content: { "blocks": [...] }.
type Document struct {
	Blocks []Block `json:"blocks"`
}

// DecodeDocument parses stored page content. Empty input, JSON null and a
// missing "blocks" key all yield an empty document.
//
// Blocks are read one by one. When some of them cannot be read, the
// readable ones are still returned in order together with an error
// wrapping ErrDamagedDocument.
func DecodeDocument(raw []byte) (Document, error) {
	raw = bytes.TrimSpace(raw)
	doc := Document{Blocks: []Block{}}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return doc, nil
	}

	var envelope struct {
		Blocks []json.RawMessage `json:"blocks"`
	}
	var elems []json.RawMessage
	lost := 0
	if err := json.Unmarshal(raw, &envelope); err == nil {
		elems = envelope.Blocks
	} else {
		list := gjson.GetBytes(raw, "blocks")
		if !list.IsArray() {
			return doc, fmt.Errorf("%w: %v", ErrDamagedDocument, err)
		}
		list.ForEach(func(_, v gjson.Result) bool {
			elems = append(elems, json.RawMessage(v.Raw))
			return true
		})
		lost++
	}

	for _, elem := range elems {
		var b Block
		if err := json.Unmarshal(elem, &b); err != nil || bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
			lost++
			continue
		}
		if len(b.Content) == 0 || bytes.Equal(b.Content, []byte("null")) {
			b.Content = json.RawMessage("{}")
		}
		doc.Blocks = append(doc.Blocks, b)
	}
	if lost > 0 {
		return doc, fmt.Errorf("%w: %d unreadable part(s)", ErrDamagedDocument, lost)
	}
	return doc, nil
}

// Encode serializes the document for storage.
func (d Document) Encode() ([]byte, error) {
	if d.Blocks == nil {
		d.Blocks = []Block{}
	}
	return json.Marshal(d)
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	out := b
	out.Content = append(json.RawMessage(nil), b.Content...)
	if b.Style != nil {
		out.Style = append(json.RawMessage(nil), b.Style...)
	}
	if b.Children != nil {
		out.Children = CloneAll(b.Children)
	}
	return out
}

// CloneAll deep-copies a block list.
func CloneAll(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

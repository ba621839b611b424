package block

import (
	"encoding/json"
	"fmt"
	"sync"
)

// FieldKind tells the editor how a content field is edited.
type FieldKind string

const (
	FieldText      FieldKind = "text"
	FieldMultiline FieldKind = "multiline"
	FieldNumber    FieldKind = "number"
	FieldColor     FieldKind = "color"
	FieldSelect    FieldKind = "select"
	FieldToggle    FieldKind = "toggle"
)

// FieldDescriptor describes one editable content field.
type FieldDescriptor struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	EditedAs FieldKind `json:"editedAs"`
	Options  []string  `json:"options,omitempty"`
	Min      *int      `json:"min,omitempty"`
	Max      *int      `json:"max,omitempty"`
}

// Entry is the registry record for one block type.
type Entry struct {
	Type        Type
	Label       string
	Description string
	Fields      []FieldDescriptor
	// Defaults is the content a new block starts with, and the source of
	// every per-field fallback when stored content is incomplete.
	Defaults Content
	// Decode turns raw stored content into typed content, never failing.
	Decode func(raw json.RawMessage) Content
}

// Registry maps block types to their defaults and editable fields.
type Registry struct {
	mu      sync.RWMutex
	entries map[Type]Entry
	order   []Type
}

// NewRegistry creates a registry holding the given entries.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[Type]Entry)}
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a block type. Registering the same type twice is an error.
func (r *Registry) Register(e Entry) error {
	if e.Type == "" {
		return fmt.Errorf("register block: empty type")
	}
	if e.Defaults == nil || e.Decode == nil {
		return fmt.Errorf("register block %q: defaults and decode are required", e.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.Type]; ok {
		return fmt.Errorf("register block %q: already registered", e.Type)
	}
	r.entries[e.Type] = e
	r.order = append(r.order, e.Type)
	return nil
}

// Lookup returns the entry for t or ErrUnknownBlockType.
func (r *Registry) Lookup(t Type) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownBlockType, t)
	}
	return e, nil
}

// Known reports whether t is registered.
func (r *Registry) Known(t Type) bool {
	_, err := r.Lookup(t)
	return err == nil
}

// Entries returns all entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.entries[t])
	}
	return out
}

// Defaults returns the default content for t in wire form.
func (r *Registry) Defaults(t Type) (json.RawMessage, error) {
	e, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	return EncodeContent(e.Defaults)
}

// Fields returns the editable field descriptors for t.
func (r *Registry) Fields(t Type) ([]FieldDescriptor, error) {
	e, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	out := make([]FieldDescriptor, len(e.Fields))
	copy(out, e.Fields)
	return out, nil
}

// Decode resolves raw content of type t to typed content, applying
// defaults for missing or malformed fields.
func (r *Registry) Decode(t Type, raw json.RawMessage) (Content, error) {
	e, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	return e.Decode(raw), nil
}

// Normalize returns b with its content decoded and re-encoded, so every
// field of the type is present with a valid value.
func (r *Registry) Normalize(b Block) (Block, error) {
	c, err := r.Decode(b.Type, b.Content)
	if err != nil {
		return b, err
	}
	raw, err := EncodeContent(c)
	if err != nil {
		return b, fmt.Errorf("encode %s content: %w", b.Type, err)
	}
	out := b.Clone()
	out.Content = raw
	return out, nil
}

func intPtr(n int) *int { return &n }

var (
	heroDefaults = HeroContent{
		Title:           "Hero title",
		Subtitle:        "Hero subtitle",
		BackgroundColor: "#3B82F6",
		TextColor:       "#FFFFFF",
	}
	textDefaults = TextContent{
		Text:      "Your text here",
		TextColor: "#000000",
		TextAlign: "left",
		FontSize:  "base",
	}
	imageDefaults = ImageContent{
		Alt:       "Image",
		Width:     "full",
		Alignment: "center",
	}
	buttonDefaults = ButtonContent{
		Text:            "Button",
		Size:            "default",
		Style:           "primary",
		BackgroundColor: "#3B82F6",
		TextColor:       "#FFFFFF",
		Alignment:       "center",
	}
	productGridDefaults = ProductGridContent{
		Title:            "Our products",
		Columns:          3,
		ShowPrices:       true,
		ShowDescriptions: true,
	}
	spacerDefaults = SpacerContent{
		Height:          50,
		BackgroundColor: "transparent",
	}
)

// BuiltinEntries returns the registry entries of the six built-in block types.
func BuiltinEntries() []Entry {
	return []Entry{
		{
			Type:        TypeHero,
			Label:       "Hero",
			Description: "Large title with background image",
			Defaults:    heroDefaults,
			Decode:      func(raw json.RawMessage) Content { return decodeHero(parseFields(raw), heroDefaults) },
			Fields: []FieldDescriptor{
				{Key: "title", Label: "Title", EditedAs: FieldText},
				{Key: "subtitle", Label: "Subtitle", EditedAs: FieldText},
				{Key: "buttonText", Label: "Button text", EditedAs: FieldText},
				{Key: "buttonLink", Label: "Button link", EditedAs: FieldText},
				{Key: "backgroundColor", Label: "Background color", EditedAs: FieldColor},
				{Key: "textColor", Label: "Text color", EditedAs: FieldColor},
				{Key: "backgroundImage", Label: "Background image URL", EditedAs: FieldText},
			},
		},
		{
			Type:        TypeText,
			Label:       "Text",
			Description: "Formatted text block",
			Defaults:    textDefaults,
			Decode:      func(raw json.RawMessage) Content { return decodeText(parseFields(raw), textDefaults) },
			Fields: []FieldDescriptor{
				{Key: "text", Label: "Text", EditedAs: FieldMultiline},
				{Key: "textColor", Label: "Text color", EditedAs: FieldColor},
				{Key: "textAlign", Label: "Alignment", EditedAs: FieldSelect, Options: TextAligns},
				{Key: "fontSize", Label: "Font size", EditedAs: FieldSelect, Options: FontSizes},
				{Key: "markdown", Label: "Markdown", EditedAs: FieldToggle},
			},
		},
		{
			Type:        TypeImage,
			Label:       "Image",
			Description: "Single image with alignment",
			Defaults:    imageDefaults,
			Decode:      func(raw json.RawMessage) Content { return decodeImage(parseFields(raw), imageDefaults) },
			Fields: []FieldDescriptor{
				{Key: "imageUrl", Label: "Image URL", EditedAs: FieldText},
				{Key: "alt", Label: "Alt text", EditedAs: FieldText},
				{Key: "width", Label: "Width", EditedAs: FieldSelect, Options: ImageWidths},
				{Key: "alignment", Label: "Alignment", EditedAs: FieldSelect, Options: Alignments},
			},
		},
		{
			Type:        TypeButton,
			Label:       "Button",
			Description: "Call-to-action button",
			Defaults:    buttonDefaults,
			Decode:      func(raw json.RawMessage) Content { return decodeButton(parseFields(raw), buttonDefaults) },
			Fields: []FieldDescriptor{
				{Key: "text", Label: "Button text", EditedAs: FieldText},
				{Key: "link", Label: "Link", EditedAs: FieldText},
				{Key: "size", Label: "Size", EditedAs: FieldSelect, Options: ButtonSizes},
				{Key: "style", Label: "Style", EditedAs: FieldSelect, Options: ButtonStyles},
				{Key: "backgroundColor", Label: "Button color", EditedAs: FieldColor},
				{Key: "textColor", Label: "Text color", EditedAs: FieldColor},
				{Key: "alignment", Label: "Alignment", EditedAs: FieldSelect, Options: Alignments},
			},
		},
		{
			Type:        TypeProductGrid,
			Label:       "Product grid",
			Description: "Grid of catalog products",
			Defaults:    productGridDefaults,
			Decode:      func(raw json.RawMessage) Content { return decodeProductGrid(parseFields(raw), productGridDefaults) },
			Fields: []FieldDescriptor{
				{Key: "title", Label: "Title", EditedAs: FieldText},
				{Key: "columns", Label: "Columns", EditedAs: FieldNumber, Min: intPtr(GridColumnMin), Max: intPtr(GridColumnMax)},
				{Key: "showPrices", Label: "Show prices", EditedAs: FieldToggle},
				{Key: "showDescriptions", Label: "Show descriptions", EditedAs: FieldToggle},
				{Key: "category", Label: "Category slug (empty = all)", EditedAs: FieldText},
			},
		},
		{
			Type:        TypeSpacer,
			Label:       "Spacer",
			Description: "Empty space between blocks",
			Defaults:    spacerDefaults,
			Decode:      func(raw json.RawMessage) Content { return decodeSpacer(parseFields(raw), spacerDefaults) },
			Fields: []FieldDescriptor{
				{Key: "height", Label: "Height (px)", EditedAs: FieldNumber, Min: intPtr(SpacerMin), Max: intPtr(SpacerMax)},
				{Key: "backgroundColor", Label: "Background color", EditedAs: FieldColor},
			},
		},
	}
}

// DefaultRegistry returns a registry with the built-in block types.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinEntries()...)
	if err != nil {
		panic(err)
	}
	return r
}

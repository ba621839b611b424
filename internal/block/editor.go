package block

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Editor applies field edits to a single block, driven entirely by the
// registry's field descriptors.
type Editor struct {
	registry *Registry
}

// NewEditor creates an Editor backed by the given registry.
func NewEditor(r *Registry) *Editor {
	return &Editor{registry: r}
}

// FormField pairs a field descriptor with the block's current value.
type FormField struct {
	FieldDescriptor
	Value   string
	Checked bool
}

// Form returns the editable fields of b with their current values.
// Blocks of unknown type return ErrUnknownBlockType so callers can flag them.
func (e *Editor) Form(b Block) ([]FormField, error) {
	entry, err := e.registry.Lookup(b.Type)
	if err != nil {
		return nil, err
	}
	values, err := contentMap(entry.Decode(b.Content))
	if err != nil {
		return nil, err
	}
	fields := make([]FormField, 0, len(entry.Fields))
	for _, d := range entry.Fields {
		ff := FormField{FieldDescriptor: d}
		switch v := values[d.Key].(type) {
		case string:
			ff.Value = v
		case bool:
			ff.Checked = v
			ff.Value = strconv.FormatBool(v)
		case float64:
			ff.Value = strconv.FormatFloat(v, 'f', -1, 64)
		}
		fields = append(fields, ff)
	}
	return fields, nil
}

// Apply returns a complete replacement for b: same id, same type, and
// content with the submitted edits applied. Keys absent from edits keep
// their current value. When a key has several values the last one wins,
// so a hidden "false" input followed by a checkbox works for toggles.
// Values that do not parse or are not among a field's options leave the
// previous value in place.
func (e *Editor) Apply(b Block, edits map[string][]string) (Block, error) {
	entry, err := e.registry.Lookup(b.Type)
	if err != nil {
		return b, err
	}
	current, err := contentMap(entry.Decode(b.Content))
	if err != nil {
		return b, err
	}
	for _, d := range entry.Fields {
		vals, ok := edits[d.Key]
		if !ok || len(vals) == 0 {
			continue
		}
		if v, ok := editValue(d, vals[len(vals)-1]); ok {
			current[d.Key] = v
		}
	}
	raw, err := json.Marshal(current)
	if err != nil {
		return b, fmt.Errorf("encode edited %s content: %w", b.Type, err)
	}
	normalized, err := EncodeContent(entry.Decode(raw))
	if err != nil {
		return b, fmt.Errorf("encode edited %s content: %w", b.Type, err)
	}
	out := b.Clone()
	out.Content = normalized
	return out, nil
}

func editValue(d FieldDescriptor, raw string) (any, bool) {
	switch d.EditedAs {
	case FieldNumber:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, false
		}
		if d.Min != nil && n < *d.Min {
			n = *d.Min
		}
		if d.Max != nil && n > *d.Max {
			n = *d.Max
		}
		return n, true
	case FieldToggle:
		if raw == "on" {
			return true, true
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, false
		}
		return b, true
	case FieldSelect:
		for _, o := range d.Options {
			if raw == o {
				return raw, true
			}
		}
		return nil, false
	case FieldColor:
		s := strings.TrimSpace(raw)
		if !colorPattern.MatchString(s) {
			return nil, false
		}
		return s, true
	default:
		return raw, true
	}
}

func contentMap(c Content) (map[string]any, error) {
	raw, err := EncodeContent(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s content: %w", c.BlockType(), err)
	}
	m := make(map[string]any)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode %s content: %w", c.BlockType(), err)
	}
	return m, nil
}

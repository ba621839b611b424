package block

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Content is the typed payload of one block. Each registered type has
// exactly one implementation.
type Content interface {
	BlockType() Type
}

// HeroContent is a large title section with an optional call to action.
type HeroContent struct {
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	ButtonText      string `json:"buttonText"`
	ButtonLink      string `json:"buttonLink"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	BackgroundImage string `json:"backgroundImage"`
}

// HasCallToAction reports whether both button text and link are set.
func (c HeroContent) HasCallToAction() bool {
	return c.ButtonText != "" && c.ButtonLink != ""
}

// TextContent is a paragraph of text.
type TextContent struct {
	Text      string `json:"text"`
	TextColor string `json:"textColor"`
	TextAlign string `json:"textAlign"`
	FontSize  string `json:"fontSize"`
	Markdown  bool   `json:"markdown"`
}

// ImageContent is a single aligned image.
type ImageContent struct {
	ImageURL  string `json:"imageUrl"`
	Alt       string `json:"alt"`
	Width     string `json:"width"`
	Alignment string `json:"alignment"`
}

// ButtonContent is a standalone call-to-action button.
type ButtonContent struct {
	Text            string `json:"text"`
	Link            string `json:"link"`
	Size            string `json:"size"`
	Style           string `json:"style"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	Alignment       string `json:"alignment"`
}

// ProductGridContent is a grid of catalog products. An empty Category
// means all categories.
type ProductGridContent struct {
	Title            string `json:"title"`
	Columns          int    `json:"columns"`
	ShowPrices       bool   `json:"showPrices"`
	ShowDescriptions bool   `json:"showDescriptions"`
	Category         string `json:"category"`
}

// SpacerContent is vertical whitespace between blocks.
type SpacerContent struct {
	Height          int    `json:"height"`
	BackgroundColor string `json:"backgroundColor"`
}

func (HeroContent) BlockType() Type        { return TypeHero }
func (TextContent) BlockType() Type        { return TypeText }
func (ImageContent) BlockType() Type       { return TypeImage }
func (ButtonContent) BlockType() Type      { return TypeButton }
func (ProductGridContent) BlockType() Type { return TypeProductGrid }
func (SpacerContent) BlockType() Type      { return TypeSpacer }

// Allowed values for select fields.
var (
	TextAligns    = []string{"left", "center", "right", "justify"}
	FontSizes     = []string{"sm", "base", "lg", "xl", "2xl"}
	ImageWidths   = []string{"1/3", "1/2", "2/3", "full"}
	Alignments    = []string{"left", "center", "right"}
	ButtonSizes   = []string{"sm", "default", "lg"}
	ButtonStyles  = []string{"primary", "secondary", "outline", "ghost"}
	SpacerMin     = 10
	SpacerMax     = 500
	GridColumnMin = 1
	GridColumnMax = 6
)

// FontSizePixels maps a text block font size to its pixel value.
var FontSizePixels = map[string]int{
	"sm":   14,
	"base": 16,
	"lg":   18,
	"xl":   20,
	"2xl":  24,
}

// EncodeContent serializes typed content back to its wire form.
func EncodeContent(c Content) (json.RawMessage, error) {
	return json.Marshal(c)
}

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|rgba?\([0-9.,%\s]+\))$`)

// field is a tolerant accessor over a block's raw content. Every getter
// falls back to the supplied default when the value is missing, of the
// wrong JSON type or out of range.
type field struct {
	root gjson.Result
}

func parseFields(raw json.RawMessage) field {
	if !gjson.ValidBytes(raw) {
		return field{}
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return field{}
	}
	return field{root: res}
}

func (f field) get(key string) gjson.Result {
	if !f.root.Exists() {
		return gjson.Result{}
	}
	// Keys are looked up literally; escape gjson path syntax.
	return f.root.Get(gjsonEscaper.Replace(key))
}

var gjsonEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func (f field) str(key, def string) string {
	v := f.get(key)
	if v.Type != gjson.String || v.Str == "" {
		return def
	}
	return v.Str
}

func (f field) color(key, def string) string {
	s := strings.TrimSpace(f.str(key, def))
	if !colorPattern.MatchString(s) {
		return def
	}
	return s
}

func (f field) choice(key string, allowed []string, def string) string {
	s := f.str(key, def)
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return def
}

func (f field) intRange(key string, min, max, def int) int {
	v := f.get(key)
	var n int
	switch v.Type {
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return def
		}
		n = int(v.Num)
	case gjson.String:
		parsed, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n < min || n > max {
		return def
	}
	return n
}

func (f field) boolean(key string, def bool) bool {
	v := f.get(key)
	switch v.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		if b, err := strconv.ParseBool(v.Str); err == nil {
			return b
		}
	}
	return def
}

func decodeHero(f field, d HeroContent) Content {
	return HeroContent{
		Title:           f.str("title", d.Title),
		Subtitle:        f.str("subtitle", d.Subtitle),
		ButtonText:      f.str("buttonText", d.ButtonText),
		ButtonLink:      f.str("buttonLink", d.ButtonLink),
		BackgroundColor: f.color("backgroundColor", d.BackgroundColor),
		TextColor:       f.color("textColor", d.TextColor),
		BackgroundImage: f.str("backgroundImage", d.BackgroundImage),
	}
}

func decodeText(f field, d TextContent) Content {
	return TextContent{
		Text:      f.str("text", d.Text),
		TextColor: f.color("textColor", d.TextColor),
		TextAlign: f.choice("textAlign", TextAligns, d.TextAlign),
		FontSize:  f.choice("fontSize", FontSizes, d.FontSize),
		Markdown:  f.boolean("markdown", d.Markdown),
	}
}

func decodeImage(f field, d ImageContent) Content {
	return ImageContent{
		ImageURL:  f.str("imageUrl", d.ImageURL),
		Alt:       f.str("alt", d.Alt),
		Width:     f.choice("width", ImageWidths, d.Width),
		Alignment: f.choice("alignment", Alignments, d.Alignment),
	}
}

func decodeButton(f field, d ButtonContent) Content {
	return ButtonContent{
		Text:            f.str("text", d.Text),
		Link:            f.str("link", d.Link),
		Size:            f.choice("size", ButtonSizes, d.Size),
		Style:           f.choice("style", ButtonStyles, d.Style),
		BackgroundColor: f.color("backgroundColor", d.BackgroundColor),
		TextColor:       f.color("textColor", d.TextColor),
		Alignment:       f.choice("alignment", Alignments, d.Alignment),
	}
}

func decodeProductGrid(f field, d ProductGridContent) Content {
	return ProductGridContent{
		Title:            f.str("title", d.Title),
		Columns:          f.intRange("columns", GridColumnMin, GridColumnMax, d.Columns),
		ShowPrices:       f.boolean("showPrices", d.ShowPrices),
		ShowDescriptions: f.boolean("showDescriptions", d.ShowDescriptions),
		Category:         f.str("category", d.Category),
	}
}

func decodeSpacer(f field, d SpacerContent) Content {
	return SpacerContent{
		Height:          f.intRange("height", SpacerMin, SpacerMax, d.Height),
		BackgroundColor: f.color("backgroundColor", d.BackgroundColor),
	}
}

package render

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"go-storefront/internal/block"
)

type heroView struct {
	ID         string
	Title      string
	Subtitle   string
	ButtonText string
	ButtonLink string
	ShowButton bool
	Style      template.CSS
	ButtonCSS  template.CSS
}

type textView struct {
	ID    string
	Plain string
	HTML  template.HTML
	Style template.CSS
}

type imageView struct {
	ID       string
	URL      string
	Alt      string
	Width    string
	Justify  template.CSS
	HasImage bool
}

type buttonView struct {
	ID      string
	Text    string
	Link    string
	Size    string
	Variant string
	Style   template.CSS
	Justify template.CSS
}

type productView struct {
	Name        string
	Slug        string
	Description string
	Price       string
	ImageURL    string
}

type productGridView struct {
	ID               string
	Title            string
	Columns          int
	ShowPrices       bool
	ShowDescriptions bool
	Products         []productView
	Unavailable      bool
}

type spacerView struct {
	ID     string
	Height int
	Style  template.CSS
}

var justify = map[string]string{
	"left":   "flex-start",
	"center": "center",
	"right":  "flex-end",
}

var imageWidths = map[string]string{
	"1/3":  "33.333%",
	"1/2":  "50%",
	"2/3":  "66.667%",
	"full": "100%",
}

var buttonVariants = map[string]string{
	"primary":   "default",
	"secondary": "secondary",
	"outline":   "outline",
	"ghost":     "ghost",
}

// Colors reaching these helpers have already been checked against the
// content color pattern, so they are safe to place in a style attribute.
func css(decls ...string) template.CSS {
	return template.CSS(strings.Join(decls, "; "))
}

func heroModel(id string, c block.HeroContent) heroView {
	decls := []string{
		"background-color: " + c.BackgroundColor,
		"color: " + c.TextColor,
	}
	if u := safeURL(c.BackgroundImage); u != "" {
		decls = append(decls,
			`background-image: url("`+u+`")`,
			"background-size: cover",
			"background-position: center",
		)
	}
	v := heroView{
		ID:         id,
		Title:      c.Title,
		Subtitle:   c.Subtitle,
		ShowButton: c.HasCallToAction(),
		Style:      css(decls...),
		ButtonCSS:  css("background-color: #FFFFFF", "color: "+c.BackgroundColor),
	}
	if v.ShowButton {
		v.ButtonText = c.ButtonText
		v.ButtonLink = c.ButtonLink
	}
	return v
}

func (r *Renderer) textModel(id string, c block.TextContent) textView {
	v := textView{
		ID: id,
		Style: css(
			"color: "+c.TextColor,
			"text-align: "+c.TextAlign,
			fmt.Sprintf("font-size: %dpx", block.FontSizePixels[c.FontSize]),
		),
	}
	if c.Markdown {
		v.HTML = r.renderMarkdown(c.Text)
	} else {
		v.Plain = c.Text
	}
	return v
}

func imageModel(id string, c block.ImageContent) imageView {
	u := safeURL(c.ImageURL)
	return imageView{
		ID:       id,
		URL:      u,
		Alt:      c.Alt,
		Width:    imageWidths[c.Width],
		Justify:  css("justify-content: " + justify[c.Alignment]),
		HasImage: u != "",
	}
}

func buttonModel(id string, c block.ButtonContent) buttonView {
	return buttonView{
		ID:      id,
		Text:    c.Text,
		Link:    c.Link,
		Size:    c.Size,
		Variant: buttonVariants[c.Style],
		Style:   css("background-color: "+c.BackgroundColor, "color: "+c.TextColor),
		Justify: css("justify-content: " + justify[c.Alignment]),
	}
}

func spacerModel(id string, c block.SpacerContent) spacerView {
	return spacerView{
		ID:     id,
		Height: c.Height,
		Style:  css(fmt.Sprintf("height: %dpx", c.Height), "background-color: "+c.BackgroundColor),
	}
}

// FormatPrice renders an amount in cents as euros, e.g. 1999 -> "€19.99".
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s€%d.%02d", sign, cents/100, cents%100)
}

// safeURL returns raw if it is an absolute http(s) URL or a site-relative
// path that can be embedded in a CSS url() and an src attribute, else "".
func safeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "\"'()\\<> \t\r\n") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		if u.Host == "" {
			return ""
		}
	case u.Scheme == "" && u.Host == "" && strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//"):
	default:
		return ""
	}
	return raw
}

// Package render turns stored blocks into HTML for the public storefront
// and for the builder preview.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"

	"go-storefront/internal/block"
	"go-storefront/internal/logger"
	"go-storefront/internal/metrics"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Product is one catalog item shown by a product grid.
type Product struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	ImageURL    string
}

// ProductQuery selects products for a grid. An empty Category means all.
type ProductQuery struct {
	Category string
	Limit    int
}

// Catalog supplies product data to product-grid blocks.
type Catalog interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
}

// Renderer renders blocks with the templates under templates/blocks.
type Renderer struct {
	registry  *block.Registry
	templates *template.Template
	catalog   Catalog
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
	log       logger.Logger
}

// New parses the block templates from templateFS. catalog may be nil, in
// which case product grids render their empty state.
func New(reg *block.Registry, templateFS fs.FS, catalog Catalog, log logger.Logger) (*Renderer, error) {
	ts, err := template.New("blocks").ParseFS(templateFS, "templates/blocks/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse block templates: %w", err)
	}
	for _, e := range reg.Entries() {
		if ts.Lookup(string(e.Type)) == nil {
			return nil, fmt.Errorf("no template for block type %q", e.Type)
		}
	}
	return &Renderer{
		registry:  reg,
		templates: ts,
		catalog:   catalog,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sanitizer: bluemonday.UGCPolicy(),
		log:       log,
	}, nil
}

// RenderBlock renders one block. Unknown types render as empty output and
// return block.ErrUnknownBlockType.
func (r *Renderer) RenderBlock(ctx context.Context, b block.Block) (template.HTML, error) {
	c, err := r.registry.Decode(b.Type, b.Content)
	if err != nil {
		return "", err
	}
	model, err := r.model(ctx, b.ID, c)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, string(b.Type), model); err != nil {
		return "", fmt.Errorf("render %s block %s: %w", b.Type, b.ID, err)
	}
	return template.HTML(buf.String()), nil
}

// RenderPage renders blocks in order. A block that cannot be rendered is
// skipped and logged; its siblings still render.
func (r *Renderer) RenderPage(ctx context.Context, blocks []block.Block) template.HTML {
	var buf bytes.Buffer
	for _, b := range blocks {
		label := r.metricLabel(b.Type)
		html, err := r.RenderBlock(ctx, b)
		if err != nil {
			outcome := "error"
			if errors.Is(err, block.ErrUnknownBlockType) {
				outcome = "skipped"
			}
			metrics.RecordBlockRender(label, outcome)
			r.log.With(map[string]interface{}{"block_id": b.ID, "block_type": string(b.Type)}).
				Warn("skipping block: " + err.Error())
			continue
		}
		metrics.RecordBlockRender(label, "ok")
		buf.WriteString(string(html))
	}
	return template.HTML(buf.String())
}

// metricLabel keeps the block type label set to the registered types.
func (r *Renderer) metricLabel(t block.Type) string {
	if _, err := r.registry.Lookup(t); err != nil {
		return "unknown"
	}
	return string(t)
}

func (r *Renderer) model(ctx context.Context, id string, c block.Content) (any, error) {
	switch c := c.(type) {
	case block.HeroContent:
		return heroModel(id, c), nil
	case block.TextContent:
		return r.textModel(id, c), nil
	case block.ImageContent:
		return imageModel(id, c), nil
	case block.ButtonContent:
		return buttonModel(id, c), nil
	case block.ProductGridContent:
		return r.productGridModel(ctx, id, c), nil
	case block.SpacerContent:
		return spacerModel(id, c), nil
	default:
		return nil, fmt.Errorf("%w: no view for %q", block.ErrUnknownBlockType, c.BlockType())
	}
}

func (r *Renderer) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(r.sanitizer.SanitizeBytes(buf.Bytes()))
}

func (r *Renderer) productGridModel(ctx context.Context, id string, c block.ProductGridContent) productGridView {
	v := productGridView{
		ID:               id,
		Title:            c.Title,
		Columns:          c.Columns,
		ShowPrices:       c.ShowPrices,
		ShowDescriptions: c.ShowDescriptions,
	}
	if r.catalog == nil {
		return v
	}
	products, err := r.catalog.ListProducts(ctx, ProductQuery{Category: c.Category, Limit: c.Columns * 2})
	if err != nil {
		r.log.Error(err, "product grid: catalog lookup failed")
		v.Unavailable = true
		return v
	}
	if limit := c.Columns * 2; len(products) > limit {
		products = products[:limit]
	}
	for _, p := range products {
		v.Products = append(v.Products, productView{
			Name:        p.Name,
			Slug:        p.Slug,
			Description: p.Description,
			Price:       FormatPrice(p.PriceCents),
			ImageURL:    safeURL(p.ImageURL),
		})
	}
	return v
}

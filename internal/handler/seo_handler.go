package handler

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"go-storefront/internal/service"
)

// SeoHandler holds dependencies for SEO-related handlers.
type SeoHandler struct {
	pageService service.PageServicer
	baseURL     string
	homeSlug    string
}

// NewSeoHandler creates a new SeoHandler. baseURL is the public origin,
// e.g. https://shop.example.com.
func NewSeoHandler(ps service.PageServicer, baseURL, homeSlug string) *SeoHandler {
	return &SeoHandler{pageService: ps, baseURL: strings.TrimRight(baseURL, "/"), homeSlug: homeSlug}
}

// robotsHandler serves robots.txt; the admin area is never indexed.
func (h *SeoHandler) robotsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "User-agent: *")
	fmt.Fprintln(w, "Allow: /")
	fmt.Fprintln(w, "Disallow: /admin/")
	fmt.Fprintln(w, "Disallow: /api/")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Sitemap: %s/sitemap.xml\n", h.baseURL)
}

const sitemapDateFormat = "2006-01-02"

type sitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// sitemapHandler lists every published page.
func (h *SeoHandler) sitemapHandler(w http.ResponseWriter, r *http.Request) {
	pages, err := h.pageService.ListPublishedPages(r.Context())
	if err != nil {
		code, msg := statusFor(err)
		http.Error(w, msg, code)
		return
	}

	sitemap := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, len(pages)),
	}
	for i, page := range pages {
		loc := h.baseURL + "/" + page.Slug
		if page.Slug == h.homeSlug {
			loc = h.baseURL + "/"
		}
		sitemap.URLs[i] = sitemapURL{
			Loc:     loc,
			LastMod: page.UpdatedAt.Format(sitemapDateFormat),
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(xml.Header))
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(sitemap); err != nil {
		http.Error(w, "Failed to generate sitemap XML", http.StatusInternalServerError)
		return
	}
}

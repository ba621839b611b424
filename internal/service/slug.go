package service

import (
	"regexp"
	"strings"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	slugDrop     = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSeparate = regexp.MustCompile(`[\s-]+`)
)

var transliterations = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// reservedSlugs are first path segments owned by other routes.
var reservedSlugs = map[string]bool{
	"admin":       true,
	"api":         true,
	"auth":        true,
	"static":      true,
	"metrics":     true,
	"robots.txt":  true,
	"sitemap.xml": true,
}

// Slugify derives a URL slug from a page title: "Über Uns" becomes "ueber-uns".
func Slugify(title string) string {
	s := transliterations.Replace(strings.ToLower(title))
	s = slugDrop.ReplaceAllString(s, "")
	s = slugSeparate.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-")
}

// normalizeSlug trims and lower-cases slug so uniqueness does not depend
// on the collation of the page store.
func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidSlug reports whether slug can address a public page.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug) && !reservedSlugs[strings.ToLower(slug)]
}

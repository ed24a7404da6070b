package summarize

import (
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	appcfg "github.com/shopsense/core/internal/config"
)

// Builder assembles the bounded Product Excerpt from a scraped record
// and, optionally, the raw page HTML. Each section is capped before the
// overall cap is applied.
type Builder struct {
	pipeline appcfg.PipelineConfig
	extract  appcfg.ExtractConfig
}

func NewBuilder(pipeline appcfg.PipelineConfig, extract appcfg.ExtractConfig) *Builder {
	return &Builder{pipeline: pipeline, extract: extract}
}

// Build produces the excerpt for one page view. pageHTML may be empty;
// the excerpt then carries only the record's own fields.
func (b *Builder) Build(rec ProductRecord, pageHTML string) Excerpt {
	var doc *goquery.Document
	if strings.TrimSpace(pageHTML) != "" {
		if parsed, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML)); err == nil {
			doc = parsed
		}
	}

	var sections []string
	if t := strings.TrimSpace(rec.Title); t != "" {
		sections = append(sections, "Product: "+t)
	}
	if p := strings.TrimSpace(rec.Price); p != "" {
		sections = append(sections, "Price: "+p)
	}
	if r := strings.TrimSpace(rec.Rating); r != "" {
		line := "Rating: " + r
		if rec.ReviewCount > 0 {
			line += fmt.Sprintf(" (%d reviews)", rec.ReviewCount)
		}
		sections = append(sections, line)
	}
	if s := strings.TrimSpace(rec.Seller); s != "" {
		sections = append(sections, "Seller: "+s)
	}

	if desc := b.description(rec, doc); desc != "" {
		sections = append(sections, "Description: "+truncateRunes(desc, b.pipeline.DescriptionMax))
	}
	if reviews := b.reviewSample(rec, doc); reviews != "" {
		sections = append(sections, "Customer reviews:\n"+truncateRunes(reviews, b.pipeline.ReviewSampleMax))
	}

	text := truncateRunes(strings.Join(sections, "\n"), b.pipeline.ExcerptMax)

	return Excerpt{
		Text:       text,
		Host:       hostOf(rec.URL),
		ProductKey: productKey(rec),
		Site:       siteOf(rec),
	}
}

func (b *Builder) description(rec ProductRecord, doc *goquery.Document) string {
	if d := strings.TrimSpace(rec.Description); d != "" {
		return d
	}
	if doc == nil {
		return ""
	}
	return firstSelectorText(doc, b.extract.DescriptionSelectors)
}

func (b *Builder) reviewSample(rec ProductRecord, doc *goquery.Document) string {
	reviews := rec.Reviews
	if len(reviews) == 0 && doc != nil {
		reviews = selectorTexts(doc, b.extract.ReviewSelectors, b.pipeline.ReviewSampleCount)
	}
	if len(reviews) > b.pipeline.ReviewSampleCount {
		reviews = reviews[:b.pipeline.ReviewSampleCount]
	}

	var cleaned []string
	for _, r := range reviews {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, "- "+r)
		}
	}
	return strings.Join(cleaned, "\n")
}

// firstSelectorText returns the text of the first candidate selector
// that matches a non-empty node.
func firstSelectorText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := normalizeWhitespace(doc.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func selectorTexts(doc *goquery.Document, selectors []string, limit int) []string {
	for _, sel := range selectors {
		var out []string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := normalizeWhitespace(s.Text()); text != "" {
				out = append(out, text)
			}
			return len(out) < limit
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hostOf(rawURL string) string {
	parsed, err := neturl.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Host)
}

// productKey falls back through candidate identifiers; a page without
// any identifier keys on its URL path.
func productKey(rec ProductRecord) string {
	for _, candidate := range []string{rec.ProductID, rec.SKU, rec.UPC} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	if parsed, err := neturl.Parse(strings.TrimSpace(rec.URL)); err == nil && parsed.Path != "" {
		return parsed.Path
	}
	return strings.TrimSpace(rec.Title)
}

func siteOf(rec ProductRecord) string {
	if s := strings.TrimSpace(rec.Site); s != "" {
		return s
	}
	return hostOf(rec.URL)
}

// Package extract produces filtered page text from an HTML document using
// include/exclude selectors and an optional regex post-filter.
package extract

import (
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
)

// DefaultRegexTimeout bounds a single regex filter evaluation.
const DefaultRegexTimeout = 500 * time.Millisecond

// Document is a parsed HTML page.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document. Malformed markup is repaired the way browsers do.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.NewFormat("invalid HTML: " + err.Error())
	}
	return &Document{doc: doc}, nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// body returns the <body> node. The HTML parser always synthesizes one.
func (d *Document) body() *goquery.Selection {
	return d.doc.Find("body").First()
}

// Result holds both the unfiltered and filtered page text.
type Result struct {
	FullText     string `json:"fullText"`
	FilteredText string `json:"filteredDOMText"`
}

// Extractor applies FilterSpecs to documents.
type Extractor struct {
	logger       *zap.Logger
	regexTimeout time.Duration
}

// New creates an Extractor. A nil logger discards diagnostics; a zero timeout uses DefaultRegexTimeout.
func New(logger *zap.Logger, regexTimeout time.Duration) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if regexTimeout <= 0 {
		regexTimeout = DefaultRegexTimeout
	}
	return &Extractor{logger: logger, regexTimeout: regexTimeout}
}

// FullText returns the text content of <body>.
func (e *Extractor) FullText(doc *Document) string {
	return doc.body().Text()
}

// Extract returns the filtered text of doc.
//
// Candidates are the union of include matches (or <body> when there are none).
// A candidate is dropped when it, or any of its ancestors, matches an exclude
// selector; excluded descendants of a kept candidate contribute no text. The
// remaining texts are concatenated without a separator, then passed through
// the regex filter. An empty regex result falls back to
// the unfiltered DOM text.
func (e *Extractor) Extract(doc *Document, filters profile.FilterSpec) string {
	domText := e.domText(doc, filters)
	if filtered := e.applyRegex(domText, filters.Regex); filtered != "" {
		return filtered
	}
	return domText
}

// Debug returns the full and filtered text in one pass.
func (e *Extractor) Debug(doc *Document, filters profile.FilterSpec) Result {
	return Result{
		FullText:     e.FullText(doc),
		FilteredText: e.Extract(doc, filters),
	}
}

// ExtractHTML parses src and runs Debug on it.
func (e *Extractor) ExtractHTML(src string, filters profile.FilterSpec) (Result, error) {
	doc, err := ParseString(src)
	if err != nil {
		return Result{}, err
	}
	return e.Debug(doc, filters), nil
}

func (e *Extractor) domText(doc *Document, filters profile.FilterSpec) string {
	candidates := doc.body().Nodes
	if len(filters.DOMInclude) > 0 {
		candidates = e.union(doc, filters.DOMInclude, "include")
	}

	excluded := make(map[*html.Node]struct{})
	for _, n := range e.union(doc, filters.DOMExclude, "exclude") {
		excluded[n] = struct{}{}
	}

	kept := make([]*html.Node, 0, len(candidates))
	for _, n := range candidates {
		if !suppressed(n, excluded) {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return ""
	}

	var b strings.Builder
	for _, n := range kept {
		writeText(&b, n, excluded)
	}
	return b.String()
}

// writeText appends the text nodes under n in document order, skipping excluded subtrees.
// Script and style text is kept, matching DOM textContent.
func writeText(b *strings.Builder, n *html.Node, excluded map[*html.Node]struct{}) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if _, ok := excluded[c]; ok {
			continue
		}
		writeText(b, c, excluded)
	}
}

// union collects the nodes matched by each selector in order. A node matched
// more than once keeps its first position. Invalid selectors are skipped.
func (e *Extractor) union(doc *Document, selectors []string, kind string) []*html.Node {
	seen := make(map[*html.Node]struct{})
	var nodes []*html.Node

	for _, raw := range selectors {
		matcher, err := cascadia.Compile(raw)
		if err != nil {
			e.logger.Warn("skipping invalid selector",
				zap.String("kind", kind),
				zap.String("selector", raw),
				zap.Error(errors.NewSelector(kind+" selector", raw, err)),
			)
			continue
		}

		for _, n := range doc.doc.FindMatcher(matcher).Nodes {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// suppressed reports whether n or one of its ancestors is excluded.
func suppressed(n *html.Node, excluded map[*html.Node]struct{}) bool {
	if len(excluded) == 0 {
		return false
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if _, ok := excluded[cur]; ok {
			return true
		}
	}
	return false
}

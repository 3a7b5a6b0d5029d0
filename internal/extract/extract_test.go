package extract

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/backseat/internal/profile"
)

const articlePage = `<html><head><title>T</title></head><body>` +
	`<nav>Menu</nav>` +
	`<div class="article">Intro <div class="ad">BUY NOW</div>Outro</div>` +
	`<footer>Legal</footer>` +
	`</body></html>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseString(src)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	return doc
}

func observed() (*Extractor, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return New(zap.New(core), 0), logs
}

func TestFullText(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)

	want := "MenuIntro BUY NOWOutroLegal"
	if got := e.FullText(doc); got != want {
		t.Errorf("FullText = %q, want %q", got, want)
	}
}

func TestExtract_NoFiltersIsFullText(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)

	if got, want := e.Extract(doc, profile.FilterSpec{}), e.FullText(doc); got != want {
		t.Errorf("Extract = %q, want full text %q", got, want)
	}
}

func TestExtract_IncludeWithNestedExclude(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)

	got := e.Extract(doc, profile.FilterSpec{
		DOMInclude: []string{".article"},
		DOMExclude: []string{".ad"},
	})

	if got != "Intro Outro" {
		t.Errorf("Extract = %q, want %q", got, "Intro Outro")
	}
}

func TestExtract_ExcludedIncludeContributesNothing(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)

	got := e.Extract(doc, profile.FilterSpec{
		DOMInclude: []string{".article", ".ad", "footer"},
		DOMExclude: []string{".ad"},
	})
	if got != "Intro OutroLegal" {
		t.Errorf("Extract = %q, want %q", got, "Intro OutroLegal")
	}
}

func TestExtract_ExcludedAncestorSuppressesCandidate(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)

	got := e.Extract(doc, profile.FilterSpec{
		DOMInclude: []string{".ad", "nav"},
		DOMExclude: []string{".article"},
	})
	if got != "Menu" {
		t.Errorf("Extract = %q, want %q", got, "Menu")
	}
}

func TestExtract_NoIncludeIsFullTextMinusExcluded(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)

	got := e.Extract(doc, profile.FilterSpec{DOMExclude: []string{".ad", "nav"}})
	if got != "Intro OutroLegal" {
		t.Errorf("Extract = %q, want %q", got, "Intro OutroLegal")
	}

	got = e.Extract(doc, profile.FilterSpec{DOMExclude: []string{"html"}})
	if got != "" {
		t.Errorf("Extract with excluded ancestor of body = %q, want empty", got)
	}
}

func TestExtract_UnionKeepsFirstPosition(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, `<body><p class="a">one</p><p class="b">two</p><p class="a b">three</p></body>`)

	got := e.Extract(doc, profile.FilterSpec{DOMInclude: []string{".b", ".a"}})
	if got != "twothreeone" {
		t.Errorf("Extract = %q, want %q", got, "twothreeone")
	}
}

func TestExtract_IncludesScriptText(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, `<body><div id="x">a<script>var b;</script><!-- c --></div></body>`)

	got := e.Extract(doc, profile.FilterSpec{DOMInclude: []string{"#x"}})
	if got != "avar b;" {
		t.Errorf("Extract = %q, want %q", got, "avar b;")
	}
}

func TestExtract_Idempotent(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)
	f := profile.FilterSpec{
		DOMInclude: []string{".article", "footer"},
		DOMExclude: []string{"nav"},
		Regex:      `[A-Z]\w+`,
	}

	first := e.Extract(doc, f)
	second := e.Extract(doc, f)
	if first != second {
		t.Errorf("Extract not idempotent: %q vs %q", first, second)
	}
}

func TestExtract_RegexJoinsMatches(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, `<body>Order 123 shipped, order 456 pending</body>`)

	got := e.Extract(doc, profile.FilterSpec{Regex: `\d+`})
	if got != "123\n456" {
		t.Errorf("Extract = %q, want %q", got, "123\n456")
	}
}

func TestExtract_RegexNoMatchFallsBack(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, `<body>no digits here</body>`)

	got := e.Extract(doc, profile.FilterSpec{Regex: `\d+`})
	if got != "no digits here" {
		t.Errorf("Extract = %q, want pre-regex text", got)
	}
}

func TestExtract_RegexIsECMAScript(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, `<body>price: 42 EUR</body>`)

	// Lookahead is not supported by Go's regexp but is valid ECMAScript.
	got := e.Extract(doc, profile.FilterSpec{Regex: `\d+(?= EUR)`})
	if got != "42" {
		t.Errorf("Extract = %q, want %q", got, "42")
	}
}

func TestExtract_BlankRegexIsNoop(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, `<body>text</body>`)

	if got := e.Extract(doc, profile.FilterSpec{Regex: "   "}); got != "text" {
		t.Errorf("Extract = %q, want %q", got, "text")
	}
}

func TestExtract_InvalidRegexSkipped(t *testing.T) {
	e, logs := observed()
	doc := mustParse(t, `<body>text</body>`)

	if got := e.Extract(doc, profile.FilterSpec{Regex: `(unclosed`}); got != "text" {
		t.Errorf("Extract = %q, want %q", got, "text")
	}
	if logs.FilterMessage("skipping regex filter").Len() != 1 {
		t.Errorf("expected one regex warning, got %v", logs.All())
	}
}

func TestExtract_InvalidSelectorSkipped(t *testing.T) {
	e, logs := observed()
	doc := mustParse(t, articlePage)

	got := e.Extract(doc, profile.FilterSpec{
		DOMInclude: []string{"div[", "footer"},
		DOMExclude: []string{":::"},
	})
	if got != "Legal" {
		t.Errorf("Extract = %q, want %q", got, "Legal")
	}

	warnings := logs.FilterMessage("skipping invalid selector").All()
	if len(warnings) != 2 {
		t.Fatalf("expected 2 selector warnings, got %d", len(warnings))
	}
	if warnings[0].ContextMap()["selector"] != "div[" {
		t.Errorf("first warning selector = %v, want div[", warnings[0].ContextMap()["selector"])
	}
}

func TestExtract_AllIncludesInvalid(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, articlePage)

	if got := e.Extract(doc, profile.FilterSpec{DOMInclude: []string{"div["}}); got != "" {
		t.Errorf("Extract = %q, want empty", got)
	}
}

func TestExtract_RegexTimeoutSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := New(zap.New(core), time.Millisecond)
	text := strings.Repeat("a", 5000) + "!"
	doc := mustParse(t, "<body>"+text+"</body>")

	got := e.Extract(doc, profile.FilterSpec{Regex: `^(a+)+$`})
	if got != text {
		t.Errorf("Extract after timeout should return pre-regex text")
	}
	if logs.FilterMessage("skipping regex filter").Len() != 1 {
		t.Error("expected a regex warning for the timeout")
	}
}

func TestExtractHTML(t *testing.T) {
	e := New(nil, 0)

	res, err := e.ExtractHTML(articlePage, profile.FilterSpec{DOMInclude: []string{"footer"}})
	if err != nil {
		t.Fatalf("ExtractHTML failed: %v", err)
	}
	if res.FullText != "MenuIntro BUY NOWOutroLegal" {
		t.Errorf("FullText = %q", res.FullText)
	}
	if res.FilteredText != "Legal" {
		t.Errorf("FilteredText = %q, want Legal", res.FilteredText)
	}
}

func TestParse_FragmentGetsBody(t *testing.T) {
	e := New(nil, 0)
	doc := mustParse(t, "just text")

	if got := e.FullText(doc); got != "just text" {
		t.Errorf("FullText = %q, want %q", got, "just text")
	}
}

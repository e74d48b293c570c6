package document

import (
	"bytes"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html/charset"
)

// StaticContext is a parsed, immutable document. It satisfies Context for
// everything except interaction.
type StaticContext struct {
	name string
	doc  *goquery.Document
	raw  string
}

// Parse decodes body to UTF-8 (honoring the Content-Type charset when
// given) and parses it into a static context.
func Parse(name string, body []byte, contentType string) (*StaticContext, error) {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if !utf8.Valid(body) {
			return nil, err
		}
		decoded = body
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, err
	}
	return &StaticContext{name: name, doc: doc, raw: string(decoded)}, nil
}

// ParseString parses an in-memory HTML string.
func ParseString(name, html string) (*StaticContext, error) {
	return Parse(name, []byte(html), "text/html; charset=utf-8")
}

func (c *StaticContext) Name() string { return c.name }
func (c *StaticContext) Live() bool   { return false }

func (c *StaticContext) Root() (Element, error) {
	return staticElement{c.doc.Selection}, nil
}

func (c *StaticContext) Content() (string, error) {
	if h, err := c.doc.Html(); err == nil {
		return h, nil
	}
	return c.raw, nil
}

// Document exposes the parsed document for extractors that walk it directly.
func (c *StaticContext) Document() *goquery.Document { return c.doc }

func (c *StaticContext) Evaluate(string) (string, error) { return "", ErrNotInteractive }

// WaitFor on a static document is an immediate presence check; nothing will
// appear later.
func (c *StaticContext) WaitFor(selector string, _ time.Duration) bool {
	return len(selectSafe(c.doc.Selection, selector)) > 0
}

func (c *StaticContext) Click(string) error          { return ErrNotInteractive }
func (c *StaticContext) Type(string, string) error   { return ErrNotInteractive }
func (c *StaticContext) ScrollIntoView(string) error { return ErrNotInteractive }

// staticElement wraps a goquery selection behind the Element interface.
type staticElement struct {
	sel *goquery.Selection
}

func (e staticElement) Select(selector string) []Element {
	matched := selectSafe(e.sel, selector)
	out := make([]Element, 0, len(matched))
	for _, m := range matched {
		out = append(out, staticElement{m})
	}
	return out
}

func (e staticElement) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e staticElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// selectSafe compiles the selector explicitly so a malformed one yields no
// matches instead of a panic inside goquery.
func selectSafe(sel *goquery.Selection, selector string) []*goquery.Selection {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	var out []*goquery.Selection
	sel.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

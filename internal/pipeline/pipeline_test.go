package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storescout/internal/config"
	"storescout/internal/document"
	"storescout/internal/model"
)

// fakeContext is a scriptable document context.
type fakeContext struct {
	name       string
	live       bool
	html       string
	afterClick map[string]string // selector -> html swapped in after Click
	clicks     []string
	typed      []string
}

func (f *fakeContext) Name() string { return f.name }
func (f *fakeContext) Live() bool   { return f.live }

func (f *fakeContext) Root() (document.Element, error) {
	parsed, err := document.ParseString(f.name, f.html)
	if err != nil {
		return nil, err
	}
	return parsed.Root()
}

func (f *fakeContext) Content() (string, error) { return f.html, nil }

func (f *fakeContext) Evaluate(string) (string, error) {
	return "", document.ErrNotInteractive
}

func (f *fakeContext) WaitFor(selector string, _ time.Duration) bool {
	return strings.Contains(f.html, strings.Trim(selector, ".#"))
}

func (f *fakeContext) Click(selector string) error {
	if !f.live {
		return document.ErrNotInteractive
	}
	f.clicks = append(f.clicks, selector)
	if next, ok := f.afterClick[selector]; ok {
		f.html = next
	}
	return nil
}

func (f *fakeContext) Type(selector, text string) error {
	if !f.live {
		return document.ErrNotInteractive
	}
	f.typed = append(f.typed, selector+"="+text)
	return nil
}

func (f *fakeContext) ScrollIntoView(string) error {
	if !f.live {
		return document.ErrNotInteractive
	}
	return nil
}

type fakeSession struct {
	main      *fakeContext
	frames    []document.Context
	location  string
	responses []model.NetworkResponse
	navErrs   []error // consumed per Navigate call
	navCalls  int
}

func (s *fakeSession) Navigate(_ context.Context, target string) error {
	s.navCalls++
	if len(s.navErrs) > 0 {
		err := s.navErrs[0]
		s.navErrs = s.navErrs[1:]
		return err
	}
	if s.location == "" {
		s.location = target
	}
	return nil
}

func (s *fakeSession) Location() string { return s.location }

func (s *fakeSession) Main() document.Context {
	if s.main == nil {
		return nil
	}
	return s.main
}

func (s *fakeSession) Frames(context.Context) []document.Context { return s.frames }

func (s *fakeSession) Responses() []model.NetworkResponse { return s.responses }

type fakePatternOracle struct {
	pattern model.Pattern
	err     error
	calls   int
}

func (o *fakePatternOracle) DetectPattern(context.Context, string) (model.Pattern, error) {
	o.calls++
	return o.pattern, o.err
}

type fakeAPIOracle struct {
	desc  model.APIDescriptor
	err   error
	calls int
}

func (o *fakeAPIOracle) DetectAPI(context.Context, []model.NetworkResponse) (model.APIDescriptor, error) {
	o.calls++
	return o.desc, o.err
}

type fakeSweeper struct {
	stores []model.Store
	calls  int
}

func (s *fakeSweeper) Run(context.Context, model.APIDescriptor, *model.Stats) []model.Store {
	s.calls++
	return s.stores
}

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func testPattern() model.Pattern {
	return model.Pattern{
		ItemSelector: ".store",
		Fields: map[string]string{
			"name":    ".name",
			"address": ".addr",
		},
	}
}

func storesHTML(n int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div class="store"><span class="name">Store %d</span><span class="addr">%d Main St</span></div>`, i, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestRunExtractsFromStaticDocument(t *testing.T) {
	dir := t.TempDir()
	session := &fakeSession{
		main: &fakeContext{name: "main", html: storesHTML(3)},
	}
	patterns := &fakePatternOracle{pattern: testPattern()}
	apis := &fakeAPIOracle{err: errors.New("no oracle")}
	sweeper := &fakeSweeper{}

	p := New(config.Defaults(), session, patterns, apis, sweeper, discard(), dir)
	result := p.Run(context.Background(), "https://example.com/stores")

	require.True(t, result.Success)
	assert.Len(t, result.Stores, 3)
	assert.Equal(t, "Store 0", result.Stores[0].Name)
	assert.Equal(t, 3, result.Summary.Total)

	// outputs land in the run directory
	for _, name := range []string{"stores.json", "stores.csv", "stores.geojson", "stores.db"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunFailsOnlyAfterNavigateRetry(t *testing.T) {
	session := &fakeSession{
		main:    &fakeContext{name: "main", html: "<html></html>"},
		navErrs: []error{errors.New("timeout"), errors.New("timeout")},
	}
	p := New(config.Defaults(), session, &fakePatternOracle{}, &fakeAPIOracle{}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com")

	assert.False(t, result.Success)
	assert.Equal(t, 2, session.navCalls)
	assert.Contains(t, result.Message, "timeout")
}

func TestRunRecoversWhenFirstNavigateFails(t *testing.T) {
	session := &fakeSession{
		main:    &fakeContext{name: "main", html: storesHTML(1)},
		navErrs: []error{errors.New("reset by peer")},
	}
	p := New(config.Defaults(), session, &fakePatternOracle{pattern: testPattern()},
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com")

	assert.True(t, result.Success)
	assert.Equal(t, 2, session.navCalls)
	assert.Len(t, result.Stores, 1)
}

func TestRunRetriesOriginalTargetOnRedirect(t *testing.T) {
	session := &fakeSession{
		main:     &fakeContext{name: "main", html: "<html></html>"},
		location: "https://example.com/blocked",
	}
	p := New(config.Defaults(), session, &fakePatternOracle{pattern: testPattern()},
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com/stores")

	assert.True(t, result.Success)
	assert.Equal(t, 2, session.navCalls)
}

func TestRunFallsBackToDefaultPatternOnOracleError(t *testing.T) {
	html := `<html><body><div class="store"><h3>Corner Shop</h3><span class="address">1 High St</span></div></body></html>`
	session := &fakeSession{main: &fakeContext{name: "main", html: html}}
	p := New(config.Defaults(), session, &fakePatternOracle{err: errors.New("oracle down")},
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com")

	require.True(t, result.Success)
	require.Len(t, result.Stores, 1)
	assert.Equal(t, "Corner Shop", result.Stores[0].Name)
}

func TestRunClicksInitialGateAndRedetects(t *testing.T) {
	gated := `<html><body><button id="accept">Accept</button></body></html>`
	main := &fakeContext{
		name: "main",
		live: true,
		html: gated,
	}
	main.afterClick = map[string]string{"#accept": storesHTML(2)}

	pattern := testPattern()
	pattern.InitialButtonSelector = "#accept"

	session := &fakeSession{main: main}
	patterns := &fakePatternOracle{pattern: pattern}
	p := New(config.Defaults(), session, patterns,
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com")

	require.True(t, result.Success)
	assert.Contains(t, main.clicks, "#accept")
	// one detection before the gate, one after
	assert.GreaterOrEqual(t, patterns.calls, 2)
	assert.Len(t, result.Stores, 2)
}

func TestRunCountsLiveContextPatternPassOnce(t *testing.T) {
	session := &fakeSession{main: &fakeContext{name: "main", live: true, html: storesHTML(3)}}
	p := New(config.Defaults(), session, &fakePatternOracle{pattern: testPattern()},
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com")

	require.True(t, result.Success)
	assert.Len(t, result.Stores, 3)
	// one pattern pass per context; a second static pass over the same
	// content would double the count toward the skip threshold
	assert.Equal(t, int64(3), p.Stats().CandidatesFound.Load())
	assert.Equal(t, model.SourceLiveDocument, result.Stores[0].Source)
}

func TestRunSkipsExpensivePhasesAboveThreshold(t *testing.T) {
	session := &fakeSession{
		main:      &fakeContext{name: "main", live: true, html: storesHTML(candidateTarget + 10)},
		responses: []model.NetworkResponse{{URL: "https://example.com/api", ContentPreview: "{}"}},
	}
	pattern := testPattern()
	pattern.ShowMoreSelector = ".show-more"
	apis := &fakeAPIOracle{desc: model.APIDescriptor{HasCoordinateAPI: true}}
	sweeper := &fakeSweeper{stores: []model.Store{{Name: "From API"}}}

	p := New(config.Defaults(), session, &fakePatternOracle{pattern: pattern}, apis, sweeper, discard(), t.TempDir())
	result := p.Run(context.Background(), "https://example.com")

	require.True(t, result.Success)
	assert.Zero(t, apis.calls, "API oracle must not run above the candidate threshold")
	assert.Zero(t, sweeper.calls)
	assert.Empty(t, session.main.clicks)
}

func TestRunFallsBackToAPISweep(t *testing.T) {
	session := &fakeSession{
		main:      &fakeContext{name: "main", html: "<html><body>map only</body></html>"},
		responses: []model.NetworkResponse{{URL: "https://example.com/api/stores", ContentPreview: `{"stores":[]}`}},
	}
	apis := &fakeAPIOracle{desc: model.APIDescriptor{
		HasCoordinateAPI: true,
		APITemplate:      "https://example.com/api/stores?lat={{lat}}&lng={{lng}}",
		SearchType:       "radius",
	}}
	sweeper := &fakeSweeper{stores: []model.Store{
		{Name: "Swept One", Address: "1 Grid Rd", Source: model.SourceDynamicAPI},
		{Name: "Swept Two", Address: "2 Grid Rd", Source: model.SourceDynamicAPI},
	}}

	p := New(config.Defaults(), session, &fakePatternOracle{pattern: testPattern()}, apis, sweeper, discard(), t.TempDir())
	result := p.Run(context.Background(), "https://example.com")

	require.True(t, result.Success)
	assert.Equal(t, 1, apis.calls)
	assert.Equal(t, 1, sweeper.calls)
	assert.Len(t, result.Stores, 2)
	assert.Equal(t, model.SourceDynamicAPI, result.Stores[0].Source)
}

func TestRunSkipsAPIWithoutObservedResponses(t *testing.T) {
	session := &fakeSession{main: &fakeContext{name: "main", html: "<html></html>"}}
	apis := &fakeAPIOracle{desc: model.APIDescriptor{HasCoordinateAPI: true}}
	sweeper := &fakeSweeper{}

	p := New(config.Defaults(), session, &fakePatternOracle{pattern: testPattern()}, apis, sweeper, discard(), t.TempDir())
	result := p.Run(context.Background(), "https://example.com")

	assert.True(t, result.Success)
	assert.Zero(t, apis.calls)
	assert.Zero(t, sweeper.calls)
}

func TestRunJSONLDEndToEnd(t *testing.T) {
	html := `<html><body>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"LocalBusiness","name":"Acme Store",
 "address":{"@type":"PostalAddress","streetAddress":"1 Main St","addressLocality":"Springfield"}}
</script>
</body></html>`
	session := &fakeSession{main: &fakeContext{name: "main", html: html}}
	p := New(config.Defaults(), session, &fakePatternOracle{pattern: testPattern()},
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://acme.example.com")

	require.True(t, result.Success)
	require.Len(t, result.Stores, 1)
	got := result.Stores[0]
	assert.Equal(t, "Acme Store", got.Name)
	assert.Equal(t, "1 Main St", got.Address)
	assert.Equal(t, "Springfield", got.City)
	assert.Equal(t, model.SourceJSONLD, got.Source)
	assert.Equal(t, 1, result.Summary.BySource[model.SourceJSONLD])
}

func TestRunDedupesAcrossSources(t *testing.T) {
	// the same store surfaces via JSON-LD and the pattern extractor
	html := `<html><body>
<script type="application/ld+json">{"@type":"Store","name":"Twin","address":{"streetAddress":"5 Same St","addressLocality":"Springfield"}}</script>
<div class="store"><span class="name">Twin</span><span class="addr">5 Same St</span></div>
</body></html>`
	session := &fakeSession{main: &fakeContext{name: "main", html: html}}
	p := New(config.Defaults(), session, &fakePatternOracle{pattern: testPattern()},
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com")

	require.True(t, result.Success)
	// locality differs between the two records, so both survive dedupe;
	// identical name|address|city triples would collapse
	names := map[string]int{}
	for _, s := range result.Stores {
		names[s.Name]++
	}
	assert.Equal(t, 2, names["Twin"])
}

func TestRunTypesSearchProbes(t *testing.T) {
	main := &fakeContext{name: "main", live: true, html: storesHTML(1) + `<input class="q"><button class="go">Go</button>`}
	pattern := testPattern()
	pattern.SearchInputSelector = ".q"
	pattern.SearchButtonSelector = ".go"

	session := &fakeSession{main: main}
	p := New(config.Defaults(), session, &fakePatternOracle{pattern: pattern},
		&fakeAPIOracle{err: errors.New("x")}, &fakeSweeper{}, discard(), t.TempDir())

	result := p.Run(context.Background(), "https://example.com")

	require.True(t, result.Success)
	require.Len(t, main.typed, 2)
	assert.Equal(t, ".q=New York", main.typed[0])
	assert.Equal(t, ".q=London", main.typed[1])
}

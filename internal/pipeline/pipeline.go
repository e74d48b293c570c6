// Package pipeline sequences a run: acquisition, context assembly, pattern
// detection, multi-source extraction, interactive expansion, API fallback,
// and normalization. Every phase proceeds even when the previous one
// partially failed; the pipeline prefers partial results over aborting.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"storescout/internal/config"
	"storescout/internal/document"
	"storescout/internal/extract"
	"storescout/internal/model"
	"storescout/internal/normalize"
	"storescout/internal/oracle"
	"storescout/internal/output"
	"storescout/internal/storage"
)

const (
	// candidateTarget is the count at which the expensive later phases
	// (interactive expansion, API fallback) are skipped.
	candidateTarget = 200
	// maxShowMoreClicks bounds the show-more loop per document context.
	maxShowMoreClicks = 20
	// settleDelay is the pause after an interaction before re-reading
	// the document.
	settleDelay = 1500 * time.Millisecond
	// contentCap bounds the merged content handed to the pattern oracle.
	contentCap = 120000
)

// searchProbes are representative queries typed into a detected search
// affordance to coax region-gated locators into listing results.
var searchProbes = []string{"New York", "London"}

// Sweeper runs the geographic API sweep. Satisfied by *sweep.Engine.
type Sweeper interface {
	Run(ctx context.Context, desc model.APIDescriptor, stats *model.Stats) []model.Store
}

type Pipeline struct {
	cfg      config.Config
	session  document.Session
	patterns oracle.PatternOracle
	apis     oracle.APIOracle
	sweeper  Sweeper
	logger   *log.Logger
	outDir   string

	stats model.Stats

	mu         sync.Mutex
	candidates []model.Store
}

func New(cfg config.Config, session document.Session, patterns oracle.PatternOracle,
	apis oracle.APIOracle, sweeper Sweeper, logger *log.Logger, outDir string) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		session:  session,
		patterns: patterns,
		apis:     apis,
		sweeper:  sweeper,
		logger:   logger,
		outDir:   outDir,
	}
}

// Run executes the full pipeline against one target. Only primary document
// acquisition failure (after one retry) fails the run.
func (p *Pipeline) Run(ctx context.Context, target string) model.RunResult {
	// Phase 1: acquisition, one retry
	if err := p.session.Navigate(ctx, target); err != nil {
		p.logger.Printf("ACQUIRE_RETRY target=%s err=%v", target, err)
		if err := p.session.Navigate(ctx, target); err != nil {
			p.logger.Printf("ACQUIRE_FAILED target=%s err=%v", target, err)
			return model.RunResult{
				Success:   false,
				Message:   fmt.Sprintf("loading %s: %v", target, err),
				OutputDir: p.outDir,
			}
		}
	}
	if loc := p.session.Location(); loc != "" && loc != target {
		// the site bounced us somewhere else; try the original target
		// once more and keep whatever we land on
		p.logger.Printf("REDIRECT from=%s to=%s", target, loc)
		if err := p.session.Navigate(ctx, target); err != nil {
			p.logger.Printf("REDIRECT_RETRY_FAILED err=%v", err)
		}
	}

	// Phases 2+3: context assembly and pattern detection
	pattern := p.detectPattern(ctx)
	if pattern.InitialButtonSelector != "" {
		// consent/country gate: click through and analyze the page
		// behind it
		if err := p.session.Main().Click(pattern.InitialButtonSelector); err != nil {
			p.logger.Printf("INITIAL_GATE_SKIP err=%v", err)
		} else {
			time.Sleep(settleDelay)
			pattern = p.detectPattern(ctx)
		}
	}

	// Phase 4: multi-source extraction
	p.extractAll(ctx, pattern)
	p.logger.Printf("EXTRACT candidates=%d", p.count())

	// Phase 5: interactive expansion
	if p.count() >= candidateTarget {
		p.logger.Printf("EXPAND_SKIP candidates=%d", p.count())
	} else {
		p.expandInteractive(ctx, pattern)
	}

	// Phase 6: API fallback
	if p.count() >= candidateTarget {
		p.logger.Printf("API_SKIP candidates=%d", p.count())
	} else {
		p.apiFallback(ctx)
	}

	// Phase 7: normalization, terminal and unconditional
	return p.finish(target)
}

// detectPattern assembles a fresh context list, merges the serialized
// content, and asks the pattern oracle once. Oracle failure falls back to
// the hardcoded conservative descriptor.
func (p *Pipeline) detectPattern(ctx context.Context) model.Pattern {
	merged := p.mergedContent(ctx)

	p.stats.OracleCalls.Add(1)
	pattern, err := p.patterns.DetectPattern(ctx, merged)
	if err != nil {
		p.logger.Printf("PATTERN_FALLBACK err=%v", err)
		return oracle.DefaultPattern()
	}
	return pattern
}

func (p *Pipeline) mergedContent(ctx context.Context) string {
	var merged string
	if main := p.session.Main(); main != nil {
		if content, err := main.Content(); err == nil {
			merged = content
		}
	}
	for _, frame := range p.session.Frames(ctx) {
		content, err := frame.Content()
		if err != nil {
			continue
		}
		merged += "\n<!-- " + frame.Name() + " -->\n" + content
		if len(merged) > contentCap {
			break
		}
	}
	if len(merged) > contentCap {
		merged = merged[:contentCap]
	}
	return merged
}

// extractAll runs every extractor against every context. Sibling contexts
// are independent pure reads, so they are dispatched concurrently; the
// candidate list is the only shared state and is appended under the lock.
func (p *Pipeline) extractAll(ctx context.Context, pattern model.Pattern) {
	contexts := p.contexts(ctx)

	var wg sync.WaitGroup
	for _, dc := range contexts {
		wg.Add(1)
		go func(dc document.Context) {
			defer wg.Done()
			p.extractContext(dc, pattern)
		}(dc)
	}
	wg.Wait()
}

func (p *Pipeline) extractContext(dc document.Context, pattern model.Pattern) {
	content, err := dc.Content()
	if err != nil {
		p.logger.Printf("CONTENT_ERROR context=%s err=%v", dc.Name(), err)
		p.stats.Errors.Add(1)
		return
	}

	parsed, err := document.ParseString(dc.Name(), content)
	if err != nil {
		p.stats.Errors.Add(1)
		return
	}

	// one pattern pass per context: the static pass over a live context's
	// serialized content would yield the same rows again and inflate the
	// candidate count toward the skip threshold
	if dc.Live() {
		p.append(extract.FromContext(dc, pattern))
	} else {
		p.append(extract.FromDocument(content, pattern))
	}
	p.append(extract.FromJSONLD(parsed.Document()))
	p.append(extract.FromInlineScripts(parsed.Document()))
}

// expandInteractive clicks through show-more affordances and probes the
// search box with representative queries. Each step derives a fresh context
// list; handles are never reused across phases.
func (p *Pipeline) expandInteractive(ctx context.Context, pattern model.Pattern) {
	if pattern.ShowMoreSelector != "" {
		for _, dc := range p.contexts(ctx) {
			clicks := p.clickThrough(dc, pattern.ShowMoreSelector)
			if clicks > 0 {
				p.logger.Printf("SHOW_MORE context=%s clicks=%d", dc.Name(), clicks)
			}
		}
		p.extractAll(ctx, pattern)
	}

	if pattern.SearchInputSelector != "" && pattern.SearchButtonSelector != "" {
		for _, query := range searchProbes {
			if ctx.Err() != nil {
				return
			}
			main := p.session.Main()
			if main == nil {
				return
			}
			if err := main.Type(pattern.SearchInputSelector, query); err != nil {
				p.logger.Printf("SEARCH_SKIP query=%q err=%v", query, err)
				return
			}
			if err := main.Click(pattern.SearchButtonSelector); err != nil {
				p.logger.Printf("SEARCH_SKIP query=%q err=%v", query, err)
				return
			}
			time.Sleep(settleDelay)

			// results may use a different layout than the landing page
			probed := p.detectPattern(ctx)
			p.extractAll(ctx, probed)
			p.logger.Printf("SEARCH_PROBE query=%q candidates=%d", query, p.count())
		}
	}
}

// clickThrough clicks a show-more control until it disappears or the cap is
// reached. A non-interactive context ends the loop on the first click.
func (p *Pipeline) clickThrough(dc document.Context, selector string) int {
	clicks := 0
	for clicks < maxShowMoreClicks {
		if !dc.WaitFor(selector, 2*time.Second) {
			break
		}
		if err := dc.ScrollIntoView(selector); err != nil {
			break
		}
		if err := dc.Click(selector); err != nil {
			break
		}
		clicks++
		time.Sleep(settleDelay)
	}
	return clicks
}

func (p *Pipeline) apiFallback(ctx context.Context) {
	responses := p.session.Responses()
	if len(responses) == 0 {
		p.logger.Printf("API_NONE no observed responses")
		return
	}

	p.stats.OracleCalls.Add(1)
	desc, err := p.apis.DetectAPI(ctx, responses)
	if err != nil {
		p.logger.Printf("API_ORACLE_FAILED err=%v", err)
		return
	}
	if !desc.HasCoordinateAPI {
		p.logger.Printf("API_NONE no coordinate API detected")
		return
	}

	p.logger.Printf("API_SWEEP template=%s type=%s unit=%s", desc.APITemplate, desc.SearchType, desc.DistanceUnit)
	p.append(p.sweeper.Run(ctx, desc, &p.stats))
}

// finish filters, dedupes, persists, and reports. It never fails the run:
// a write error is logged and the in-memory result still returned.
func (p *Pipeline) finish(target string) model.RunResult {
	p.mu.Lock()
	raw := make([]model.Store, len(p.candidates))
	copy(raw, p.candidates)
	p.mu.Unlock()

	filtered := normalize.Filter(raw)
	p.stats.Dropped.Add(int64(len(raw) - len(filtered)))

	stores := normalize.Dedupe(filtered)
	p.stats.Duplicates.Add(int64(len(filtered) - len(stores)))

	if p.cfg.Enhance {
		stores = normalize.Enhance(stores)
	}

	summary := normalize.Summarize(target, stores)
	p.logger.Printf("NORMALIZE raw=%d filtered=%d unique=%d with_coords=%d",
		len(raw), len(filtered), len(stores), summary.WithCoordinates)

	p.persist(stores, summary)

	return model.RunResult{
		Success:   true,
		Message:   fmt.Sprintf("extracted %d stores", len(stores)),
		Summary:   summary,
		Stores:    stores,
		OutputDir: p.outDir,
	}
}

func (p *Pipeline) persist(stores []model.Store, summary model.Summary) {
	if p.outDir == "" {
		return
	}

	if err := output.WriteJSON(filepath.Join(p.outDir, "stores.json"), summary, stores); err != nil {
		p.logger.Printf("WRITE_ERROR file=stores.json err=%v", err)
	}
	if err := output.WriteCSV(filepath.Join(p.outDir, "stores.csv"), stores); err != nil {
		p.logger.Printf("WRITE_ERROR file=stores.csv err=%v", err)
	}
	if err := output.WriteGeoJSON(filepath.Join(p.outDir, "stores.geojson"), stores); err != nil {
		p.logger.Printf("WRITE_ERROR file=stores.geojson err=%v", err)
	}

	db, err := storage.New(filepath.Join(p.outDir, "stores.db"))
	if err != nil {
		p.logger.Printf("WRITE_ERROR file=stores.db err=%v", err)
		return
	}
	defer db.Close()
	if _, err := db.InsertBatch(stores, p.cfg.BatchSize); err != nil {
		p.logger.Printf("WRITE_ERROR file=stores.db err=%v", err)
	}
}

// contexts returns a fresh main+frames list. Frame handles can go stale
// after interaction, so every phase calls this instead of holding a list.
func (p *Pipeline) contexts(ctx context.Context) []document.Context {
	var out []document.Context
	if main := p.session.Main(); main != nil {
		out = append(out, main)
	}
	out = append(out, p.session.Frames(ctx)...)
	return out
}

func (p *Pipeline) append(stores []model.Store) {
	if len(stores) == 0 {
		return
	}
	p.mu.Lock()
	p.candidates = append(p.candidates, stores...)
	p.mu.Unlock()
	p.stats.CandidatesFound.Add(int64(len(stores)))
}

func (p *Pipeline) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}

// Stats exposes the run counters for progress reporting.
func (p *Pipeline) Stats() *model.Stats {
	return &p.stats
}

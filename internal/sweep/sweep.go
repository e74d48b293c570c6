// Package sweep recovers records that only exist behind a coordinate-based
// API. It partitions the globe into land-filtered grid cells and probes the
// API once per cell, with a consecutive-empty-cell circuit breaker bounding
// the worst case against regional APIs.
package sweep

import (
	"context"
	"io"
	"log"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"storescout/internal/extract"
	"storescout/internal/fetch"
	"storescout/internal/geo"
	"storescout/internal/model"
	"storescout/internal/oracle"
)

// directCallThreshold is the record count above which the unparameterized
// direct call is accepted as the full catalog and the sweep is skipped.
const directCallThreshold = 50

type Options struct {
	LatStepDegrees float64
	LngStepDegrees float64
	MaxEmptyCells  int
	RateLimitDelay time.Duration
	// ProgressWriter receives a progress bar during the cell loop.
	// nil disables it.
	ProgressWriter io.Writer
}

type Engine struct {
	client     *fetch.Client
	mapper     oracle.MappingOracle
	classifier *geo.Classifier
	logger     *log.Logger
	opts       Options

	// mapping is inferred once from the first response with records and
	// reused for the rest of the sweep.
	mapping model.FieldMapping
}

func New(client *fetch.Client, mapper oracle.MappingOracle, classifier *geo.Classifier, logger *log.Logger, opts Options) *Engine {
	if opts.LatStepDegrees <= 0 {
		opts.LatStepDegrees = 30
	}
	if opts.LngStepDegrees <= 0 {
		opts.LngStepDegrees = 30
	}
	if opts.MaxEmptyCells <= 0 {
		opts.MaxEmptyCells = 30
	}
	if opts.RateLimitDelay <= 0 {
		opts.RateLimitDelay = time.Second
	}
	return &Engine{
		client:     client,
		mapper:     mapper,
		classifier: classifier,
		logger:     logger,
		opts:       opts,
	}
}

// Run executes the sweep for one API descriptor and returns the mapped
// records. A failed mapping inference or an exhausted circuit breaker ends
// the sweep without failing the run.
func (e *Engine) Run(ctx context.Context, desc model.APIDescriptor, stats *model.Stats) []model.Store {
	if !desc.HasCoordinateAPI || desc.APITemplate == "" {
		return nil
	}

	// Many APIs dump the whole catalog when no geo filter is supplied;
	// one cheap request can make the 72-cell sweep unnecessary. done is
	// also true when the catalog came back but its mapping could not be
	// inferred: the oracle runs once per run, so sweeping on would only
	// repeat the same failure cell by cell.
	if stores, done := e.directCall(ctx, desc, stats); done {
		e.logger.Printf("SWEEP_DIRECT records=%d", len(stores))
		return stores
	}

	cells := geo.GenerateGrid(e.opts.LatStepDegrees, e.opts.LngStepDegrees)
	raw := len(cells)
	cells = geo.FilterLandCells(ctx, cells, e.classifier)
	e.logger.Printf("SWEEP_GRID raw=%d land=%d", raw, len(cells))

	var bar *progressbar.ProgressBar
	if e.opts.ProgressWriter != nil {
		bar = progressbar.NewOptions(len(cells),
			progressbar.OptionSetDescription("Sweeping grid"),
			progressbar.OptionSetWriter(e.opts.ProgressWriter),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var out []model.Store
	emptyStreak := 0
	for i, cell := range cells {
		if ctx.Err() != nil {
			break
		}
		if emptyStreak >= e.opts.MaxEmptyCells {
			e.logger.Printf("SWEEP_ABORT consecutive_empty=%d cell=%d/%d", emptyStreak, i, len(cells))
			break
		}

		if i > 0 {
			select {
			case <-time.After(e.opts.RateLimitDelay):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}

		stats.CellsProbed.Add(1)
		records := e.probe(ctx, desc, cell, stats)
		if len(records) == 0 {
			emptyStreak++
			stats.SweepEmptyCells.Add(1)
		} else {
			emptyStreak = 0
			stores, ok := e.mapRecords(ctx, records, stats)
			if !ok {
				// no usable mapping; API results are unreachable
				// for this run
				break
			}
			out = append(out, stores...)
		}

		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return out
}

// directCall strips the template's query string and issues one request.
// done is true when the response carried enough records to stand in for the
// whole sweep, whether or not their mapping could be inferred; false means
// the shortcut did not apply and the grid sweep should proceed.
func (e *Engine) directCall(ctx context.Context, desc model.APIDescriptor, stats *model.Stats) ([]model.Store, bool) {
	u, err := url.Parse(desc.APITemplate)
	if err != nil {
		return nil, false
	}
	u.RawQuery = ""
	u.Fragment = ""
	bare := u.String()
	if strings.Contains(bare, "{{") {
		// placeholders in the path cannot be stripped away
		return nil, false
	}

	stats.SweepRequests.Add(1)
	resp, err := e.client.Get(ctx, bare)
	if err != nil {
		return nil, false
	}

	records := recordsIn(resp.Body)
	if len(records) <= directCallThreshold {
		return nil, false
	}

	stores, ok := e.mapRecords(ctx, records, stats)
	if !ok {
		// the full catalog is in hand but unreadable; sweeping would
		// re-fetch the same shape per cell with no mapping to apply
		return nil, true
	}
	return stores, true
}

// probe requests one cell and returns whatever record array the response
// contains. Failures are empty cells, not errors.
func (e *Engine) probe(ctx context.Context, desc model.APIDescriptor, cell model.Cell, stats *model.Stats) []map[string]any {
	reqURL := Substitute(desc, cell)

	stats.SweepRequests.Add(1)
	resp, err := e.client.Get(ctx, reqURL)
	if err != nil {
		stats.Errors.Add(1)
		e.logger.Printf("SWEEP_ERROR cell=%.1f,%.1f err=%v", cell.CenterLat, cell.CenterLng, err)
		return nil
	}
	return recordsIn(resp.Body)
}

// mapRecords applies the inferred field mapping, inferring it first if this
// is the first response with records.
func (e *Engine) mapRecords(ctx context.Context, records []map[string]any, stats *model.Stats) ([]model.Store, bool) {
	if e.mapping == nil {
		stats.OracleCalls.Add(1)
		mapping, err := e.mapper.InferMapping(ctx, records[0])
		if err != nil || len(mapping) == 0 {
			e.logger.Printf("SWEEP_NO_MAPPING err=%v", err)
			return nil, false
		}
		e.mapping = mapping
	}

	out := make([]model.Store, 0, len(records))
	for _, rec := range records {
		store := ApplyMapping(rec, e.mapping)
		if store.Name != "" || store.Address != "" {
			out = append(out, store)
		}
	}
	return out, true
}

// recordsIn locates the first array of record-shaped objects in a response
// body, in document order. Unparsable bodies yield nil.
func recordsIn(body []byte) []map[string]any {
	return extract.FirstRecordArray(body)
}

// ApplyMapping converts one raw API record to the Store shape. Coordinates
// are coerced to numbers; anything non-numeric becomes nil.
func ApplyMapping(rec map[string]any, mapping model.FieldMapping) model.Store {
	get := func(field string) string {
		path, ok := mapping[field]
		if !ok {
			return ""
		}
		return extract.PathString(rec, path)
	}

	store := model.Store{
		Name:       get("name"),
		Address:    get("address"),
		City:       get("city"),
		State:      get("state"),
		Country:    get("country"),
		PostalCode: get("postal_code"),
		Phone:      get("phone"),
		Email:      get("email"),
		URL:        get("url"),
		Source:     model.SourceDynamicAPI,
	}
	if path, ok := mapping["latitude"]; ok {
		store.Latitude = extract.PathFloat(rec, path)
	}
	if path, ok := mapping["longitude"]; ok {
		store.Longitude = extract.PathFloat(rec, path)
	}
	return store
}

// Substitute fills the template placeholders with a cell's coordinates:
// center plus distance for radius templates, the two corners for bbox ones.
func Substitute(desc model.APIDescriptor, cell model.Cell) string {
	tpl := desc.APITemplate
	if desc.SearchType == "bbox" {
		r := strings.NewReplacer(
			"{{sw_lat}}", formatCoord(cell.SWLat),
			"{{sw_lng}}", formatCoord(cell.SWLng),
			"{{ne_lat}}", formatCoord(cell.NELat),
			"{{ne_lng}}", formatCoord(cell.NELng),
		)
		return r.Replace(tpl)
	}

	r := strings.NewReplacer(
		"{{latitude}}", formatCoord(cell.CenterLat),
		"{{longitude}}", formatCoord(cell.CenterLng),
		"{{distance}}", strconv.Itoa(distanceIn(desc.DistanceUnit, cell)),
	)
	return r.Replace(tpl)
}

// distanceIn converts the cell radius to the descriptor's declared unit,
// ceiling-rounded so the circle never undershoots the cell.
func distanceIn(unit string, cell model.Cell) int {
	switch strings.ToLower(unit) {
	case "mi", "mile", "miles":
		return int(math.Ceil(cell.RadiusKm * 0.621371))
	case "m", "meter", "meters", "metre", "metres":
		return int(math.Ceil(cell.RadiusMeters))
	default:
		return int(math.Ceil(cell.RadiusKm))
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

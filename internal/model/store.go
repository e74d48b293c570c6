package model

import "sync/atomic"

// Source identifies which extractor produced a record.
const (
	SourceStaticDocument = "static-document"
	SourceLiveDocument   = "live-document"
	SourceJSONLD         = "json-ld"
	SourceInlineScript   = "inline-script"
	SourceDynamicAPI     = "dynamic-api"
)

// Store is a single extracted store/location record. Latitude and longitude
// are pointers so that "unknown" is distinguishable from 0,0.
type Store struct {
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Country    string   `json:"country"`
	PostalCode string   `json:"postal_code"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email"`
	URL        string   `json:"url"`
	Source     string   `json:"source"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (s *Store) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Stats tracks run-level counters. All fields are safe for concurrent use.
type Stats struct {
	CandidatesFound atomic.Int64
	CellsProbed     atomic.Int64
	SweepRequests   atomic.Int64
	SweepEmptyCells atomic.Int64
	OracleCalls     atomic.Int64
	Errors          atomic.Int64
	Dropped         atomic.Int64
	Duplicates      atomic.Int64
}

// Summary is the normalized tail of a run, persisted as output metadata.
type Summary struct {
	URL             string         `json:"url"`
	Total           int            `json:"total"`
	BySource        map[string]int `json:"by_source"`
	WithCoordinates int            `json:"with_coordinates"`
}

// RunResult is the terminal outcome of a pipeline run. A degraded run
// (oracle unavailable, sweep aborted) still reports Success with whatever
// records were recoverable; only primary document acquisition failure
// yields Success=false.
type RunResult struct {
	Success   bool
	Message   string
	Summary   Summary
	Stores    []Store
	OutputDir string
}

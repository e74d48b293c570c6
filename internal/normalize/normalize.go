// Package normalize is the final stage of the pipeline: it filters
// incomplete candidates, collapses exact duplicates, and computes the run
// summary.
package normalize

import (
	"strings"

	"storescout/internal/model"
)

// Filter drops candidates that identify nothing: a record with no name and
// no address, city, or complete coordinate pair cannot be matched to a real
// location.
func Filter(stores []model.Store) []model.Store {
	out := make([]model.Store, 0, len(stores))
	for _, s := range stores {
		if s.Name == "" && s.Address == "" && s.City == "" && !s.HasCoordinates() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Dedupe keeps the first record observed per composite identity key,
// preserving discovery order. The key is exact-match: near-duplicates with
// minor text variation stay distinct.
func Dedupe(stores []model.Store) []model.Store {
	seen := make(map[string]bool, len(stores))
	out := make([]model.Store, 0, len(stores))
	for _, s := range stores {
		key := Key(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// Key is the case-insensitive composite identity of a record. Missing
// fields contribute empty segments so partially-filled records still
// collide when their populated fields match.
func Key(s model.Store) string {
	return strings.ToLower(s.Name) + "|" + strings.ToLower(s.Address) + "|" + strings.ToLower(s.City)
}

// Summarize computes the run statistics over the final record set.
func Summarize(url string, stores []model.Store) model.Summary {
	summary := model.Summary{
		URL:      url,
		Total:    len(stores),
		BySource: make(map[string]int),
	}
	for _, s := range stores {
		summary.BySource[s.Source]++
		if s.HasCoordinates() {
			summary.WithCoordinates++
		}
	}
	return summary
}

// Enhance is the optional post-processing pass: whitespace is collapsed and
// obvious junk values removed. It never invents data, only cleans what the
// extractors produced.
func Enhance(stores []model.Store) []model.Store {
	out := make([]model.Store, len(stores))
	for i, s := range stores {
		s.Name = cleanText(s.Name)
		s.Address = cleanText(s.Address)
		s.City = cleanText(s.City)
		s.State = cleanText(s.State)
		s.Country = cleanText(s.Country)
		s.PostalCode = cleanText(s.PostalCode)
		s.Phone = cleanText(s.Phone)
		s.Email = cleanText(s.Email)
		out[i] = s
	}
	return out
}

func cleanText(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	switch strings.ToLower(v) {
	case "null", "undefined", "n/a", "none":
		return ""
	}
	return v
}

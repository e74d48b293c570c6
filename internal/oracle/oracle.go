// Package oracle wraps the language-model pattern detection used by the
// pipeline. The oracles are deliberately unreliable collaborators: their
// answers are never trusted as-is and every failure degrades to a
// conservative default rather than an aborted run.
package oracle

import (
	"context"

	"storescout/internal/model"
)

// PatternOracle infers a selector bundle from document content.
type PatternOracle interface {
	DetectPattern(ctx context.Context, html string) (model.Pattern, error)
}

// APIOracle infers a coordinate-API descriptor from observed network
// responses.
type APIOracle interface {
	DetectAPI(ctx context.Context, responses []model.NetworkResponse) (model.APIDescriptor, error)
}

// MappingOracle infers a field mapping from one sample API record.
type MappingOracle interface {
	InferMapping(ctx context.Context, sample map[string]any) (model.FieldMapping, error)
}

// DefaultPattern is the hardcoded conservative descriptor used when pattern
// detection fails. The selectors target the class names store-locator
// templates use most often; they match nothing on other layouts, which is
// the safe outcome.
func DefaultPattern() model.Pattern {
	return model.Pattern{
		ItemSelector: ".store, .location, .store-item, .location-item, [class*='store-card'], [class*='location-card']",
		Fields: map[string]string{
			"name":    ".store-name, .location-name, h2, h3, h4",
			"address": ".address, .store-address, [class*='address']",
			"city":    ".city, [class*='city']",
			"phone":   ".phone, [class*='phone'], a[href^='tel:']",
			"url":     "a@href",
		},
	}
}

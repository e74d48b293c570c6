package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"storescout/internal/model"
)

// storeTypes is the schema.org entity allow-list. Anything else in a
// JSON-LD block (breadcrumbs, articles, organizations without premises) is
// ignored.
var storeTypes = map[string]bool{
	"store":            true,
	"localbusiness":    true,
	"restaurant":       true,
	"hotel":            true,
	"shoppingcenter":   true,
	"clothingstore":    true,
	"grocerystore":     true,
	"furniturestore":   true,
	"shoestore":        true,
	"cafeorcoffeeshop": true,
}

// FromJSONLD extracts store entities from every ld+json block in the
// document. Graph containers are expanded recursively; a malformed block is
// skipped without affecting the others.
func FromJSONLD(doc *goquery.Document) []model.Store {
	var out []model.Store
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var parsed any
		if err := json.Unmarshal([]byte(s.Text()), &parsed); err != nil {
			return
		}
		out = append(out, collectEntities(parsed)...)
	})
	return out
}

func collectEntities(v any) []model.Store {
	var out []model.Store
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = append(out, collectEntities(item)...)
		}
	case map[string]any:
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				out = append(out, collectEntities(item)...)
			}
		}
		if isStoreEntity(t) {
			store := entityToStore(t)
			if store.Name != "" || store.Address != "" {
				out = append(out, store)
			}
		}
	}
	return out
}

// isStoreEntity matches @type against the allow-list. @type may be a string
// or an array of strings.
func isStoreEntity(entity map[string]any) bool {
	switch t := entity["@type"].(type) {
	case string:
		return storeTypes[strings.ToLower(t)]
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && storeTypes[strings.ToLower(s)] {
				return true
			}
		}
	}
	return false
}

// entityToStore flattens a schema.org entity, mapping the nested
// PostalAddress and GeoCoordinates sub-objects to the flat record shape.
func entityToStore(entity map[string]any) model.Store {
	store := model.Store{
		Name:   safeString(entity["name"]),
		Phone:  safeString(entity["telephone"]),
		Email:  safeString(entity["email"]),
		URL:    safeString(entity["url"]),
		Source: model.SourceJSONLD,
	}

	switch addr := entity["address"].(type) {
	case map[string]any:
		store.Address = safeString(addr["streetAddress"])
		store.City = safeString(addr["addressLocality"])
		store.State = safeString(addr["addressRegion"])
		store.Country = addressCountry(addr["addressCountry"])
		store.PostalCode = safeString(addr["postalCode"])
	case string:
		store.Address = strings.TrimSpace(addr)
	}

	if geo, ok := entity["geo"].(map[string]any); ok {
		store.Latitude = safeFloat(geo["latitude"])
		store.Longitude = safeFloat(geo["longitude"])
	}

	return store
}

// addressCountry handles both the bare-string and the nested
// {"@type":"Country","name":...} forms.
func addressCountry(v any) string {
	if m, ok := v.(map[string]any); ok {
		return safeString(m["name"])
	}
	return safeString(v)
}

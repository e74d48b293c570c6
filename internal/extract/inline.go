package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"storescout/internal/model"
)

// storesMarker is the object opening that store-locator pages commonly embed
// inside bootstrap scripts. The surrounding script is arbitrary code, so the
// payload has to be sliced out with a balanced-brace walk before it can be
// parsed as JSON.
const storesMarker = `{"stores":`

// FromInlineScripts scans every non-JSON-LD script block for an embedded
// store payload. A block whose sliced payload fails to parse is skipped;
// other blocks and other sources are unaffected.
func FromInlineScripts(doc *goquery.Document) []model.Store {
	var out []model.Store
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if typ, _ := s.Attr("type"); strings.Contains(typ, "ld+json") {
			return
		}
		out = append(out, scanScript(s.Text())...)
	})
	return out
}

func scanScript(text string) []model.Store {
	at := strings.Index(text, storesMarker)
	if at < 0 {
		return nil
	}

	payload, ok := BalancedObject(text, at)
	if !ok {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil
	}

	records := recordArrayOf([]byte(payload), obj)
	var out []model.Store
	for _, rec := range records {
		store := normalizeItem(rec)
		if store.Name != "" || store.Address != "" {
			out = append(out, store)
		}
	}
	return out
}

// recordArrayOf picks the record array out of a sliced payload: the
// well-known locations first, then a document-order search of the raw bytes.
func recordArrayOf(payload []byte, obj map[string]any) []map[string]any {
	if arr, ok := obj["stores"].([]any); ok {
		if recs := asRecords(arr); recs != nil {
			return recs
		}
	}
	if arr, ok := ResolvePath(obj, "page.items").([]any); ok {
		if recs := asRecords(arr); recs != nil {
			return recs
		}
	}
	return FirstRecordArray(payload)
}

// normalizeItem flattens one raw record to the Store shape, preferring
// nested address sub-fields over top-level ones.
func normalizeItem(rec map[string]any) model.Store {
	store := model.Store{
		Name: firstPath(rec, "name", "title", "storeName", "store_name"),
		Address: firstPath(rec,
			"address.streetAddress", "address.street", "address.address1", "address.line1",
			"address", "street", "address1"),
		City:       firstPath(rec, "address.city", "address.addressLocality", "address.locality", "city", "town"),
		State:      firstPath(rec, "address.state", "address.region", "address.addressRegion", "state", "region"),
		Country:    firstPath(rec, "address.country", "address.addressCountry", "country", "countryCode"),
		PostalCode: firstPath(rec, "address.postalCode", "address.zip", "postalCode", "postal_code", "zip", "postcode"),
		Phone:      firstPath(rec, "address.phone", "phone", "telephone", "phoneNumber", "phone_number"),
		Email:      firstPath(rec, "address.email", "email"),
		URL:        firstPath(rec, "url", "website", "link"),
		Source:     model.SourceInlineScript,
	}

	if lat := safeFloat(ResolvePath(rec, "position.lat")); lat != nil {
		store.Latitude = lat
		store.Longitude = safeFloat(ResolvePath(rec, "position.lng"))
	} else {
		store.Latitude = safeFloat(firstPresent(rec, "latitude", "lat"))
		store.Longitude = safeFloat(firstPresent(rec, "longitude", "lng", "lon"))
	}

	return store
}

// firstPath returns the first non-empty string among the given dotted
// paths.
func firstPath(rec map[string]any, paths ...string) string {
	for _, p := range paths {
		if v := PathString(rec, p); v != "" {
			return v
		}
	}
	return ""
}

func firstPresent(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

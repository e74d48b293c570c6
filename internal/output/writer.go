// Package output persists a run's record set to its output directory:
// stores.json with run metadata, stores.csv with a fixed column order, and
// stores.geojson for records carrying coordinates.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"storescout/internal/model"
)

// csvColumns is the stable CSV schema. Order matters: downstream consumers
// index by position.
var csvColumns = []string{
	"name", "address", "city", "state", "country", "postal_code",
	"latitude", "longitude", "phone", "email", "url", "source",
}

// RunDir creates the per-run directory out/<domain>/<timestamp>.
func RunDir(baseDir, targetURL string, now time.Time) (string, error) {
	domain := "unknown"
	if u, err := url.Parse(targetURL); err == nil && u.Hostname() != "" {
		domain = strings.TrimPrefix(u.Hostname(), "www.")
	}

	dir := filepath.Join(baseDir, domain, now.Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	return dir, nil
}

type document struct {
	Metadata model.Summary `json:"metadata"`
	Stores   []model.Store `json:"stores"`
}

// WriteJSON writes the metadata+stores document.
func WriteJSON(path string, summary model.Summary, stores []model.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Metadata: summary, Stores: stores}); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes the records with the fixed column order.
func WriteCSV(path string, stores []model.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return err
	}
	for _, s := range stores {
		row := []string{
			s.Name, s.Address, s.City, s.State, s.Country, s.PostalCode,
			formatCoord(s.Latitude), formatCoord(s.Longitude),
			s.Phone, s.Email, s.URL, s.Source,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteGeoJSON writes a FeatureCollection of the records that carry
// coordinates. Records without a coordinate pair are not representable as
// points and are left to the JSON/CSV outputs.
func WriteGeoJSON(path string, stores []model.Store) error {
	fc := geojson.NewFeatureCollection()
	for _, s := range stores {
		if !s.HasCoordinates() {
			continue
		}
		f := geojson.NewFeature(orb.Point{*s.Longitude, *s.Latitude})
		f.Properties["name"] = s.Name
		f.Properties["address"] = s.Address
		f.Properties["city"] = s.City
		f.Properties["country"] = s.Country
		f.Properties["source"] = s.Source
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"storescout/internal/model"
)

const defaultReverseURL = "https://nominatim.openstreetmap.org/reverse"

// Classifier decides whether a point is on land by reverse geocoding it: a
// center that resolves to no country is treated as open ocean. Results are
// cached per run so a step size probes each center at most once.
type Classifier struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	cache map[string]bool
}

// NewClassifier uses the OSM Nominatim reverse endpoint. baseURL overrides
// it for tests; pass "" for the default.
func NewClassifier(baseURL string, timeout time.Duration) *Classifier {
	if baseURL == "" {
		baseURL = defaultReverseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cache:   make(map[string]bool),
	}
}

type reverseResult struct {
	Address struct {
		CountryCode string `json:"country_code"`
	} `json:"address"`
	Error string `json:"error"`
}

// IsLand reports whether the point reverse geocodes to a country.
func (c *Classifier) IsLand(ctx context.Context, lat, lng float64) (bool, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lng)
	c.mu.Lock()
	if v, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	u := c.baseURL + "?" + url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', 6, 64)},
		"format": {"json"},
		"zoom":   {"3"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "storescout/0.1 (store locator pipeline)")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("reverse geocoding failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("reverse geocoding returned status %d", resp.StatusCode)
	}

	var result reverseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decoding reverse geocoding response: %w", err)
	}

	land := result.Error == "" && result.Address.CountryCode != ""

	c.mu.Lock()
	c.cache[key] = land
	c.mu.Unlock()
	return land, nil
}

// FilterLandCells drops cells whose center is open ocean. Classification
// failures keep the cell: probing a wasted cell is cheaper than skipping a
// covered one.
func FilterLandCells(ctx context.Context, cells []model.Cell, classifier *Classifier) []model.Cell {
	var land []model.Cell
	for _, cell := range cells {
		isLand, err := classifier.IsLand(ctx, cell.CenterLat, cell.CenterLng)
		if err != nil || isLand {
			land = append(land, cell)
		}
	}
	return land
}

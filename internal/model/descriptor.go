package model

// Pattern is the selector bundle inferred by the pattern oracle for one
// document snapshot. Every field is optional and untrusted: selectors may be
// empty, syntactically invalid, or plain wrong. Consumers resolve them
// fail-soft, never propagating selector faults.
type Pattern struct {
	ItemSelector          string            `json:"itemSelector"`
	Fields                map[string]string `json:"fields"`
	Pagination            Pagination        `json:"pagination"`
	ShowMoreSelector      string            `json:"showMoreSelector"`
	SearchInputSelector   string            `json:"searchInputSelector"`
	SearchButtonSelector  string            `json:"searchButtonSelector"`
	InitialButtonSelector string            `json:"initialButtonSelector"`
}

// Pagination describes how a document exposes further result pages.
type Pagination struct {
	Type         string `json:"type"` // "next-link", "load-more", "none"
	NextSelector string `json:"nextSelector"`
}

// APIDescriptor describes a discovered coordinate-based backing API.
// Immutable once detected.
type APIDescriptor struct {
	HasCoordinateAPI bool   `json:"hasCoordinateAPI"`
	APITemplate      string `json:"apiTemplate"`
	SearchType       string `json:"searchType"` // "radius" or "bbox"
	DistanceUnit     string `json:"distanceUnit"`
}

// FieldMapping maps canonical store fields to dotted paths into a sample API
// record. An empty path means the field is absent from the API's shape.
// Inferred once per API target and reused for every sweep response.
type FieldMapping map[string]string

// Cell is one latitude/longitude rectangle of the sweep grid. Cells are
// immutable once generated and consumed in generation order.
type Cell struct {
	SWLat        float64
	SWLng        float64
	NELat        float64
	NELng        float64
	CenterLat    float64
	CenterLng    float64
	RadiusMeters float64
	RadiusKm     float64
}

// NetworkResponse is one observed HTTP response, fed to the API-descriptor
// oracle. ContentPreview is size-capped by the producer.
type NetworkResponse struct {
	URL            string `json:"url"`
	ContentPreview string `json:"contentPreview"`
}

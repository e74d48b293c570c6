package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"storescout/internal/model"
)

// Input size caps. Oversized samples burn tokens without improving the
// answer, so content is truncated before it leaves the process.
const (
	maxSampleHTML     = 40000
	maxResponsePairs  = 10
	maxPreviewPerPair = 1500
)

var ErrNoOracle = errors.New("oracle: no endpoint configured")

// Client talks to an OpenAI-compatible chat completion endpoint and
// implements all three oracles. A Client with an empty endpoint is valid
// and fails every call with ErrNoOracle, which callers treat as "use the
// fallback".
type Client struct {
	http  *resty.Client
	model string
}

type Options struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		return &Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(opts.Endpoint)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}

	return &Client{http: client, model: opts.Model}
}

func (c *Client) DetectPattern(ctx context.Context, html string) (model.Pattern, error) {
	if len(html) > maxSampleHTML {
		html = html[:maxSampleHTML]
	}

	answer, err := c.complete(ctx, patternPrompt, html)
	if err != nil {
		return model.Pattern{}, err
	}

	var pattern model.Pattern
	if err := json.Unmarshal([]byte(ExtractJSONBlock(answer)), &pattern); err != nil {
		return model.Pattern{}, fmt.Errorf("parsing pattern answer: %w", err)
	}
	return pattern, nil
}

func (c *Client) DetectAPI(ctx context.Context, responses []model.NetworkResponse) (model.APIDescriptor, error) {
	if len(responses) > maxResponsePairs {
		responses = responses[len(responses)-maxResponsePairs:]
	}
	capped := make([]model.NetworkResponse, len(responses))
	for i, r := range responses {
		if len(r.ContentPreview) > maxPreviewPerPair {
			r.ContentPreview = r.ContentPreview[:maxPreviewPerPair]
		}
		capped[i] = r
	}

	payload, err := json.Marshal(capped)
	if err != nil {
		return model.APIDescriptor{}, err
	}

	answer, err := c.complete(ctx, apiPrompt, string(payload))
	if err != nil {
		return model.APIDescriptor{}, err
	}

	var desc model.APIDescriptor
	if err := json.Unmarshal([]byte(ExtractJSONBlock(answer)), &desc); err != nil {
		return model.APIDescriptor{}, fmt.Errorf("parsing api answer: %w", err)
	}
	return desc, nil
}

func (c *Client) InferMapping(ctx context.Context, sample map[string]any) (model.FieldMapping, error) {
	payload, err := json.Marshal(sample)
	if err != nil {
		return nil, err
	}
	if len(payload) > maxSampleHTML {
		return nil, fmt.Errorf("sample record too large (%d bytes)", len(payload))
	}

	answer, err := c.complete(ctx, mappingPrompt, string(payload))
	if err != nil {
		return nil, err
	}

	// null paths mean "field absent"; normalize them away so consumers
	// only see usable paths.
	var raw map[string]*string
	if err := json.Unmarshal([]byte(ExtractJSONBlock(answer)), &raw); err != nil {
		return nil, fmt.Errorf("parsing mapping answer: %w", err)
	}
	mapping := make(model.FieldMapping, len(raw))
	for field, path := range raw {
		if path != nil && *path != "" {
			mapping[field] = *path
		}
	}
	return mapping, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.http == nil {
		return "", ErrNoOracle
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", errors.New("oracle returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

const patternPrompt = `You analyze HTML from retailer store-locator pages.
Reply with a single JSON object:
{"itemSelector": "<css selector matching each repeated store container>",
 "fields": {"name": "<selector or selector@attr>", "address": "...", "city": "...",
            "state": "...", "country": "...", "postal_code": "...", "phone": "...",
            "email": "...", "url": "..."},
 "pagination": {"type": "next-link|load-more|none", "nextSelector": ""},
 "showMoreSelector": "", "searchInputSelector": "", "searchButtonSelector": "",
 "initialButtonSelector": ""}
Omit fields you cannot find by leaving them empty. Reply with JSON only.`

const apiPrompt = `You are given a JSON list of {url, contentPreview} pairs observed while
loading a store-locator page. Decide whether one of them is a coordinate-based
store API. Reply with a single JSON object:
{"hasCoordinateAPI": true|false,
 "apiTemplate": "<url with {{latitude}} {{longitude}} {{distance}} or {{sw_lat}} {{sw_lng}} {{ne_lat}} {{ne_lng}} placeholders>",
 "searchType": "radius|bbox", "distanceUnit": "km|mi|m"}
If no such API exists reply {"hasCoordinateAPI": false}. Reply with JSON only.`

const mappingPrompt = `You are given one sample store record from an API response. Map each
canonical field to a dotted path into the record, or null when absent.
Reply with a single JSON object with exactly these keys:
{"name": ..., "address": ..., "city": ..., "state": ..., "country": ...,
 "postal_code": ..., "latitude": ..., "longitude": ..., "phone": ...,
 "email": ..., "url": ...}
Reply with JSON only.`

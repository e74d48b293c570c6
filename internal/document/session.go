package document

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"storescout/internal/fetch"
	"storescout/internal/model"
)

// previewCap bounds the content preview captured per observed response
// before it is handed to the API-descriptor oracle.
const previewCap = 2048

// maxFrames bounds how many attached sub-documents a session will fetch.
const maxFrames = 8

// Session owns navigation and the current set of document contexts. The
// static implementation below fetches over HTTP; live browser sessions
// implement the same interface.
type Session interface {
	// Navigate loads a target. The session's contexts are replaced.
	Navigate(ctx context.Context, url string) error
	// Location is the URL the session actually landed on.
	Location() string
	// Main returns the primary document context.
	Main() Context
	// Frames returns the attached sub-document contexts. Callers must not
	// hold the returned slice across navigations.
	Frames(ctx context.Context) []Context
	// Responses returns the network responses observed so far, oldest
	// first, for API discovery.
	Responses() []model.NetworkResponse
}

// StaticSession implements Session over plain HTTP fetches. It cannot run
// scripts, so interactive operations on its contexts report
// ErrNotInteractive and the pipeline degrades to non-interactive sources.
type StaticSession struct {
	client *fetch.Client

	mu        sync.Mutex
	location  string
	main      *StaticContext
	frames    []Context
	responses []model.NetworkResponse
}

func NewStaticSession(client *fetch.Client) *StaticSession {
	return &StaticSession{client: client}
}

func (s *StaticSession) Navigate(ctx context.Context, target string) error {
	resp, err := s.client.Get(ctx, target)
	if err != nil {
		return fmt.Errorf("loading %s: %w", target, err)
	}

	main, err := Parse("main", resp.Body, resp.ContentType)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", target, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = resp.FinalURL
	s.main = main
	s.frames = nil
	s.record(resp.FinalURL, resp.Body)
	return nil
}

func (s *StaticSession) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

func (s *StaticSession) Main() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.main == nil {
		return nil
	}
	return s.main
}

// Frames fetches each iframe with a resolvable src, once per navigation.
func (s *StaticSession) Frames(ctx context.Context) []Context {
	s.mu.Lock()
	main := s.main
	cached := s.frames
	base := s.location
	s.mu.Unlock()

	if main == nil {
		return nil
	}
	if cached != nil {
		return cached
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var srcs []string
	main.Document().Find("iframe[src]").Each(func(_ int, iframe *goquery.Selection) {
		src := strings.TrimSpace(iframe.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "about:") || strings.HasPrefix(src, "javascript:") {
			return
		}
		srcs = append(srcs, src)
	})

	var frames []Context
	for i, src := range srcs {
		if len(frames) >= maxFrames {
			break
		}
		ref, err := url.Parse(src)
		if err != nil {
			continue
		}
		frameURL := baseURL.ResolveReference(ref).String()

		resp, err := s.client.Get(ctx, frameURL)
		if err != nil {
			continue
		}
		fc, err := Parse(fmt.Sprintf("frame[%d]", i), resp.Body, resp.ContentType)
		if err != nil {
			continue
		}
		frames = append(frames, fc)

		s.mu.Lock()
		s.record(frameURL, resp.Body)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.frames = frames
	s.mu.Unlock()
	return frames
}

func (s *StaticSession) Responses() []model.NetworkResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NetworkResponse, len(s.responses))
	copy(out, s.responses)
	return out
}

// record must be called with s.mu held.
func (s *StaticSession) record(url string, body []byte) {
	preview := body
	if len(preview) > previewCap {
		preview = preview[:previewCap]
	}
	s.responses = append(s.responses, model.NetworkResponse{
		URL:            url,
		ContentPreview: string(preview),
	})
}

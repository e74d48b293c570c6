// Package document models the surface a run extracts from. A Context is one
// queryable document (the main page or an attached sub-document); a Session
// owns navigation and the set of contexts. The static implementations here
// work on fetched HTML; live browser-backed implementations satisfy the same
// interfaces and are supplied by the caller.
package document

import (
	"errors"
	"time"
)

var ErrNotInteractive = errors.New("document: static context is not interactive")

// Element is a single queryable node. Selector faults resolve to empty
// results: selectors come from an external oracle and are untrusted.
type Element interface {
	// Select returns all descendants matching a CSS selector. An invalid
	// selector yields nil, never an error.
	Select(selector string) []Element
	// Text returns the trimmed text content of the node.
	Text() string
	// Attr returns the named attribute and whether it exists.
	Attr(name string) (string, bool)
}

// Context is one document surface. All operations fail soft except the
// interactive ones, which report ErrNotInteractive on static contexts.
type Context interface {
	// Name identifies the context for logging ("main", "frame[0]", ...).
	Name() string
	// Live reports whether the context is browser-backed.
	Live() bool
	// Root returns the document root element.
	Root() (Element, error)
	// Content returns the serialized HTML of the document.
	Content() (string, error)

	// Evaluate runs an expression inside the context and returns its
	// string result.
	Evaluate(expr string) (string, error)
	// WaitFor blocks until a selector matches or the timeout elapses.
	WaitFor(selector string, timeout time.Duration) bool
	// Click clicks the first node matching the selector.
	Click(selector string) error
	// Type fills the first node matching the selector with text.
	Type(selector, text string) error
	// ScrollIntoView scrolls the first matching node into the viewport.
	ScrollIntoView(selector string) error
}

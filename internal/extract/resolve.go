// Package extract turns raw document and API signals into candidate store
// records. Every entry point is a pure function over its input and fails
// soft: selectors and paths come from an external oracle and are treated as
// untrusted, so resolution errors yield empty values, never faults.
package extract

import (
	"strings"

	"storescout/internal/document"
)

// ResolveField resolves a field descriptor against an element.
//
// A descriptor of the form "selector@attr" resolves the sub-selector first
// (the element itself when the sub-selector is empty) and reads the named
// attribute. Without the marker the descriptor is a text lookup within the
// element. Any failure along the way yields "".
func ResolveField(el document.Element, descriptor string) string {
	descriptor = strings.TrimSpace(descriptor)
	if el == nil || descriptor == "" {
		return ""
	}

	if at := strings.LastIndex(descriptor, "@"); at >= 0 {
		selector := strings.TrimSpace(descriptor[:at])
		attr := strings.TrimSpace(descriptor[at+1:])
		if attr == "" {
			return ""
		}

		target := el
		if selector != "" {
			matched := el.Select(selector)
			if len(matched) == 0 {
				return ""
			}
			target = matched[0]
		}
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}

	matched := el.Select(descriptor)
	if len(matched) == 0 {
		return ""
	}
	return matched[0].Text()
}

// ResolvePath walks a dotted path through nested maps. The walk stops and
// returns nil as soon as any intermediate value is missing or is not an
// object.
func ResolvePath(obj any, path string) any {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	current := obj
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return current
}

// PathString resolves a dotted path to a trimmed string, "" when absent or
// not scalar.
func PathString(obj any, path string) string {
	return safeString(ResolvePath(obj, path))
}

// PathFloat resolves a dotted path to a float, nil when the value is
// absent or not coercible to a number.
func PathFloat(obj any, path string) *float64 {
	return safeFloat(ResolvePath(obj, path))
}

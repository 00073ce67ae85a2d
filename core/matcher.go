package core

import "strings"

// NameMatcher determines whether a handler pattern matches a handler name.
type NameMatcher interface {
	Match(pattern string, name string) bool
}

// DefaultMatcher matches dot separated handler names. It supports exact
// segments, a single-segment wildcard (*) and a multi-segment wildcard (#)
// that also matches zero segments.
//
//	"reports.daily"  matches "reports.daily"
//	"reports.*"      matches "reports.daily", not "reports.eu.daily"
//	"billing.#"      matches "billing.eu.invoice" and "billing"
type DefaultMatcher struct{}

func (DefaultMatcher) Match(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(name, "."))
}

func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	switch pat[0] {
	case "#":
		for skip := 0; skip <= len(name); skip++ {
			if matchSegments(pat[1:], name[skip:]) {
				return true
			}
		}
		return false
	case "*":
		return len(name) > 0 && matchSegments(pat[1:], name[1:])
	default:
		return len(name) > 0 && pat[0] == name[0] && matchSegments(pat[1:], name[1:])
	}
}

// Package access evaluates whether a role may enter a page. Rules are a
// typed (role, pattern, matcher) list compiled from the static role table,
// evaluated in order, so the wildcard/template conventions are explicit
// instead of string conventions.
package access

import "strings"

// MatcherKind selects how a pattern is compared against a path.
type MatcherKind int

const (
	// MatchExact compares the whole path literally.
	MatchExact MatcherKind = iota
	// MatchTemplate compares segment by segment; a ":name" segment
	// matches exactly one concrete segment.
	MatchTemplate
	// MatchWildcard matches every path.
	MatchWildcard
)

// Rule grants one role access to the paths its pattern matches.
type Rule struct {
	Role    string
	Pattern string
	Kind    MatcherKind
}

// pageTable is the static role to allowed-pages configuration. "*" means
// unrestricted; ":id" segments match any single path segment.
var pageTable = map[string][]string{
	"manager_specified": {
		"/special-student-list",
		"/student-create",
		"/student-detail/:id",
		"/unauthorized",
	},
	"manager_general": {
		"/student-list",
		"/student-create",
		"/student-detail/:id",
		"/billing",
		"/building-list",
		"/building-create",
		"/building-detail/:id",
		"/room-create",
		"/room-detail/:id",
		"/unauthorized",
	},
	"admin": {
		"*",
	},
	"manager": {
		"/chat",
		"/unauthorized",
	},
	"user": {
		"/chat",
		"/student-list",
		"/student-detail/:id",
		"/billing",
		"/unauthorized",
	},
	"mishima_user": {
		"/dashboard",
		"/chat",
		"/care-dashboard",
		"/elderly-building-list",
		"/building-create",
		"/building-detail/:id",
		"/elderly-list",
		"/elderly-create",
		"/elderly-contact",
		"/elderly-detail/:id",
		"/care-facility-meal-record",
	},
	"care_user": {
		"/care-dashboard",
		"/elderly-list",
		"/elderly-create",
		"/elderly-contact",
		"/care-facility-meal-record",
		"/elderly-detail/:id",
		"/unauthorized",
	},
}

// Engine evaluates compiled access rules.
type Engine struct {
	rules map[string][]Rule
}

// NewEngine compiles a role table into an Engine. Patterns are classified
// once at compile time: "*" is a wildcard, anything containing a ":"
// segment is a template, the rest are exact.
func NewEngine(table map[string][]string) *Engine {
	e := &Engine{rules: make(map[string][]Rule, len(table))}
	for role, patterns := range table {
		rules := make([]Rule, 0, len(patterns))
		for _, p := range patterns {
			rules = append(rules, Rule{Role: role, Pattern: stripQuery(p), Kind: classify(p)})
		}
		e.rules[role] = rules
	}
	return e
}

// DefaultEngine evaluates the built-in role table.
var DefaultEngine = NewEngine(pageTable)

// Allowed reports whether the role may enter the path. A role without a
// rule set is denied. Never raises.
func (e *Engine) Allowed(role, path string) bool {
	rules, ok := e.rules[role]
	if !ok {
		return false
	}
	path = stripQuery(path)
	for _, r := range rules {
		if r.matches(path) {
			return true
		}
	}
	return false
}

// CanAccessPage evaluates the built-in role table.
func CanAccessPage(role, path string) bool {
	return DefaultEngine.Allowed(role, path)
}

func (r Rule) matches(path string) bool {
	switch r.Kind {
	case MatchWildcard:
		return true
	case MatchExact:
		return path == r.Pattern
	case MatchTemplate:
		return matchTemplate(r.Pattern, path)
	}
	return false
}

func matchTemplate(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")
	if len(patternParts) != len(pathParts) {
		return false
	}
	for i, part := range patternParts {
		if strings.HasPrefix(part, ":") {
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}

func classify(pattern string) MatcherKind {
	switch {
	case pattern == "*":
		return MatchWildcard
	case strings.Contains(pattern, "/:"):
		return MatchTemplate
	default:
		return MatchExact
	}
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

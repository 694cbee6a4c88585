// internal/pipeline/routes.go
//
// Declarative route classification.
//
// Context
// -------
// Which requests skip resolution, which need a signed-in user, and which
// must bounce a signed-in user back to the dashboard is decided by path
// prefix alone.  RouteTable holds those prefixes as data and answers with a
// RouteCategory, so the pipeline's control flow never embeds path lists.
//
// Matching
// --------
//   - The longest matching prefix wins.
//   - A prefix ending in "/" matches anything below it.  Any other prefix
//     matches the exact path or the path followed by "/", so "/sites" covers
//     "/sites/123" but not "/sitemap.xml".
//   - Unmatched paths are RoutePublic.
package pipeline

import (
	"sort"
	"strings"

	"github.com/yanizio/blooms/internal/config"
)

// RouteCategory classifies a request path.
type RouteCategory int

const (
	RoutePublic RouteCategory = iota
	RouteBypass
	RouteAdmin
	RouteAuth
	RouteProtected
)

func (c RouteCategory) String() string {
	switch c {
	case RouteBypass:
		return "bypass"
	case RouteAdmin:
		return "admin"
	case RouteAuth:
		return "auth"
	case RouteProtected:
		return "protected"
	default:
		return "public"
	}
}

// RouteRule maps one path prefix to a category.
type RouteRule struct {
	Prefix   string
	Category RouteCategory
}

// RouteTable is immutable after construction.
type RouteTable struct {
	rules []RouteRule // longest prefix first
}

// NewRouteTable builds a table from rules.  Empty prefixes are ignored.
// When two rules share a prefix the later one wins.
func NewRouteTable(rules ...RouteRule) *RouteTable {
	byPrefix := make(map[string]RouteCategory, len(rules))
	for _, r := range rules {
		if r.Prefix == "" {
			continue
		}
		byPrefix[r.Prefix] = r.Category
	}
	t := &RouteTable{rules: make([]RouteRule, 0, len(byPrefix))}
	for p, c := range byPrefix {
		t.rules = append(t.rules, RouteRule{Prefix: p, Category: c})
	}
	sort.Slice(t.rules, func(i, j int) bool {
		if len(t.rules[i].Prefix) != len(t.rules[j].Prefix) {
			return len(t.rules[i].Prefix) > len(t.rules[j].Prefix)
		}
		return t.rules[i].Prefix < t.rules[j].Prefix
	})
	return t
}

// RoutesFromConfig converts the routes config section into rules.
func RoutesFromConfig(c config.Routes) []RouteRule {
	var rules []RouteRule
	for _, p := range c.Bypass {
		rules = append(rules, RouteRule{Prefix: p, Category: RouteBypass})
	}
	for _, p := range c.Auth {
		rules = append(rules, RouteRule{Prefix: p, Category: RouteAuth})
	}
	for _, p := range c.Protected {
		rules = append(rules, RouteRule{Prefix: p, Category: RouteProtected})
	}
	if c.AdminPrefix != "" {
		rules = append(rules, RouteRule{Prefix: c.AdminPrefix, Category: RouteAdmin})
	}
	return rules
}

// Classify returns the category for path.
func (t *RouteTable) Classify(path string) RouteCategory {
	if path == "" {
		path = "/"
	}
	for _, r := range t.rules {
		if matchPrefix(path, r.Prefix) {
			return r.Category
		}
	}
	return RoutePublic
}

func matchPrefix(path, prefix string) bool {
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

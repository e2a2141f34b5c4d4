package binding

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var segmentRe = regexp.MustCompile(`^[a-z0-9-_]+$`)

// SanitizePath normalises a URL path into a binding scope: query and
// fragment dropped, leading slash removed, and only lower-case
// [a-z0-9-_] segments kept. "/Docs/intro/?x=1" becomes "intro".
func SanitizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	var keep []string
	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if segmentRe.MatchString(seg) {
			keep = append(keep, seg)
		}
	}
	return strings.Join(keep, "/")
}

// SplitURL returns the domain and sanitised path of a page URL.
func SplitURL(raw string) (domain, path string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("binding: parse url: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("binding: url %q has no host", raw)
	}
	return u.Host, SanitizePath(u.Path), nil
}

// Join returns the domain-qualified form of a path.
func Join(domain, path string) string {
	return domain + "/" + path
}

// MatchStart reports whether pattern encloses current: equal, or a
// segment-wise prefix. The empty pattern encloses every path.
func MatchStart(pattern, current string) bool {
	if pattern == "" || pattern == current {
		return true
	}
	return strings.HasPrefix(current, pattern+"/")
}

// Enclosing returns the bindings of domain whose path encloses path and is
// not in disabled (a set of domain-qualified paths).
func Enclosing(bs []*Binding, domain, path string, disabled map[string]bool) []*Binding {
	var out []*Binding
	for _, b := range bs {
		if b.Domain != domain || !MatchStart(b.Path, path) {
			continue
		}
		if disabled[b.Scope()] {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ByScope groups bindings by domain, then by path.
func ByScope(bs []*Binding) map[string]map[string][]*Binding {
	out := make(map[string]map[string][]*Binding)
	for _, b := range bs {
		paths, ok := out[b.Domain]
		if !ok {
			paths = make(map[string][]*Binding)
			out[b.Domain] = paths
		}
		paths[b.Path] = append(paths[b.Path], b)
	}
	return out
}

// Domains returns the sorted domain keys of a ByScope map.
func Domains(m map[string]map[string][]*Binding) []string {
	out := make([]string, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

package types

import "strings"

// NormalizePath canonicalizes an endpoint path for comparison:
// lowercase, duplicate slashes collapsed, trailing slash stripped.
// The function is idempotent.
func NormalizePath(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// PathSegments splits a normalized path into its non-empty segments.
func PathSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(NormalizePath(p), "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

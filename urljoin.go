package proxy

import "strings"

// urlJoin concatenates non-empty path segments with a single slash,
// collapsing runs of slashes to one, while leaving the query string of the
// last segment untouched. It preserves a leading scheme double-slash
// ("http://", "https://") so joining a full target path segment never loses
// its "//" after the scheme.
//
// Examples (spec.md §8, invariant 3):
//
//	urlJoin("", "x")          == "x"
//	urlJoin("http://a", "/b") == "http://a/b"
func urlJoin(segments ...string) string {
	nonEmpty := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}

	// Split the query string off the last segment so it rides through
	// untouched; the join logic below only ever edits path characters.
	last := nonEmpty[len(nonEmpty)-1]
	query := ""
	if idx := strings.Index(last, "?"); idx >= 0 {
		query = last[idx:]
		nonEmpty[len(nonEmpty)-1] = last[:idx]
	}

	joined := strings.Join(nonEmpty, "/")

	// Collapse runs of slashes to one, except the scheme's "://".
	schemeIdx := strings.Index(joined, "://")
	var head, body string
	if schemeIdx >= 0 {
		head = joined[:schemeIdx+3]
		body = joined[schemeIdx+3:]
	} else {
		body = joined
	}

	collapsed := collapseSlashes(body)
	return head + collapsed + query
}

func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSlash := false
	for _, r := range s {
		if r == '/' {
			if lastSlash {
				continue
			}
			lastSlash = true
		} else {
			lastSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

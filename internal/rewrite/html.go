package rewrite

import (
	"strings"

	"golang.org/x/net/html"

	"origin-proxy-go/internal/proxyurl"
)

// urlAttrs names, per tag, the attributes expected to carry a URL.
var urlAttrs = map[string][]string{
	"a":      {"href"},
	"img":    {"src"},
	"link":   {"href"},
	"script": {"src"},
	"form":   {"action"},
	"base":   {"href"},
}

// RewriteDocument streams doc through the element visitor, re-encoding every
// URL-bearing attribute into the proxy namespace, and returns the rewritten
// markup with the number of references changed. References that do not
// resolve, or that carry non-web schemes, pass through unchanged; a single
// bad link never fails the page.
func RewriteDocument(doc []byte, target proxyurl.Target) ([]byte, int) {
	rewritten := 0
	v := NewVisitor()

	for tag, names := range urlAttrs {
		names := names
		v.OnElement(tag, func(attrs []html.Attribute) ([]html.Attribute, bool) {
			changed := false
			for i, a := range attrs {
				for _, want := range names {
					if a.Key != want {
						continue
					}
					if repl := target.RewriteReference(a.Val); repl != a.Val {
						attrs[i].Val = repl
						rewritten++
						changed = true
					}
				}
			}
			return attrs, changed
		})
	}

	v.OnElement("meta", func(attrs []html.Attribute) ([]html.Attribute, bool) {
		if !isRefreshDirective(attrs) {
			return attrs, false
		}
		for i, a := range attrs {
			if a.Key != "content" {
				continue
			}
			if repl, ok := rewriteRefresh(a.Val, target); ok {
				attrs[i].Val = repl
				rewritten++
				return attrs, true
			}
		}
		return attrs, false
	})

	return v.Run(doc), rewritten
}

func isRefreshDirective(attrs []html.Attribute) bool {
	for _, a := range attrs {
		if a.Key == "http-equiv" && strings.EqualFold(a.Val, "refresh") {
			return true
		}
	}
	return false
}

// rewriteRefresh rebuilds a "<seconds>;url=<url>" refresh directive as
// "<seconds>; url=<rewritten>". Any other shape of the directive is left
// untouched; this is a lenient rewrite pass, not a validation layer.
func rewriteRefresh(content string, target proxyurl.Target) (string, bool) {
	parts := strings.Split(content, ";")
	if len(parts) != 2 {
		return "", false
	}
	rest := strings.TrimSpace(parts[1])
	if len(rest) < 4 || !strings.EqualFold(rest[:4], "url=") {
		return "", false
	}
	return strings.TrimSpace(parts[0]) + "; url=" + target.RewriteReference(rest[4:]), true
}

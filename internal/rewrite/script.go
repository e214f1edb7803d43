package rewrite

import (
	"regexp"
	"strings"

	"origin-proxy-go/internal/proxyurl"
)

// The inline patcher is deliberately a narrow text pass, not a script parser:
// it matches a fixed set of navigation call shapes whose argument is a
// single- or double-quoted string literal. Computed, concatenated, and
// template-literal URLs fall through untouched; dynamic navigation is caught
// at runtime by the injected spoof script instead.

// navShapes are the call shapes whose literal argument gets re-encoded.
var navShapes = []string{
	`window\.location\s*=\s*`,
	`window\.location\.href\s*=\s*`,
	`document\.location\s*=\s*`,
	`window\.open\(\s*`,
}

var (
	absolutePatterns = compileNavPatterns(`https?://[^'"]+`)
	relativePatterns = compileNavPatterns(`/(?:[^/'"][^'"]*)?`)
)

func compileNavPatterns(literal string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(navShapes))
	for i, shape := range navShapes {
		patterns[i] = regexp.MustCompile(`(` + shape + `)(['"])(` + literal + `)(['"])`)
	}
	return patterns
}

// PatchInlineScripts rewrites quoted navigation literals in the document
// text. Absolute http(s) literals become <proxyOrigin>/proxy/<encoded>;
// root-relative literals resolve against the target origin first. Returns
// the patched text and the number of literals rewritten.
func PatchInlineScripts(doc string, target proxyurl.Target, proxyOrigin string) (string, int) {
	patched := 0

	replace := func(patterns []*regexp.Regexp, resolve func(string) string) {
		for _, re := range patterns {
			doc = re.ReplaceAllStringFunc(doc, func(match string) string {
				m := re.FindStringSubmatch(match)
				if m == nil || containsProxyPath(m[3]) {
					return match
				}
				patched++
				return m[1] + m[2] + proxyOrigin + proxyurl.Encode(resolve(m[3])) + m[4]
			})
		}
	}

	replace(absolutePatterns, func(lit string) string { return lit })
	replace(relativePatterns, func(lit string) string { return target.Origin() + lit })

	return doc, patched
}

// containsProxyPath reports whether the literal already points into the
// proxy namespace; such literals are left alone so a page proxied twice is
// not double-encoded.
func containsProxyPath(lit string) bool {
	return strings.HasPrefix(lit, proxyurl.PathPrefix)
}

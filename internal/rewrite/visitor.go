package rewrite

import (
	"bytes"

	"golang.org/x/net/html"
)

// ElementFunc is invoked once per matched element with its attribute list.
// It returns the (possibly modified) attributes and whether anything changed;
// when nothing changed the element's original bytes pass through untouched.
type ElementFunc func(attrs []html.Attribute) ([]html.Attribute, bool)

// Visitor streams HTML through per-tag callbacks. It walks the markup with a
// tokenizer rather than materializing a DOM, so memory stays bounded on large
// pages and malformed markup flows through instead of failing the render.
type Visitor struct {
	handlers map[string]ElementFunc
}

// NewVisitor creates an empty Visitor.
func NewVisitor() *Visitor {
	return &Visitor{handlers: make(map[string]ElementFunc)}
}

// OnElement registers fn for every start or self-closing tag named tag.
// Tag names are matched lowercase, as the tokenizer reports them.
func (v *Visitor) OnElement(tag string, fn ElementFunc) {
	v.handlers[tag] = fn
}

// Run streams src through the registered callbacks and returns the result.
// Tokens without a registered handler are copied out byte for byte.
func (v *Visitor) Run(src []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(src))
	var out bytes.Buffer
	out.Grow(len(src))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// End of input. Raw() holds any bytes the tokenizer could not
			// form into a token, such as a truncated tag at the end of the
			// document; they pass through rather than being dropped.
			out.Write(z.Raw())
			return out.Bytes()
		}

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(z.Raw())
			continue
		}

		// Token() rewrites the tokenizer's buffer in place (lowercasing,
		// entity unescaping), so the original bytes must be copied first.
		orig := append([]byte(nil), z.Raw()...)

		tok := z.Token()
		fn := v.handlers[tok.Data]
		if fn == nil || len(tok.Attr) == 0 {
			out.Write(orig)
			continue
		}

		attrs, changed := fn(tok.Attr)
		if !changed {
			out.Write(orig)
			continue
		}
		writeTag(&out, tok.Data, attrs, tt == html.SelfClosingTagToken)
	}
}

// writeTag renders a start tag with the given attributes.
func writeTag(out *bytes.Buffer, name string, attrs []html.Attribute, selfClosing bool) {
	out.WriteByte('<')
	out.WriteString(name)
	for _, a := range attrs {
		out.WriteByte(' ')
		out.WriteString(a.Key)
		out.WriteString(`="`)
		out.WriteString(html.EscapeString(a.Val))
		out.WriteByte('"')
	}
	if selfClosing {
		out.WriteString("/>")
	} else {
		out.WriteByte('>')
	}
}

// Package encoding holds text escaping helpers for the hand-rolled
// MusicXML writer.
package encoding

import "strings"

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"\n", "&#10;",
		"\t", "&#9;",
	)
)

// EscapeXMLText escapes element text content.
func EscapeXMLText(s string) string {
	return textEscaper.Replace(s)
}

// EscapeXMLAttr escapes text for a double-quoted attribute value.
// Newlines and tabs become character references so they survive
// attribute-value normalization on re-parse.
func EscapeXMLAttr(s string) string {
	return attrEscaper.Replace(s)
}

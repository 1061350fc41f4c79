// Package encoding provides shared text escaping utilities.
package encoding

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// EscapeXML escapes s with the standard library's xml.EscapeText, which
// also turns tabs and line breaks into character references.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

var textReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#13;",
)

// EscapeXMLText escapes text content. Newlines and tabs stay literal;
// carriage returns become references so XML line-end normalization
// does not drop them.
func EscapeXMLText(s string) string {
	return textReplacer.Replace(s)
}

var attrReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\t", "&#9;",
	"\n", "&#10;",
	"\r", "&#13;",
)

// EscapeXMLAttr escapes text for a double-quoted attribute value.
// Whitespace other than space is referenced to survive attribute
// value normalization.
func EscapeXMLAttr(s string) string {
	return attrReplacer.Replace(s)
}

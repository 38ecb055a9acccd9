package booklookup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	whitespaceRegex = regexp.MustCompile(`[\s\p{Zs}]+`)
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
)

// plainText reduces an HTML description to whitespace-collapsed text.
func plainText(s string) string {
	if s == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		s = html.UnescapeString(tagRegex.ReplaceAllString(s, " "))
		return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
	}

	var buf strings.Builder
	writeText(doc, &buf)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(buf.String(), " "))
}

func writeText(n *html.Node, buf *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(n.Data)
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
		if isBlock(n.Data) {
			buf.WriteByte(' ')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, buf)
	}

	if n.Type == html.ElementNode && isBlock(n.Data) {
		buf.WriteByte(' ')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
		return true
	}
	return false
}

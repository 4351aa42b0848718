package plugins

import (
	"strings"

	"golang.org/x/net/html"
)

// plainText flattens regulation markup into readable text. Input without
// markup comes back with its whitespace collapsed.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return collapseSpace(s)
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	var sb strings.Builder
	extractText(doc, &sb, 0)
	return collapseSpace(sb.String())
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 50 {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "nav", "footer", "header":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

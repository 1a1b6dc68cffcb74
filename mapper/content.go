package mapper

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// richNode is one node of a rich-text editor document ({"type":"doc","content":[...]}).
type richNode struct {
	Type    string     `json:"type"`
	Text    string     `json:"text"`
	Content []richNode `json:"content"`
}

var richBlockTypes = map[string]bool{
	"paragraph": true, "heading": true, "blockquote": true, "codeBlock": true,
	"listItem": true, "bulletList": true, "orderedList": true, "hardBreak": true,
}

// PlainText flattens a post body stored as rich-text JSON, HTML or plain text.
func PlainText(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "{") {
		var doc richNode
		if err := json.Unmarshal([]byte(trimmed), &doc); err == nil && doc.Type == "doc" {
			var b strings.Builder
			flattenRich(&b, doc)
			return collapseSpace(b.String())
		}
	}
	if strings.Contains(trimmed, "<") && strings.Contains(trimmed, ">") {
		if text, ok := htmlText(trimmed); ok {
			return text
		}
	}
	return collapseSpace(trimmed)
}

func flattenRich(b *strings.Builder, n richNode) {
	if n.Text != "" {
		b.WriteString(n.Text)
	}
	for _, c := range n.Content {
		flattenRich(b, c)
	}
	if richBlockTypes[n.Type] {
		b.WriteByte('\n')
	}
}

func htmlText(content string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", false
	}

	var b strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)
	return collapseSpace(b.String()), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

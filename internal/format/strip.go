package format

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags force a line break when flattening HTML to text.
var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "pre": true, "hr": true,
}

// skippedTags are flattened to nothing, contents included.
var skippedTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// StripHTML flattens HTML to plain text: tags are dropped, block-level
// boundaries become newlines, and runs of blank lines collapse.
func StripHTML(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var b strings.Builder
	flatten(doc, &b)

	lines := strings.Split(b.String(), "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func flatten(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if skippedTags[n.Data] {
			return
		}
		if blockTags[n.Data] {
			b.WriteByte('\n')
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		flatten(child, b)
	}

	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte('\n')
	}
}

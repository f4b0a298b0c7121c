package telegraph

import (
	"strings"

	"golang.org/x/net/html"
)

// allowedTags is the set of tags Telegraph accepts in page content.
var allowedTags = map[string]bool{
	"a": true, "aside": true, "b": true, "blockquote": true, "br": true,
	"code": true, "em": true, "figcaption": true, "figure": true,
	"h3": true, "h4": true, "hr": true, "i": true, "iframe": true,
	"img": true, "li": true, "ol": true, "p": true, "pre": true,
	"s": true, "strong": true, "u": true, "ul": true, "video": true,
}

// allowedAttrs is the set of attributes kept on allowed tags.
var allowedAttrs = map[string]bool{
	"href": true, "src": true,
}

// droppedTags are removed together with their contents rather than being
// replaced by their children.
var droppedTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// sanitizeHTML parses fragment HTML and converts it to Telegraph content
// nodes. Disallowed tags are replaced by their children; disallowed
// attributes are stripped.
func sanitizeHTML(fragment string) ([]Node, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	body := findBody(doc)
	if body == nil {
		return nil, nil
	}

	var nodes []Node
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		nodes = append(nodes, convert(child)...)
	}
	return nodes, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findBody(child); found != nil {
			return found
		}
	}
	return nil
}

// convert maps one parsed HTML node onto zero or more Telegraph nodes.
func convert(n *html.Node) []Node {
	switch n.Type {
	case html.TextNode:
		if n.Data == "" {
			return nil
		}
		return []Node{n.Data}

	case html.ElementNode:
		if droppedTags[n.Data] {
			return nil
		}

		var children []Node
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			children = append(children, convert(child)...)
		}

		if !allowedTags[n.Data] {
			// Disallowed tag: splice its children into the parent.
			return children
		}

		elem := NodeElement{Tag: n.Data, Children: children}
		for _, attr := range n.Attr {
			if allowedAttrs[attr.Key] && attr.Val != "" {
				if elem.Attrs == nil {
					elem.Attrs = make(map[string]string)
				}
				elem.Attrs[attr.Key] = attr.Val
			}
		}
		return []Node{elem}

	default:
		return nil
	}
}

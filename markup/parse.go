package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseBody parses message markup stored as text into a mutable node tree.
// The markup is treated as body content, the returned node is a synthetic
// body element holding the parsed fragment. Malformed input is tolerated the
// way browsers tolerate it - the parser never gives up on bad tag soup, old
// messages are full of it.
func ParseBody(markup string) (*html.Node, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse message markup: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body, nil
}

// RenderBody serializes the children of the synthetic body element back to
// text. Nodes untouched by normalization round-trip byte-identical.
func RenderBody(body *html.Node) (string, error) {
	var buf strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("unable to serialize message markup: %w", err)
		}
	}
	return buf.String(), nil
}

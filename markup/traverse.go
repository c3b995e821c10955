package markup

import (
	"golang.org/x/net/html"
)

// PrevElementSibling returns the closest preceding element sibling of n,
// skipping over text and comment nodes. Run adjacency is defined through this
// linkage so stray whitespace between paragraphs does not split a run.
func PrevElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// NextElementSibling returns the closest following element sibling of n,
// skipping over text and comment nodes.
func NextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// FindAncestor walks up from the parent of n and returns the first ancestor
// for which match returns true, or nil when there is none.
func FindAncestor(n *html.Node, match func(*html.Node) bool) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if match(p) {
			return p
		}
	}
	return nil
}

// walk visits n and all its descendants in document order. Callers that
// mutate the tree must snapshot candidates first.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

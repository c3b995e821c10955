// Package markup repairs HTML message bodies produced by the legacy rich-text
// editor. It works on mutable node trees (golang.org/x/net/html) and applies
// three passes in a fixed order: line-break normalization, spacer paragraph
// scan and spacer run reduction.
package markup

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// FillerAttr marks line breaks inserted by the downstream editor's own
// rendering layer to keep an otherwise empty block visible. Such breaks must
// survive normalization untouched.
const FillerAttr = "data-cke-filler"

// inlineWrappers is the exact set of formatting tags the legacy editor used
// to wrap line breaks into. Only these are unwrapped, any other parent stops
// the process.
var inlineWrappers = map[atom.Atom]bool{
	atom.B:      true,
	atom.Del:    true,
	atom.Em:     true,
	atom.I:      true,
	atom.Strong: true,
	atom.Sub:    true,
	atom.Sup:    true,
	atom.Span:   true,
	atom.U:      true,
}

// blockBoundaries is the exact set of tags within which trailing position is
// evaluated. Header cells are not included - the legacy editor never produced
// trailing breaks in them.
var blockBoundaries = map[atom.Atom]bool{
	atom.P:  true,
	atom.Td: true,
}

// IsMarker reports whether n is a line-break marker node.
func IsMarker(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.Br
}

// IsFiller reports whether n is a line break inserted by the downstream
// editor's rendering layer.
func IsFiller(n *html.Node) bool {
	if !IsMarker(n) {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == FillerAttr {
			return true
		}
	}
	return false
}

// IsInlineWrapper reports whether n is one of the recognized inline
// formatting wrappers.
func IsInlineWrapper(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && inlineWrappers[n.DataAtom]
}

// IsBlockBoundary reports whether n is a paragraph or table cell.
func IsBlockBoundary(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && blockBoundaries[n.DataAtom]
}

// IsSpacer reports whether n is a spacer paragraph - a block boundary
// container whose sole child is a non-filler line-break marker. The sole-child
// check is literal: a whitespace text node next to the marker disqualifies the
// container.
func IsSpacer(n *html.Node) bool {
	if !IsBlockBoundary(n) {
		return false
	}
	only := n.FirstChild
	if only == nil || only != n.LastChild {
		return false
	}
	return IsMarker(only) && !IsFiller(only)
}

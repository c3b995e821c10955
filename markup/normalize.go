package markup

import (
	"go.uber.org/zap"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Settings selects which normalization passes run. All passes are enabled by
// default, the toggles exist so a suspicious conversion can be narrowed down
// in the field.
type Settings struct {
	UnwrapBreaks        bool
	StripTrailingBreaks bool
	ReduceSpacers       bool
}

// DefaultSettings returns settings with every pass enabled.
func DefaultSettings() Settings {
	return Settings{
		UnwrapBreaks:        true,
		StripTrailingBreaks: true,
		ReduceSpacers:       true,
	}
}

// Normalize runs the full pass sequence over the tree in the fixed order:
// break normalization, spacer scan, spacer run reduction. Mutates the tree in
// place. Running it again on its own output produces no further change.
func Normalize(root *html.Node, s Settings, log *zap.Logger) {
	if s.UnwrapBreaks || s.StripTrailingBreaks {
		NormalizeBreaks(root, s, log)
	}
	if s.ReduceSpacers {
		ReduceSpacers(CollectSpacers(root), log)
	}
}

// NormalizeBreaks processes every line-break marker present in the tree at
// call time. Markers are snapshotted before any mutation so breaks the pass
// itself moves or removes are never revisited. For each marker it first tries
// to unwrap it out of nested sole-child inline wrappers, then removes it if
// it is a redundant trailing break.
func NormalizeBreaks(root *html.Node, s Settings, log *zap.Logger) {
	var markers []*html.Node
	walk(root, func(n *html.Node) {
		if IsMarker(n) {
			markers = append(markers, n)
		}
	})

	for _, br := range markers {
		if s.UnwrapBreaks {
			unwrapMarker(br)
		}
		if s.StripTrailingBreaks {
			stripTrailingMarker(br, log)
		}
	}
}

// unwrapMarker moves a line break that is the sole content of an inline
// formatting wrapper into the wrapper's place and drops the now empty
// wrapper, repeating up the ancestor chain. The first parent outside the
// recognized wrapper set stops the process. Fillers are never touched.
func unwrapMarker(br *html.Node) {
	if IsFiller(br) {
		return
	}
	for br.PrevSibling == nil && br.NextSibling == nil {
		parent := br.Parent
		if parent == nil || !IsInlineWrapper(parent) {
			return
		}
		grand := parent.Parent
		if grand == nil {
			return
		}
		parent.RemoveChild(br)
		grand.InsertBefore(br, parent.NextSibling)
		grand.RemoveChild(parent)
	}
}

// stripTrailingMarker removes a non-filler line break that is the last
// rendered node within its block boundary container. Inside a table cell the
// break goes unconditionally. Inside a paragraph it goes only when the
// paragraph has other children - stripping the sole content would erase the
// line instead of just its redundant trailing break.
func stripTrailingMarker(br *html.Node, log *zap.Logger) {
	if IsFiller(br) || br.Parent == nil {
		return
	}

	boundary := FindAncestor(br, IsBlockBoundary)
	if boundary == nil {
		return
	}

	// last rendered within the boundary: nothing may follow the marker on
	// the whole chain up, text nodes included
	for n := br; n != boundary; n = n.Parent {
		if n.NextSibling != nil {
			return
		}
	}

	if boundary.DataAtom == atom.P && boundary.FirstChild == boundary.LastChild {
		return
	}

	log.Debug("Removing trailing line break", zap.String("container", boundary.Data))
	br.Parent.RemoveChild(br)
}

// CollectSpacers returns, in document order, every block boundary container
// whose sole child is a non-filler line-break marker. Read-only scan, the
// tree is not mutated.
func CollectSpacers(root *html.Node) []*html.Node {
	var spacers []*html.Node
	walk(root, func(n *html.Node) {
		if IsSpacer(n) {
			spacers = append(spacers, n)
		}
	})
	return spacers
}

// ReduceSpacers deletes spacer paragraphs so each maximal run of mutually
// element-sibling-adjacent entries shrinks to the trailing half of its
// original length, rounded down. A run of one is removed entirely. Spacer
// runs are how users faked vertical gaps in the legacy editor, halving keeps
// the visual intent while dropping the breaks the old editor doubled up.
func ReduceSpacers(spacers []*html.Node, log *zap.Logger) {
	for i := 0; i < len(spacers); {
		// run extends while the next entry is linked to the previous one by
		// its previous-element-sibling pointer
		size := 1
		for i+size < len(spacers) && PrevElementSibling(spacers[i+size]) == spacers[i+size-1] {
			size++
		}

		remove := size - size/2
		for j := 0; j < remove; j++ {
			n := spacers[i+j]
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
		}
		log.Debug("Reduced spacer paragraph run", zap.Int("size", size), zap.Int("removed", remove))

		i += size
	}
}

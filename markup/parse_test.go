package markup

import (
	"testing"

	"golang.org/x/net/html"
)

func TestParseBody_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"plain_text", "just text"},
		{"paragraphs", `<p>one</p><p>two</p>`},
		{"attributes_preserved", `<p class="old" style="color:red">x</p>`},
		{"entities_reencoded", `<p>a &amp; b</p>`},
		{"table_content", `<table><tbody><tr><td>cell</td></tr></tbody></table>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root, err := ParseBody(tc.in)
			if err != nil {
				t.Fatalf("ParseBody() error = %v", err)
			}
			out, err := RenderBody(root)
			if err != nil {
				t.Fatalf("RenderBody() error = %v", err)
			}
			if out != tc.in {
				t.Fatalf("round trip changed markup: %q -> %q", tc.in, out)
			}
		})
	}
}

func TestParseBody_TagSoup(t *testing.T) {
	// legacy messages are full of unclosed tags, the parser must not give up
	root, err := ParseBody(`<p>first<p>second<br>`)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	out, err := RenderBody(root)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	want := `<p>first</p><p>second<br/></p>`
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestTraversalHelpers(t *testing.T) {
	root, err := ParseBody(`<p id="a">x</p> <p id="b">y</p><div><em><br/></em></div>`)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}

	a := root.FirstChild
	b := NextElementSibling(a)
	if b == nil || b.Attr[0].Val != "b" {
		t.Fatalf("NextElementSibling skipped to wrong node: %v", b)
	}
	if prev := PrevElementSibling(b); prev != a {
		t.Fatalf("PrevElementSibling did not skip text node")
	}

	div := NextElementSibling(b)
	br := div.FirstChild.FirstChild
	if !IsMarker(br) {
		t.Fatalf("expected line-break marker, got %v", br)
	}
	if got := FindAncestor(br, IsBlockBoundary); got != nil {
		t.Fatalf("no block boundary expected above marker, got %v", got)
	}
	if got := FindAncestor(br, func(n *html.Node) bool { return n == div }); got != div {
		t.Fatalf("FindAncestor did not reach div")
	}
}

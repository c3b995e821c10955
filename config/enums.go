package config

// Specification of serialized output layout: bare body fragment the way the
// message was stored, or a complete standalone HTML document.
// ENUM(fragment, document)
type OutputLayout int

func (o OutputLayout) Ext() string {
	return ".html"
}

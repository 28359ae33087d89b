// Package dom defines the augmented DOM node type used throughout the
// wikitext-to-HTML pipeline, its per-node data side-table (data-parsoid /
// data-mw), and the PageBundle container that is persisted alongside the
// rendered HTML.
package dom

// Span is a two-tuple source offset range into the original wikitext,
// used for TSR (token source range). Modeled directly on the teacher's
// chtml/span.go Span type.
type Span struct {
	Start int // byte offset of the first byte covered by this span
	End   int // byte offset one past the last byte covered by this span
}

// IsZero reports whether the span was never set.
func (s Span) IsZero() bool {
	return s.Start == 0 && s.End == 0
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// DSR is the four-tuple DOM source range attached to elements:
// content-start, content-end, open-width, close-width.
//
//	source[ContentStart-OpenWidth : ContentStart] == opening wikitext syntax
//	source[ContentStart : ContentEnd]             == the node's content
//	source[ContentEnd : ContentEnd+CloseWidth]    == closing wikitext syntax
type DSR struct {
	ContentStart int
	ContentEnd   int
	OpenWidth    int
	CloseWidth   int
	// Valid is false when one or both of ContentStart/ContentEnd are
	// unknown. Downstream passes must not extrapolate past an invalid DSR.
	Valid bool
}

// Start returns the full start offset of the construct, including its
// opening syntax width.
func (d DSR) Start() int {
	return d.ContentStart - d.OpenWidth
}

// End returns the full end offset of the construct, including its closing
// syntax width.
func (d DSR) End() int {
	return d.ContentEnd + d.CloseWidth
}

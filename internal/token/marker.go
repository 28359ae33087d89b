package token

import "regexp"

// markerMetaTypeOf is the fixed pattern spec.md §9 requires for recognizing
// template/param marker metas: ^mw:(Transclusion|Param)(/\S+)?$
var markerMetaTypeOf = regexp.MustCompile(`^mw:(Transclusion|Param)(/\S+)?$`)

// MarkerKind distinguishes a start marker from an end marker. Whether a
// marker is a transclusion or a template-argument (mw:Param) marker is
// NewMarkerMeta's isParam argument.
type MarkerKind int

const (
	MarkerStart MarkerKind = iota
	MarkerEnd
)

// NewMarkerMeta builds a <meta> start/end marker token bracketing a
// transclusion's or template-argument's expanded output. about is the
// document-unique #mwt<n> id shared by the start/end pair (spec.md §4.2).
func NewMarkerMeta(kind MarkerKind, about string, isParam bool, tsr TSR) Token {
	typeOf := "mw:Transclusion"
	if isParam {
		typeOf = "mw:Param"
	}
	suffix := "/Start"
	if kind == MarkerEnd {
		suffix = "/End"
	}
	return Token{
		Kind: SelfClosingTag,
		Name: "meta",
		Attrs: []Attribute{
			{Name: "typeof", Val: typeOf + suffix},
			{Name: "about", Val: about},
		},
		DataAttribs: DataAttribs{TSR: tsr},
	}
}

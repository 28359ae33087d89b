// Package token defines the tagged-union token type produced by the
// tokenizer (C2) and consumed by the token transform manager (C3) and the
// tree builder adapter (C5).
//
// The source language used prototype chains for token-kind polymorphism;
// here a single Token struct with a Kind discriminant and per-kind payload
// fields replaces that hierarchy (spec.md §9, "Re-architect as: (a) a
// tagged-union token type with dispatch by kind").
package token

import "fmt"

// Kind discriminates the Token payload.
type Kind int

const (
	StartTag Kind = iota
	EndTag
	SelfClosingTag
	Comment
	Newline
	Text
	EOF

	// Transclusion is emitted by the tokenizer (C2) for a {{...}} or
	// {{{...}}} construct it recognized syntactically. Stage 2 of the
	// token transform manager (C3) replaces it with the handler-expanded
	// token stream (C4); it never reaches the tree builder (C5).
	Transclusion
	// ExtensionTag is emitted by the tokenizer for a balanced
	// <name ...>...</name> or <name .../> where name is registered as an
	// extension tag. Stage 2 resolves it via the native/non-native
	// extension dispatch (C4).
	ExtensionTag
)

func (k Kind) String() string {
	switch k {
	case StartTag:
		return "StartTag"
	case EndTag:
		return "EndTag"
	case SelfClosingTag:
		return "SelfClosingTag"
	case Comment:
		return "Comment"
	case Newline:
		return "Newline"
	case Text:
		return "Text"
	case EOF:
		return "EOF"
	case Transclusion:
		return "Transclusion"
	case ExtensionTag:
		return "ExtensionTag"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Attribute is a single name/value pair on a StartTag or SelfClosingTag.
// Val may itself contain unexpanded template/extension markup; expansion
// happens in stage 2 of the token transform manager.
type Attribute struct {
	Name string
	Val  string
}

// TSR is the token source range: the byte offsets in the original wikitext
// that this token was scanned from. The zero value means "unknown".
type TSR struct {
	Start, End int
	Known      bool
}

// TemplateArgInfo is the serialized description of a transclusion's
// arguments, attached to the first marker meta's DataAttribs.TplArgInfo
// (spec.md §4.2).
type TemplateArgInfo struct {
	// Target is the (possibly still-unexpanded) wikitext of the template
	// target, e.g. "echo" or "{{PAGENAME}}".
	Target string
	// Params maps positional ("1", "2", ...) or named parameter names to
	// their unexpanded wikitext value and source offsets.
	Params map[string]ParamInfo
	// IsParserFunction is true for {{#name:...}} style invocations.
	IsParserFunction bool
}

// ParamInfo carries a single template argument's wikitext and source span.
type ParamInfo struct {
	WT  string
	TSR TSR
}

// DataAttribs is the side-record carried by every token: source-offset
// information, provenance flags, and optional template argument info
// (spec.md §3).
type DataAttribs struct {
	TSR TSR

	// FromFoster is set on tokens synthesized to compensate for HTML5
	// foster-parenting (spec.md §4.1 Phase A step 3's whitespace push).
	FromFoster bool
	// Fostered is set when this token's resulting DOM node was moved by
	// the tree-builder's foster-parenting algorithm.
	Fostered bool
	// UnwrappedWT marks a token that was unwrapped from its surrounding
	// wikitext syntax during stage 3's token-stream patching.
	UnwrappedWT bool

	// TplArgInfo is only set on the first start-marker-meta token emitted
	// by the template handler (C4); see spec.md §4.2.
	TplArgInfo *TemplateArgInfo

	// SrcOffsets, when present, is a per-parameter source offset array.
	// Encapsulation does not read it: it builds dp(target).pi from the
	// TSRs in TplArgInfo.Params.
	SrcOffsets []TSR
}

// Token is the tagged-union token type. Only the fields relevant to Kind
// are populated; callers dispatch on Kind before reading payload fields.
type Token struct {
	Kind Kind

	// Name is the tag name for StartTag/EndTag/SelfClosingTag.
	Name string
	// Attrs holds the attribute list for StartTag/SelfClosingTag.
	Attrs []Attribute
	// Text holds the literal text for Text and Comment tokens.
	Text string

	// Transclusion holds the raw, unexpanded parts of a {{...}}/{{{...}}}
	// construct, populated only when Kind == Transclusion.
	Transclusion *TransclusionPayload

	// ExtTag holds the raw tag name, attribute source, and inner content
	// of an extension-tag construct, populated only when
	// Kind == ExtensionTag.
	ExtTag *ExtensionTagPayload

	DataAttribs DataAttribs
}

// TransclusionPayload is the tokenizer's raw rendering of a {{...}} (or
// {{{...}}}) construct, before any argument has been evaluated.
type TransclusionPayload struct {
	// IsArg is true for a {{{name|default}}} template-argument reference
	// rather than a {{name|args}} template/parser-function call.
	IsArg bool
	// Target is the raw wikitext of the part before the first top-level
	// "|", e.g. "echo" or "#if:".
	Target string
	// Args is the raw wikitext of each "|"-separated part after the
	// target, in source order. Named arguments ("key=value") are left
	// unsplit; the template handler (C4) splits them.
	Args []RawArg
	TSR  TSR
}

// RawArg is one raw, unexpanded "|"-separated argument of a transclusion.
type RawArg struct {
	WT  string
	TSR TSR
}

// ExtensionTagPayload is the tokenizer's raw rendering of an extension tag
// construct. After stage 2 dispatch (C4) resolves it, Rendered is set and
// RenderedHTML carries the tag's final HTML output; the tree builder (C5)
// parses RenderedHTML as an HTML fragment rather than treating Inner as
// further wikitext.
type ExtensionTagPayload struct {
	Name       string
	AttrSrc    string // raw, unparsed attribute source text
	Attrs      []Attribute
	Inner      string // raw inner content between open and close tags
	SelfClosed bool
	TSR        TSR

	Rendered     bool
	RenderedHTML string
}

// Attr looks up an attribute by name, returning ("", false) if absent.
func (t Token) Attr(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Val, true
		}
	}
	return "", false
}

// WithAttr returns a copy of t with the named attribute set (added or
// replaced).
func (t Token) WithAttr(name, val string) Token {
	out := t
	out.Attrs = append([]Attribute(nil), t.Attrs...)
	for i := range out.Attrs {
		if out.Attrs[i].Name == name {
			out.Attrs[i].Val = val
			return out
		}
	}
	out.Attrs = append(out.Attrs, Attribute{Name: name, Val: val})
	return out
}

// NewText builds a Text token carrying tsr.
func NewText(s string, tsr TSR) Token {
	return Token{Kind: Text, Text: s, DataAttribs: DataAttribs{TSR: tsr}}
}

// NewEOF builds the terminal EOF token.
func NewEOF() Token {
	return Token{Kind: EOF}
}

// IsMarkerMeta reports whether t is a <meta typeof="mw:Transclusion/..."> or
// mw:Param marker emitted by the template/extension handler (C4) to bracket
// expanded output, per the fixed pattern in spec.md §9:
// ^mw:(Transclusion|Param)(/\S+)?$
func (t Token) IsMarkerMeta() bool {
	if t.Name != "meta" {
		return false
	}
	typeOf, ok := t.Attr("typeof")
	if !ok {
		return false
	}
	return markerMetaTypeOf.MatchString(typeOf)
}

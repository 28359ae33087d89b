// Package tokenizer implements the C2 tokenizer adapter: it streams Token
// values from raw wikitext. Per spec.md §1, the wikitext grammar itself is
// treated as a black box external collaborator; what we specify here is
// the small Tokenizer interface and one concrete, hand-written scanner
// satisfying it. A PEG-generated grammar could equally implement
// Tokenizer.
//
// The scanner only recognizes the source-level constructs that cannot be
// disambiguated later from plain text: transclusions ({{...}},
// {{{...}}}), extension/HTML tags (<name ...>), comments (<!--...-->),
// and newlines. Everything else — headings, emphasis, links, lists,
// tables — stays as Text tokens. Stage 3 of the token transform manager
// (C3) is where such constructs belong, but the pipeline package registers
// no stage-3 handlers, so they reach the tree builder as plain text.
package tokenizer

import (
	"strings"

	"github.com/nikolas/parsoid/internal/token"
)

// Tokenizer produces a stream of tokens from wikitext source. Tokenize
// returns the full stream (not incremental) since a pipeline stage needs
// to be able to re-run earlier stages over re-enqueued tokens (spec.md
// §4.1).
type Tokenizer interface {
	Tokenize(src string) ([]token.Token, error)
}

// ExtensionTagSet reports whether a given lower-cased tag name is
// registered as an extension tag, so the scanner can tell an
// ExtensionTagPayload token from ordinary literal HTML.
type ExtensionTagSet interface {
	IsExtensionTag(name string) bool
}

// Scanner is the concrete default Tokenizer.
type Scanner struct {
	Extensions ExtensionTagSet
}

// New builds a Scanner. ext may be nil, in which case no tag is treated as
// an extension tag (all <tag> constructs tokenize as literal HTML).
func New(ext ExtensionTagSet) *Scanner {
	return &Scanner{Extensions: ext}
}

func (s *Scanner) Tokenize(src string) ([]token.Token, error) {
	sc := &scanState{src: src, ext: s.Extensions}
	return sc.run()
}

type scanState struct {
	src string
	pos int
	ext ExtensionTagSet
	out []token.Token
}

func (s *scanState) run() ([]token.Token, error) {
	var textStart int
	flushText := func(end int) {
		if end > textStart {
			s.out = append(s.out, token.NewText(s.src[textStart:end], token.TSR{Start: textStart, End: end, Known: true}))
		}
	}

	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			flushText(s.pos)
			s.out = append(s.out, token.Token{
				Kind:        token.Newline,
				Text:        "\n",
				DataAttribs: token.DataAttribs{TSR: token.TSR{Start: s.pos, End: s.pos + 1, Known: true}},
			})
			s.pos++
			textStart = s.pos

		case strings.HasPrefix(s.src[s.pos:], "<!--"):
			flushText(s.pos)
			start := s.pos
			end := strings.Index(s.src[s.pos:], "-->")
			if end == -1 {
				end = len(s.src) - s.pos
				s.pos = len(s.src)
			} else {
				s.pos += end + 3
			}
			inner := s.src[start+4 : start+end]
			s.out = append(s.out, token.Token{
				Kind:        token.Comment,
				Text:        inner,
				DataAttribs: token.DataAttribs{TSR: token.TSR{Start: start, End: s.pos, Known: true}},
			})
			textStart = s.pos

		case strings.HasPrefix(s.src[s.pos:], "{{{"):
			flushText(s.pos)
			tok, next, ok := s.scanTransclusion(s.pos, 3, true)
			if !ok {
				// Unterminated: treat the brace literally.
				s.pos++
				textStart = s.pos - 1
				continue
			}
			s.out = append(s.out, tok)
			s.pos = next
			textStart = s.pos

		case strings.HasPrefix(s.src[s.pos:], "{{"):
			flushText(s.pos)
			tok, next, ok := s.scanTransclusion(s.pos, 2, false)
			if !ok {
				s.pos++
				textStart = s.pos - 1
				continue
			}
			s.out = append(s.out, tok)
			s.pos = next
			textStart = s.pos

		case c == '<':
			if tok, next, ok := s.scanTag(s.pos); ok {
				flushText(s.pos)
				s.out = append(s.out, tok)
				s.pos = next
				textStart = s.pos
			} else {
				s.pos++
			}

		default:
			s.pos++
		}
	}
	flushText(s.pos)
	s.out = append(s.out, token.NewEOF())
	return s.out, nil
}

// scanTransclusion scans a balanced {{...}} or {{{...}}} construct starting
// at pos, where markerLen is 2 or 3. It returns the Transclusion token and
// the position just past the closing marker.
func (s *scanState) scanTransclusion(pos, markerLen int, isArg bool) (token.Token, int, bool) {
	open := strings.Repeat("{", markerLen)
	closeStr := strings.Repeat("}", markerLen)

	depth := 0
	i := pos
	contentStart := pos + markerLen
	var end = -1
	for i < len(s.src) {
		switch {
		case strings.HasPrefix(s.src[i:], open):
			depth++
			i += markerLen
		case strings.HasPrefix(s.src[i:], closeStr):
			depth--
			if depth == 0 {
				end = i
			}
			i += markerLen
			if end != -1 {
				goto done
			}
		default:
			i++
		}
	}
done:
	if end == -1 {
		return token.Token{}, pos, false
	}
	content := s.src[contentStart:end]
	parts := splitTopLevel(content)
	if len(parts) == 0 {
		parts = []string{""}
	}

	tp := &token.TransclusionPayload{
		IsArg:  isArg,
		Target: strings.TrimSpace(parts[0]),
		TSR:    token.TSR{Start: pos, End: i, Known: true},
	}
	for _, p := range parts[1:] {
		tp.Args = append(tp.Args, token.RawArg{WT: p, TSR: token.TSR{Known: false}})
	}

	tok := token.Token{
		Kind:         token.Transclusion,
		Transclusion: tp,
		DataAttribs:  token.DataAttribs{TSR: tp.TSR},
	}
	return tok, i, true
}

// splitTopLevel splits s on "|" that is not nested inside {{ }}, {{{ }}},
// [[ ]], or [ ].
func splitTopLevel(s string) []string {
	var parts []string
	depthCurly, depthSquare := 0, 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			depthCurly++
			i++
		case strings.HasPrefix(s[i:], "}}"):
			if depthCurly > 0 {
				depthCurly--
			}
			i++
		case s[i] == '[':
			depthSquare++
		case s[i] == ']':
			if depthSquare > 0 {
				depthSquare--
			}
		case s[i] == '|' && depthCurly == 0 && depthSquare == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// scanTag scans a single <name ...>, </name>, or <name .../> construct
// starting at pos ('<'). It returns ok=false if pos does not begin a
// well-formed tag (e.g. a bare '<' in text).
func (s *scanState) scanTag(pos int) (token.Token, int, bool) {
	i := pos + 1
	closing := false
	if i < len(s.src) && s.src[i] == '/' {
		closing = true
		i++
	}
	nameStart := i
	for i < len(s.src) && isNameChar(s.src[i]) {
		i++
	}
	if i == nameStart {
		return token.Token{}, pos, false
	}
	name := s.src[nameStart:i]

	attrStart := i
	depth := 0
	for i < len(s.src) {
		if s.src[i] == '"' || s.src[i] == '\'' {
			q := s.src[i]
			i++
			for i < len(s.src) && s.src[i] != q {
				i++
			}
		}
		if s.src[i] == '>' && depth == 0 {
			break
		}
		i++
		if i >= len(s.src) {
			return token.Token{}, pos, false
		}
	}
	attrSrc := s.src[attrStart:i]
	selfClosed := strings.HasSuffix(strings.TrimRight(attrSrc, " \t"), "/")
	if selfClosed {
		attrSrc = strings.TrimRight(strings.TrimRight(attrSrc, " \t"), "/")
	}
	i++ // past '>'

	lname := strings.ToLower(name)

	if closing {
		return token.Token{
			Kind:        token.EndTag,
			Name:        lname,
			DataAttribs: token.DataAttribs{TSR: token.TSR{Start: pos, End: i, Known: true}},
		}, i, true
	}

	attrs := parseAttrs(attrSrc)

	if s.ext != nil && s.ext.IsExtensionTag(lname) && !selfClosed {
		// Find the matching close tag, not nesting-aware (extension
		// bodies are opaque to wikitext parsing).
		closeTag := "</" + lname
		idx := indexFold(s.src, closeTag, i)
		innerEnd := i
		tagEnd := i
		if idx == -1 {
			innerEnd = len(s.src)
			tagEnd = len(s.src)
		} else {
			innerEnd = idx
			gt := strings.IndexByte(s.src[idx:], '>')
			if gt == -1 {
				tagEnd = len(s.src)
			} else {
				tagEnd = idx + gt + 1
			}
		}
		return token.Token{
			Kind: token.ExtensionTag,
			Name: lname,
			ExtTag: &token.ExtensionTagPayload{
				Name:    lname,
				AttrSrc: attrSrc,
				Attrs:   attrs,
				Inner:   s.src[i:innerEnd],
				TSR:     token.TSR{Start: pos, End: tagEnd, Known: true},
			},
			DataAttribs: token.DataAttribs{TSR: token.TSR{Start: pos, End: tagEnd, Known: true}},
		}, tagEnd, true
	}

	kind := token.StartTag
	if selfClosed {
		kind = token.SelfClosingTag
	}
	return token.Token{
		Kind:        kind,
		Name:        lname,
		Attrs:       attrs,
		DataAttribs: token.DataAttribs{TSR: token.TSR{Start: pos, End: i, Known: true}},
	}, i, true
}

func indexFold(s, substr string, from int) int {
	ls := strings.ToLower(s[from:])
	idx := strings.Index(ls, strings.ToLower(substr))
	if idx == -1 {
		return -1
	}
	return from + idx
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == ':'
}

// parseAttrs parses a simple HTML-ish attribute source string into
// key="value" pairs. Unquoted and boolean attributes are supported.
func parseAttrs(src string) []token.Attribute {
	var attrs []token.Attribute
	i := 0
	for i < len(src) {
		for i < len(src) && isSpace(src[i]) {
			i++
		}
		if i >= len(src) {
			break
		}
		keyStart := i
		for i < len(src) && src[i] != '=' && !isSpace(src[i]) {
			i++
		}
		key := src[keyStart:i]
		if key == "" {
			i++
			continue
		}
		for i < len(src) && isSpace(src[i]) {
			i++
		}
		if i < len(src) && src[i] == '=' {
			i++
			for i < len(src) && isSpace(src[i]) {
				i++
			}
			var val string
			if i < len(src) && (src[i] == '"' || src[i] == '\'') {
				q := src[i]
				i++
				valStart := i
				for i < len(src) && src[i] != q {
					i++
				}
				val = src[valStart:i]
				if i < len(src) {
					i++
				}
			} else {
				valStart := i
				for i < len(src) && !isSpace(src[i]) {
					i++
				}
				val = src[valStart:i]
			}
			attrs = append(attrs, token.Attribute{Name: strings.ToLower(key), Val: val})
		} else {
			attrs = append(attrs, token.Attribute{Name: strings.ToLower(key), Val: ""})
		}
	}
	return attrs
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// Package treebuilder implements C5: converting the patched stage-3 token
// stream into a *dom.Node tree plus its data-parsoid/data-mw side table.
//
// Grounded on the teacher's chtml/render.go and chtml/parse.go, which both
// import golang.org/x/net/html and golang.org/x/net/html/atom directly and
// walk an *html.Node tree built by that package's real HTML5 tree
// construction algorithm; this package keeps that exact dependency rather
// than hand-rolling a tree builder, since nothing about the domain change
// (templating vs. wikitext) touches HTML5 tree-construction quirks
// (foster parenting, implied end tags, the adoption agency algorithm).
package treebuilder

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/perr"
	"github.com/nikolas/parsoid/internal/token"
)

// provAttr is the placeholder attribute the serializer stamps onto every
// element-producing token so provenance (TSR/DataAttribs) survives the
// round trip through golang.org/x/net/html's real parser, which only
// understands plain string attributes. The tree-builder strips it back off
// every node before returning.
const provAttr = "data-parsoid-tmp-prov"

// Build runs tokens through golang.org/x/net/html's HTML5 tree construction
// and converts the result into a *dom.Document, reattaching the
// per-token provenance the serializer smuggled through provAttr.
func Build(tokens []token.Token, source string) (*dom.Document, error) {
	prov := make([]token.DataAttribs, 0, len(tokens))
	src := serialize(tokens, &prov)

	root, err := html.ParseFragment(strings.NewReader(src), &html.Node{
		Type: html.ElementNode,
		Data: "body",
	})
	if err != nil {
		return nil, perr.NewInternalException("treebuilder: parse fragment", err)
	}

	wrapper := &html.Node{Type: html.ElementNode, Data: "body"}
	for _, n := range root {
		wrapper.AppendChild(n)
	}

	doc := dom.NewDocument(nil, source)
	domRoot := convert(doc, wrapper, prov)
	doc.Root = domRoot
	return doc, nil
}

// serialize renders tokens to an HTML-ish source string the real tree
// builder can parse, recording each element-producing token's DataAttribs
// in prov (indexed by the provAttr id stamped onto that element).
func serialize(tokens []token.Token, prov *[]token.DataAttribs) string {
	var b strings.Builder
	for _, t := range tokens {
		switch t.Kind {
		case token.StartTag:
			writeOpenTag(&b, t, prov, false)
		case token.SelfClosingTag:
			writeOpenTag(&b, t, prov, true)
		case token.EndTag:
			b.WriteString("</")
			b.WriteString(t.Name)
			b.WriteByte('>')
		case token.Text, token.Newline:
			b.WriteString(html.EscapeString(t.Text))
			if t.Kind == token.Newline {
				b.WriteByte('\n')
			}
		case token.Comment:
			b.WriteString("<!--")
			b.WriteString(t.Text)
			b.WriteString("-->")
		case token.ExtensionTag:
			writeExtensionTag(&b, t, prov)
		case token.EOF:
			// no wire representation
		default:
			// Transclusion tokens never reach the tree builder (they are
			// fully resolved in stage 2); anything else is a bug upstream.
		}
	}
	return b.String()
}

func writeOpenTag(b *strings.Builder, t token.Token, prov *[]token.DataAttribs, selfClosing bool) {
	id := record(prov, t.DataAttribs)
	b.WriteByte('<')
	b.WriteString(t.Name)
	for _, a := range t.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	fmt.Fprintf(b, ` %s="%d"`, provAttr, id)
	if selfClosing {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')
}

// writeExtensionTag emits a resolved extension tag's RenderedHTML verbatim
// (it is already well-formed HTML produced by C4), wrapped in a marker span
// carrying its provenance and original tag name for data-mw reconstruction.
func writeExtensionTag(b *strings.Builder, t token.Token, prov *[]token.DataAttribs) {
	ep := t.ExtTag
	if ep == nil {
		return
	}
	id := record(prov, t.DataAttribs)
	fmt.Fprintf(b, `<span typeof="mw:Extension/%s" %s="%d">`, ep.Name, provAttr, id)
	if ep.Rendered {
		b.WriteString(ep.RenderedHTML)
	} else {
		b.WriteString(html.EscapeString(ep.Inner))
	}
	b.WriteString("</span>")
}

func record(prov *[]token.DataAttribs, da token.DataAttribs) int {
	*prov = append(*prov, da)
	return len(*prov) - 1
}

// convert walks an *html.Node tree (x/net/html's output) into a *dom.Node
// tree, moving each node's recorded DataAttribs into the Document's side
// table and stripping the provAttr placeholder back off.
func convert(doc *dom.Document, n *html.Node, prov []token.DataAttribs) *dom.Node {
	if n == nil {
		return nil
	}
	out := &dom.Node{Type: convertType(n.Type), Data: n.Data}

	var provID = -1
	for _, a := range n.Attr {
		if a.Key == provAttr {
			if v, err := strconv.Atoi(a.Val); err == nil {
				provID = v
			}
			continue
		}
		out.Attr = append(out.Attr, dom.Attribute{Namespace: a.Namespace, Key: a.Key, Val: a.Val})
	}

	if provID >= 0 && provID < len(prov) {
		da := prov[provID]
		nd := doc.DataFor(out)
		if da.TSR.Known {
			nd.Parsoid.TSR = dom.Span{Start: da.TSR.Start, End: da.TSR.End}
		}
		nd.Parsoid.Fostered = da.Fostered
		nd.Parsoid.TplArgInfo = da.TplArgInfo
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		child := convert(doc, c, prov)
		out.AppendChild(child)
	}
	return out
}

func convertType(t html.NodeType) dom.NodeType {
	switch t {
	case html.ErrorNode:
		return dom.ErrorNode
	case html.DocumentNode:
		return dom.DocumentNode
	case html.ElementNode:
		return dom.ElementNode
	case html.TextNode:
		return dom.TextNode
	case html.CommentNode:
		return dom.CommentNode
	case html.DoctypeNode:
		return dom.DoctypeNode
	default:
		return dom.ErrorNode
	}
}

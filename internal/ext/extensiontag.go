package ext

import (
	"fmt"
	"html"
	"strings"

	"github.com/nikolas/parsoid/internal/dataaccess"
	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/siteconfig"
	"github.com/nikolas/parsoid/internal/token"
	"github.com/nikolas/parsoid/internal/tt"
)

// HandleExtensionTag is the tt.Handler for ExtensionTag tokens, registered
// with Wildcard: true so it sees every extension tag regardless of name
// (spec.md §4.2: native extension dispatch, falling back to a non-native
// extension's own wikitext parser).
func (d *Dispatcher) HandleExtensionTag(ctxAny any, tok token.Token) (tt.Result, error) {
	if tok.Kind != token.ExtensionTag {
		return tt.Result{Action: tt.Unchanged}, nil
	}
	ctx, ok := ctxAny.(*Ctx)
	if !ok {
		return tt.Result{}, fmt.Errorf("ext: wrong ctx type")
	}
	ep := tok.ExtTag
	if ep == nil {
		return tt.Result{Action: tt.Unchanged}, nil
	}

	switch strings.ToLower(ep.Name) {
	case "nowiki":
		return d.renderVerbatim(ctx, tok, ep, html.EscapeString(ep.Inner))
	case "pre":
		return d.renderVerbatim(ctx, tok, ep, "<pre>"+html.EscapeString(ep.Inner)+"</pre>")
	}

	if native, found := ctx.Site.Extensions[ep.Name]; found {
		return d.renderNative(ctx, tok, ep, native)
	}

	return d.renderViaDataAccess(ctx, tok, ep)
}

func attrMap(attrs []token.Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a.Val
	}
	return m
}

func (d *Dispatcher) renderVerbatim(ctx *Ctx, tok token.Token, ep *token.ExtensionTagPayload, renderedHTML string) (tt.Result, error) {
	out := tok
	cp := *ep
	cp.Rendered = true
	cp.RenderedHTML = renderedHTML
	out.ExtTag = &cp
	return tt.Result{Action: tt.Replace, Tokens: []token.Token{out}}, nil
}

// renderNative invokes a registered NativeExtension's ToDOM, which returns a
// *dom.Node fragment; that fragment is serialized back to HTML so it can
// flow through the same Rendered/RenderedHTML channel as every other
// extension-tag result (spec.md §6 "toDOM").
func (d *Dispatcher) renderNative(ctx *Ctx, tok token.Token, ep *token.ExtensionTagPayload, native siteconfig.NativeExtension) (tt.Result, error) {
	if native.ToDOM == nil {
		return d.renderViaDataAccess(ctx, tok, ep)
	}

	env := &siteconfig.RenderEnv{
		Logger:     ctx.Logger,
		PageConfig: ctx.PageConfig,
		ParseWikitext: func(src string) (*dom.Node, error) {
			return nil, fmt.Errorf("ext: nested ParseWikitext not available in this context")
		},
	}

	attrs := NormalizeOptions(attrMap(ep.Attrs), ctx.Logger)
	node, err := native.ToDOM(env, attrs, ep.Inner)
	if err != nil {
		return tt.Result{Action: tt.Replace, Tokens: []token.Token{
			token.NewText(fmt.Sprintf("<strong class=\"error\">%s error: %v</strong>", ep.Name, err), ep.TSR),
		}}, nil
	}

	rendered := serializeFragment(node)
	return d.renderVerbatim(ctx, tok, ep, rendered)
}

// renderViaDataAccess falls back to the data-access collaborator's own
// wikitext parser for a non-native extension tag (spec.md §4.2).
func (d *Dispatcher) renderViaDataAccess(ctx *Ctx, tok token.Token, ep *token.ExtensionTagPayload) (tt.Result, error) {
	if ctx.Data == nil {
		return tt.Result{Action: tt.Replace, Tokens: []token.Token{
			token.NewText(fmt.Sprintf("<strong class=\"error\">unknown extension tag: %s</strong>", ep.Name), ep.TSR),
		}}, nil
	}

	src := fmt.Sprintf("<%s%s>%s</%s>", ep.Name, ep.AttrSrc, ep.Inner, ep.Name)
	parsed, err := ctx.Data.ParseWikitext(ctx.GoCtx, ctx.PageConfig, src)
	if err != nil {
		if err == dataaccess.ErrUnsupported {
			return tt.Result{Action: tt.Replace, Tokens: []token.Token{
				token.NewText(fmt.Sprintf("<strong class=\"error\">%s: no parser available</strong>", ep.Name), ep.TSR),
			}}, nil
		}
		return tt.Result{}, err
	}
	return d.renderVerbatim(ctx, tok, ep, parsed.HTML)
}

// serializeFragment renders a *dom.Node subtree (and its siblings) back to
// an HTML string, for splicing a NativeExtension's ToDOM output into the
// Rendered/RenderedHTML channel the tree builder (C5) expects.
func serializeFragment(n *dom.Node) string {
	var b strings.Builder
	for c := n; c != nil; c = c.NextSibling {
		writeNode(&b, c)
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *dom.Node) {
	switch n.Type {
	case dom.TextNode:
		b.WriteString(html.EscapeString(n.Data))
	case dom.CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->")
	case dom.ElementNode:
		b.WriteByte('<')
		b.WriteString(n.Data)
		for _, a := range n.Attr {
			b.WriteByte(' ')
			b.WriteString(a.Key)
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(a.Val))
			b.WriteByte('"')
		}
		b.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Data)
		b.WriteByte('>')
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c)
		}
	}
}

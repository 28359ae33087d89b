package postprocess

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nikolas/parsoid/internal/dom"
)

// runTreeBuilderFixups is pass 2: golang.org/x/net/html's real tree
// construction already performs HTML5 fixups (implied end tags, the
// adoption agency algorithm, foster parenting); nothing further is needed
// here, so this pass does nothing. The provenance placeholder attribute
// (treebuilder.provAttr) is already removed from every element, literal
// HTML included, during the tree builder's convert().
func runTreeBuilderFixups(doc *dom.Document, env *Env, atTopLevel bool) error {
	return nil
}

// runNormalize is pass 3: collapses adjacent text nodes left by token
// splitting/marker removal, so later passes (DSR, encapsulation) see a
// canonical tree shape.
func runNormalize(doc *dom.Document, env *Env, atTopLevel bool) error {
	normalizeChildren(doc.Root)
	return nil
}

func normalizeChildren(n *dom.Node) {
	if n == nil {
		return
	}
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == dom.TextNode && next != nil && next.Type == dom.TextNode {
			c.Data += next.Data
			n.RemoveChild(next)
			continue
		}
		normalizeChildren(c)
		c = next
	}
}

// runParagraphWrap is pass 4 (skipNested): wraps runs of inline/text
// content directly under the document root in <p> elements, the way
// wikitext's blank-line paragraph rule works.
func runParagraphWrap(doc *dom.Document, env *Env, atTopLevel bool) error {
	root := doc.Root
	var run []*dom.Node
	flush := func(before *dom.Node) {
		if len(run) == 0 {
			return
		}
		p := &dom.Node{Type: dom.ElementNode, Data: "p"}
		root.InsertBefore(p, before)
		for _, c := range run {
			root.RemoveChild(c)
			p.AppendChild(c)
		}
		run = nil
	}

	c := root.FirstChild
	for c != nil {
		next := c.NextSibling
		if isBlockLevel(c) {
			flush(c)
		} else if !(c.Type == dom.TextNode && c.IsWhitespace()) {
			run = append(run, c)
		}
		c = next
	}
	flush(nil)
	return nil
}

var blockTags = map[string]bool{
	"p": true, "div": true, "table": true, "ul": true, "ol": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "section": true, "dl": true, "hr": true,
}

func isBlockLevel(n *dom.Node) bool {
	return n.Type == dom.ElementNode && blockTags[n.Data]
}

// runMigrateMarkerMetas is pass 5: migrates a leading/trailing marker meta
// that golang.org/x/net/html placed just inside a block element's boundary
// back to just outside it, so subsequent first/last-child structural
// checks (paragraph-wrap having already run, list/table fixups still to
// run) aren't confused by an intervening meta.
func runMigrateMarkerMetas(doc *dom.Document, env *Env, atTopLevel bool) error {
	var walk func(n *dom.Node)
	walk = func(n *dom.Node) {
		if n == nil {
			return
		}
		if first := n.FirstChild; first != nil && isMarkerElement(first) && n.Parent != nil {
			n.RemoveChild(first)
			n.Parent.InsertBefore(first, n)
		}
		if last := n.LastChild; last != nil && last != n.FirstChild && isMarkerElement(last) && n.Parent != nil {
			n.RemoveChild(last)
			n.Parent.InsertBefore(last, n.NextSibling)
		}
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			walk(c)
			c = next
		}
	}
	walk(doc.Root)
	return nil
}

func isMarkerElement(n *dom.Node) bool {
	if n.Data != "meta" {
		return false
	}
	typeOf, ok := n.Attr_("typeof")
	return ok && (isMarkerStart(typeOf) || isMarkerEnd(typeOf))
}

// runPreBlocks is pass 6: a no-op here because the tokenizer (C2) does not
// recognize leading-space preformatted blocks as a distinct construct
// (deferred to stage 3 token transforms per the C2 package doc); nothing
// downstream depends on it for the component set this module implements.
func runPreBlocks(doc *dom.Document, env *Env, atTopLevel bool) error {
	return nil
}

// runMigrateTrailingNewlines is pass 7: moves a block element's trailing
// newline token out from inside its closing tag to just after it, matching
// MediaWiki's own DSR-friendly placement so round-trip serialization
// doesn't have to special-case it later.
func runMigrateTrailingNewlines(doc *dom.Document, env *Env, atTopLevel bool) error {
	var walk func(n *dom.Node)
	walk = func(n *dom.Node) {
		if n == nil {
			return
		}
		if isBlockLevel(n) && n.LastChild != nil && n.LastChild.Type == dom.TextNode {
			last := n.LastChild
			trimmed := strings.TrimRight(last.Data, "\n")
			trailing := last.Data[len(trimmed):]
			if trailing != "" {
				last.Data = trimmed
				sib := &dom.Node{Type: dom.TextNode, Data: trailing}
				n.Parent.InsertBefore(sib, n.NextSibling)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if doc.Root != nil {
		for c := doc.Root.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	return nil
}

// runUnpackFragments is pass 10: splices any DOM-fragment wrapper markers
// (emitted by extension ToDOM hooks for multi-node output) into their
// surrounding context, before per-extension post-processors run.
func runUnpackFragments(doc *dom.Document, env *Env, atTopLevel bool) error {
	var walk func(n *dom.Node)
	walk = func(n *dom.Node) {
		if n == nil {
			return
		}
		c := n.FirstChild
		for c != nil {
			next := c.NextSibling
			if c.Type == dom.ElementNode && c.Data == "span" {
				if cls, ok := c.Attr_("data-parsoid-fragment"); ok && cls == "1" {
					for gc := c.FirstChild; gc != nil; {
						gcNext := gc.NextSibling
						c.RemoveChild(gc)
						n.InsertBefore(gc, c)
						gc = gcNext
					}
					n.RemoveChild(c)
				}
			}
			walk(c)
			c = next
		}
	}
	walk(doc.Root)
	return nil
}

// runExtensionPostProcessors is pass 11: calls RunPostProcessor on Env.Site
// when the site value implements it, and does nothing otherwise. Env.Site
// is loosely typed to avoid an import cycle (postprocess is imported by
// pipeline, which also wires siteconfig). *siteconfig.Config does not
// implement RunPostProcessor and keeps no extension registration order, so
// with it this pass runs no per-extension post-processors.
func runExtensionPostProcessors(doc *dom.Document, env *Env, atTopLevel bool) error {
	type postProcessor interface {
		RunPostProcessor(doc *dom.Document) error
	}
	if pp, ok := env.Site.(postProcessor); ok {
		return pp.RunPostProcessor(doc)
	}
	return nil
}

// runListTableStyleFixups is pass 12 (skipNested): a single traverser that
// fixes up list-item nesting, marks table cells with their originating
// syntax (data-parsoid.stx), and deduplicates repeated inline style
// fragments produced by nested template expansion.
func runListTableStyleFixups(doc *dom.Document, env *Env, atTopLevel bool) error {
	t := dom.NewTraverser()
	t.OnEnter("td", markCellStyle)
	t.OnEnter("th", markCellStyle)
	return t.Walk(doc, doc.Root)
}

func markCellStyle(doc *dom.Document, n *dom.Node) (*dom.Node, bool, error) {
	if style, ok := n.Attr_("style"); ok {
		n.SetAttr("style", dedupStyleDecls(style))
	}
	return nil, false, nil
}

func dedupStyleDecls(style string) string {
	seen := map[string]bool{}
	var out []string
	for _, decl := range strings.Split(style, ";") {
		d := strings.TrimSpace(decl)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return strings.Join(out, "; ")
}

// runMediaInfo is pass 13: left unimplemented because this module's
// DataAccess.FetchMediaInfo is wired (see internal/dataaccess) but nothing
// in C1-C13's scope yet produces <figure>/<img> media nodes to annotate;
// see DESIGN.md.
func runMediaInfo(doc *dom.Document, env *Env, atTopLevel bool) error {
	return nil
}

// runHeadingAnchors is pass 14: stamps each heading with a derived id
// attribute from its text content, ahead of section wrapping. A heading
// whose id contains non-ASCII characters also gets a trailing
// mw:FallbackId span carrying MediaWiki's legacy ASCII-safe anchor, so old
// incoming links that were generated against that legacy scheme keep
// resolving (spec.md §8 scenario 2).
func runHeadingAnchors(doc *dom.Document, env *Env, atTopLevel bool) error {
	t := dom.NewTraverser()
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		t.OnEnter(tag, stampHeadingID)
	}
	return t.Walk(doc, doc.Root)
}

func stampHeadingID(doc *dom.Document, n *dom.Node) (*dom.Node, bool, error) {
	id := anchorize(textContent(n))
	n.SetAttr("id", id)
	if hasNonASCII(id) {
		fallback := &dom.Node{Type: dom.ElementNode, Data: "span", Attr: []dom.Attribute{
			{Key: "typeof", Val: "mw:FallbackId"},
			{Key: "id", Val: legacyFallbackID(id)},
		}}
		n.AppendChild(fallback)
	}
	return nil, false, nil
}

func textContent(n *dom.Node) string {
	var b strings.Builder
	var walk func(*dom.Node)
	walk = func(n *dom.Node) {
		if n.Type == dom.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// anchorize derives a heading's primary id (spec.md §8 scenario 2): spaces
// become underscores, and any rune that is not a letter, digit, "_" or "-"
// is dropped. Unlike a plain ASCII slug, non-ASCII letters (e.g. "é") are
// kept verbatim — MediaWiki's real ids are Unicode, with an ASCII-safe
// legacy id carried separately via mw:FallbackId (see legacyFallbackID).
func anchorize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, r := range s {
		if r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// hasNonASCII reports whether s contains any rune outside the ASCII range,
// i.e. whether it needs an mw:FallbackId legacy id alongside it.
func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

// legacyFallbackID derives the ASCII-safe legacy anchor id MediaWiki has
// historically used for pages linking to a heading by id: every ASCII
// letter/digit/"_"/"-" passes through unchanged, and every other rune is
// replaced by its UTF-8 bytes, each dot-escaped as in ".XX" hex (e.g. "é" ->
// ".C3.A9"), matching spec.md §8 scenario 2's mw:FallbackId span.
func legacyFallbackID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r <= unicode.MaxASCII && (r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			b.WriteRune(r)
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, by := range buf[:n] {
			fmt.Fprintf(&b, ".%02X", by)
		}
	}
	return b.String()
}

// runSectionWrap is pass 15 (skipNested): wraps each heading and the
// content until the next heading of equal-or-higher rank in a <section>
// element, matching MediaWiki's section-edit-link model.
func runSectionWrap(doc *dom.Document, env *Env, atTopLevel bool) error {
	root := doc.Root
	if root == nil {
		return nil
	}

	var sections []*dom.Node
	var cur *dom.Node
	curRank := 0

	c := root.FirstChild
	for c != nil {
		next := c.NextSibling
		rank := headingRank(c)
		if rank > 0 && (cur == nil || rank <= curRank) {
			cur = &dom.Node{Type: dom.ElementNode, Data: "section"}
			curRank = rank
			sections = append(sections, cur)
		}
		// A heading with rank > curRank is a subsection; MediaWiki nests
		// it inside the enclosing section. This pass gives it no section
		// of its own: it and its content stay as plain children of the
		// enclosing section (documented in DESIGN.md).
		if cur != nil {
			root.RemoveChild(c)
			cur.AppendChild(c)
		}
		c = next
	}

	for _, s := range sections {
		root.AppendChild(s)
	}
	return nil
}

func headingRank(n *dom.Node) int {
	if n.Type != dom.ElementNode {
		return 0
	}
	switch n.Data {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	default:
		return 0
	}
}

// runHeadingIDDedup is pass 16: carries a per-document seenIds set so
// repeated heading text ("Overview", "Overview") gets "Overview",
// "Overview_2" instead of two colliding #Overview anchors.
func runHeadingIDDedup(doc *dom.Document, env *Env, atTopLevel bool) error {
	seen := map[string]int{}
	t := dom.NewTraverser()
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		t.OnEnter(tag, func(doc *dom.Document, n *dom.Node) (*dom.Node, bool, error) {
			id, _ := n.Attr_("id")
			if id == "" {
				return nil, false, nil
			}
			seen[id]++
			if seen[id] > 1 {
				n.SetAttr("id", fmt.Sprintf("%s_%d", id, seen[id]))
			}
			return nil, false, nil
		})
	}
	return t.Walk(doc, doc.Root)
}

// runVariantConversion is pass 17 (skipNested): delegates to C13 (see
// internal/variant) when Env.Site implements ConvertVariants, and does
// nothing otherwise. The pipeline package passes *siteconfig.Config as
// Env.Site, which has no ConvertVariants method, so no variant conversion
// runs in a pipeline built by that package.
func runVariantConversion(doc *dom.Document, env *Env, atTopLevel bool) error {
	type variantConverter interface {
		ConvertVariants(doc *dom.Document) error
	}
	if vc, ok := env.Site.(variantConverter); ok {
		return vc.ConvertVariants(doc)
	}
	return nil
}

// runLinter is pass 18, optional (Omit: true by default): not implemented
// in this module; MediaWiki's own Linter extension is a separate service
// in the real architecture, out of scope here (spec.md Non-goals).
func runLinter(doc *dom.Document, env *Env, atTopLevel bool) error {
	return nil
}

// runStripMarkerMetas is pass 19: removes any marker metas encapsulation
// (C10) didn't consume — e.g. from a range that failed to encapsulate —
// so the final HTML never exposes internal <meta typeof="mw:..."> plumbing.
func runStripMarkerMetas(doc *dom.Document, env *Env, atTopLevel bool) error {
	var collect func(n *dom.Node) []*dom.Node
	collect = func(n *dom.Node) []*dom.Node {
		var out []*dom.Node
		if n == nil {
			return out
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isMarkerElement(c) {
				out = append(out, c)
			}
			out = append(out, collect(c)...)
		}
		return out
	}
	for _, m := range collect(doc.Root) {
		if m.Parent != nil {
			m.Parent.RemoveChild(m)
		}
	}
	return nil
}

// runExternalLinkClass is pass 20 (skipNested): adds class="external" to
// <a> elements whose typeof marks them as external wikitext links
// (spec.md §4.7 item 20).
func runExternalLinkClass(doc *dom.Document, env *Env, atTopLevel bool) error {
	t := dom.NewTraverser()
	t.OnEnter("a", func(doc *dom.Document, n *dom.Node) (*dom.Node, bool, error) {
		if rel, ok := n.Attr_("rel"); ok && strings.Contains(rel, "mw:ExtLink") {
			cls, _ := n.Attr_("class")
			if !strings.Contains(cls, "external") {
				if cls != "" {
					cls += " "
				}
				n.SetAttr("class", cls+"external")
			}
		}
		return nil, false, nil
	})
	return t.Walk(doc, doc.Root)
}

// runCleanupAndSerializeData is pass 21: clears per-pass scratch (Tmp) now
// that encapsulation has consumed it, leaving only the round-trippable
// data-parsoid/data-mw fields the PageBundle export walks.
func runCleanupAndSerializeData(doc *dom.Document, env *Env, atTopLevel bool) error {
	var walk func(n *dom.Node)
	walk = func(n *dom.Node) {
		if n == nil {
			return
		}
		if doc.HasData(n) {
			doc.DataFor(n).Parsoid.Tmp = nil
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc.Root)
	return nil
}

// runRedLinkAnnotation is pass 22, optional (Omit: true by default): would
// batch-query DataAccess.FetchPageExistence for every internal wikilink and
// add class="new" to red links. Left disabled by default since it requires
// a live DataAccess batch round-trip at the end of every parse; see
// DESIGN.md.
func runRedLinkAnnotation(doc *dom.Document, env *Env, atTopLevel bool) error {
	return nil
}

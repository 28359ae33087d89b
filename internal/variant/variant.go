// Package variant implements the language variant converter (C13): a DOM
// traverser parameterized by a target variant and an external replacement
// machine, converting text, wiki-link titles/hrefs, and title/alt
// attributes between script variants (e.g. zh-Hans/zh-Hant), with a
// reversibility fallback for conversions the machine can't cleanly invert.
package variant

import (
	"strings"

	"github.com/nikolas/parsoid/internal/dom"
)

// Machine is the external transliteration collaborator (spec.md §4.8:
// "a replacement machine (external)"). Convert returns the converted text
// and reports whether the conversion is reversible from the output text
// alone (no additional node structure needed).
type Machine interface {
	Convert(text, sourceVariant, targetVariant string) (converted string, reversible bool)
}

// SourceVariantOracle resolves the source variant for a subtree, e.g. from
// a page-level language tag or a <p data-mw-variant-lang> hint left by a
// previous conversion pass.
type SourceVariantOracle interface {
	SourceVariant(p *dom.Node) string
}

// Converter implements C13 for one target variant.
type Converter struct {
	TargetVariant string
	Machine       Machine
	Oracle        SourceVariantOracle
}

var skipTags = map[string]bool{"code": true, "script": true, "pre": true, "cite": true}

// ConvertVariants runs the converter over doc's whole tree (spec.md §4.8).
// It implements the interface runVariantConversion in
// internal/postprocess/passes_misc.go looks for on Env.Site.
func (c *Converter) ConvertVariants(doc *dom.Document) error {
	if c == nil || c.Machine == nil {
		return nil
	}
	c.walk(doc, doc.Root, c.sourceVariantFor(doc.Root))
	return nil
}

func (c *Converter) sourceVariantFor(n *dom.Node) string {
	if c.Oracle != nil {
		if sv := c.Oracle.SourceVariant(n); sv != "" {
			return sv
		}
	}
	return c.TargetVariant
}

func (c *Converter) walk(doc *dom.Document, n *dom.Node, sourceVariant string) {
	if n == nil {
		return
	}
	if n.Type == dom.ElementNode && skipTags[n.Data] {
		return
	}

	if n.Type == dom.ElementNode && (n.Data == "p" || n.Data == "body") {
		sourceVariant = c.sourceVariantFor(n)
		n.SetAttr("data-mw-variant-lang", sourceVariant)
	}

	switch n.Type {
	case dom.TextNode:
		c.convertText(n, sourceVariant)
	case dom.ElementNode:
		if n.Data == "a" {
			c.convertLinkHref(n, sourceVariant)
		}
		c.convertAttr(n, "title", sourceVariant)
		c.convertAttr(n, "alt", sourceVariant)
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.walk(doc, child, sourceVariant)
	}
}

func (c *Converter) convertText(n *dom.Node, sourceVariant string) {
	converted, reversible := c.Machine.Convert(n.Data, sourceVariant, c.TargetVariant)
	if !reversible {
		// Preserve the original for round-trip; the spec's
		// data-mw-variant-orig fallback normally lives on an enclosing
		// element, but a text node has none, so the nearest element
		// ancestor carries it.
		if n.Parent != nil {
			n.Parent.SetAttr("data-mw-variant-orig", n.Data)
		}
	}
	n.Data = converted
}

// convertLinkHref converts a wiki-link's href (spec.md §4.8: "Wiki-links
// get their title and href converted; interwiki and external links are
// skipped"); title is handled by the generic convertAttr call in walk.
func (c *Converter) convertLinkHref(n *dom.Node, sourceVariant string) {
	rel, _ := n.Attr_("rel")
	if strings.Contains(rel, "mw:ExtLink") || strings.Contains(rel, "mw:WikiLink/Interwiki") {
		return
	}
	if href, ok := n.Attr_("href"); ok && !looksLikeURL(href) {
		converted, _ := c.Machine.Convert(href, sourceVariant, c.TargetVariant)
		n.SetAttr("href", converted)
	}
}

func (c *Converter) convertAttr(n *dom.Node, name, sourceVariant string) {
	val, ok := n.Attr_(name)
	if !ok || looksLikeURL(val) {
		return
	}
	converted, _ := c.Machine.Convert(val, sourceVariant, c.TargetVariant)
	n.SetAttr(name, converted)
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}

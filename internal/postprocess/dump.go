package postprocess

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/nikolas/parsoid/internal/dom"
)

// NewEtreeDumper builds an Env.Dump hook that serializes the document to an
// XML snapshot after each requested stage, for the CLI's --dump/--trace
// flags (spec.md §6). shortcuts restricts the dump to the named stages;
// an empty set dumps every stage.
func NewEtreeDumper(sink func(stage, xml string), shortcuts ...string) func(stage string, doc *dom.Document) {
	want := map[string]bool{}
	for _, s := range shortcuts {
		want[s] = true
	}
	return func(stage string, doc *dom.Document) {
		if len(want) > 0 && !want[stage] {
			return
		}
		d := etree.NewDocument()
		d.Indent(2)
		root := d.CreateElement("dom")
		appendNode(doc, root, doc.Root)
		xml, err := d.WriteToString()
		if err != nil {
			xml = "<!-- dump failed: " + err.Error() + " -->"
		}
		sink(stage, xml)
	}
}

func appendNode(doc *dom.Document, parent *etree.Element, n *dom.Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case dom.TextNode:
		parent.CreateText(n.Data)
	case dom.CommentNode:
		parent.CreateComment(n.Data)
	case dom.ElementNode:
		el := parent.CreateElement(n.Data)
		for _, a := range n.Attr {
			el.CreateAttr(a.Key, a.Val)
		}
		if doc.HasData(n) {
			dp := doc.DataFor(n).Parsoid
			if dp.DSR.Valid {
				el.CreateAttr("data-trace-dsr", strconv.Itoa(dp.DSR.Start())+"-"+strconv.Itoa(dp.DSR.End()))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendNode(doc, el, c)
		}
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendNode(doc, parent, c)
		}
	}
}

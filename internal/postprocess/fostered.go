package postprocess

import (
	"github.com/nikolas/parsoid/internal/dom"
)

// runMarkFostered implements C8: flag every node the tree builder moved out
// of a <table> (HTML5 foster-parenting) with dataParsoid.fostered = true
// (spec.md §4.4).
//
// golang.org/x/net/html's real tree-construction algorithm does the
// foster-parenting itself and does not expose "this text was foster
// parented" as a bit on the resulting node, so detection here is
// source-offset-based: a node whose TSR falls inside an enclosing
// <table>'s TSR span, but whose DOM ancestor chain does not pass through
// that table, was moved out from under it.
func runMarkFostered(doc *dom.Document, env *Env, atTopLevel bool) error {
	walk(doc.Root, nil, doc)
	return nil
}

func walk(n *dom.Node, tableStack []*dom.Node, doc *dom.Document) {
	if n == nil {
		return
	}
	if n.Type == dom.ElementNode && n.Data == "table" {
		tableStack = append(tableStack, n)
	} else if len(tableStack) > 0 && doc.HasData(n) {
		enclosing := tableStack[len(tableStack)-1]
		if spansInside(doc, n, enclosing) && !isDescendant(n, enclosing) {
			doc.DataFor(n).Parsoid.Fostered = true
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, tableStack, doc)
	}
}

func spansInside(doc *dom.Document, n, table *dom.Node) bool {
	if !doc.HasData(n) || !doc.HasData(table) {
		return false
	}
	nTSR := doc.DataFor(n).Parsoid.TSR
	tTSR := doc.DataFor(table).Parsoid.TSR
	if nTSR.IsZero() || tTSR.IsZero() {
		return false
	}
	return nTSR.Start >= tTSR.Start && nTSR.End <= tTSR.End
}

func isDescendant(n, ancestor *dom.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

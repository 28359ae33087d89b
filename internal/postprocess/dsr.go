package postprocess

import "github.com/nikolas/parsoid/internal/dom"

// runDSR implements C9: bottom-up DSR computation from the TSR offsets
// carried by the tree-builder (C5) onto each node's data-parsoid record
// (spec.md §4.5).
func runDSR(doc *dom.Document, env *Env, atTopLevel bool) error {
	computeDSR(doc, doc.Root)
	return nil
}

// computeDSR returns n's DSR after computing it (and those of its
// children, recursively, post-order).
func computeDSR(doc *dom.Document, n *dom.Node) dom.DSR {
	if n == nil {
		return dom.DSR{}
	}

	var minStart, maxEnd int
	haveStart, haveEnd := false, false

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cd := computeDSR(doc, c)
		if !cd.Valid {
			continue
		}
		s, e := cd.Start(), cd.End()
		if !haveStart || s < minStart {
			minStart = s
			haveStart = true
		}
		if !haveEnd || e > maxEnd {
			maxEnd = e
			haveEnd = true
		}
	}

	if n.Type != dom.ElementNode || !doc.HasData(n) {
		return dom.DSR{}
	}

	dp := &doc.DataFor(n).Parsoid
	tsr := dp.TSR
	if !tsr.IsZero() {
		// This node itself has a known token source range (e.g. a literal
		// HTML element, whose tag-source widths are exact); it takes
		// precedence over a range merely inferred from children.
		dp.DSR = dom.DSR{ContentStart: tsr.Start, ContentEnd: tsr.End, Valid: true}
		return dp.DSR
	}

	if haveStart && haveEnd {
		dp.DSR = dom.DSR{ContentStart: minStart, ContentEnd: maxEnd, Valid: true}
	} else {
		dp.DSR = dom.DSR{Valid: false}
	}
	return dp.DSR
}

package postprocess

import (
	"fmt"
	"sort"

	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/perr"
	"github.com/nikolas/parsoid/internal/token"
)

// tplRange is one matched start/end marker pair and the minimal DOM range
// it brackets (spec.md §4.6 Phase A).
type tplRange struct {
	id       int
	about    string
	isParam  bool
	argInfo  *token.TemplateArgInfo
	startSrc token.TSR

	startElem, endElem *dom.Node // the marker meta elements themselves
	start, end         *dom.Node // the A-children bracketing the range
	parent             *dom.Node

	flipped  bool
	subsumed bool
	// parts accumulates this range's own argInfo plus any subsumed/merged
	// ranges' argInfo, in textual order, becoming data-mw.parts' template
	// entries (spec.md §4.6 Phase B step 1, Phase C step 5).
	parts []*token.TemplateArgInfo
}

// runEncapsulate implements C10: pairs transclusion/param marker metas by
// about id, resolves nested/overlapping ranges to a non-overlapping
// top-level set, and stamps each surviving range onto a single DOM element
// carrying typeof/about/data-mw (spec.md §4.6).
func runEncapsulate(doc *dom.Document, env *Env, atTopLevel bool) error {
	ranges, err := findWrappableTemplateRanges(doc)
	if err != nil {
		logPass(env, "encapsulate: phase A", err)
	}
	if len(ranges) == 0 {
		return nil
	}

	top := findTopLevelNonOverlappingRanges(doc, ranges)

	for _, r := range top {
		if err := encapsulateOne(doc, r); err != nil {
			logPass(env, fmt.Sprintf("encapsulate: range %s", r.about), err)
			continue
		}
	}
	return nil
}

// findWrappableTemplateRanges is Phase A: pair markers by about, and find
// the minimal DOM range each pair brackets.
func findWrappableTemplateRanges(doc *dom.Document) ([]*tplRange, error) {
	starts := map[string]*dom.Node{}
	var pairs []*tplRange

	var walkMarkers func(n *dom.Node)
	id := 0
	walkMarkers = func(n *dom.Node) {
		if n == nil {
			return
		}
		if n.Type == dom.ElementNode && n.Data == "meta" {
			if typeOf, ok := n.Attr_("typeof"); ok {
				about, _ := n.Attr_("about")
				switch {
				case isMarkerStart(typeOf):
					starts[about] = n
				case isMarkerEnd(typeOf):
					if s, ok := starts[about]; ok {
						r := buildRange(doc, id, about, s, n)
						id++
						pairs = append(pairs, r)
						delete(starts, about)
					} else {
						// End before start: foster-parented marker.
						// Flag for Phase C and use end as both
						// endpoints (spec.md §4.6 Phase A).
						r := buildRange(doc, id, about, n, n)
						r.flipped = true
						id++
						pairs = append(pairs, r)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkMarkers(c)
		}
	}
	walkMarkers(doc.Root)

	for _, r := range pairs {
		r.argInfo = argInfoOf(doc, r.startElem)
		r.parts = []*token.TemplateArgInfo{r.argInfo}
	}
	return pairs, nil
}

func isMarkerStart(typeOf string) bool {
	return typeOf == "mw:Transclusion/Start" || typeOf == "mw:Param/Start"
}

func isMarkerEnd(typeOf string) bool {
	return typeOf == "mw:Transclusion/End" || typeOf == "mw:Param/End"
}

// buildRange finds the common ancestor of start and end, and the pair of
// ancestor-children that bracket the range (spec.md §4.6 Phase A step 1).
func buildRange(doc *dom.Document, id int, about string, start, end *dom.Node) *tplRange {
	isParam := false
	if typeOf, ok := start.Attr_("typeof"); ok {
		isParam = typeOf == "mw:Param/Start"
	}

	ancestorSet := map[*dom.Node]bool{}
	for p := start; p != nil; p = p.Parent {
		ancestorSet[p] = true
	}

	var common *dom.Node
	endChild := end
	for p := end; p != nil; p = p.Parent {
		if ancestorSet[p] {
			common = p
			break
		}
		endChild = p
	}
	if common == nil {
		common = doc.Root
	}

	startChild := start
	for p := start; p != nil && p != common; p = p.Parent {
		startChild = p
	}

	r := &tplRange{
		id:        id,
		about:     about,
		isParam:   isParam,
		startElem: start,
		endElem:   end,
		start:     startChild,
		end:       endChild,
		parent:    common,
	}
	if dsr := tsrOf(doc, start); !dsr.IsZero() {
		r.startSrc = token.TSR{Start: dsr.Start, End: dsr.End, Known: true}
	}

	if start != end && r.start != nil && r.end != nil {
		if siblingIndex(r.start) > siblingIndex(r.end) {
			r.flipped = true
		}
	}
	return r
}

func siblingIndex(n *dom.Node) int {
	i := 0
	for p := n.PrevSibling; p != nil; p = p.PrevSibling {
		i++
	}
	return i
}

func tsrOf(doc *dom.Document, n *dom.Node) dom.Span {
	if !doc.HasData(n) {
		return dom.Span{}
	}
	return doc.DataFor(n).Parsoid.TSR
}

func argInfoOf(doc *dom.Document, startElem *dom.Node) *token.TemplateArgInfo {
	if doc.HasData(startElem) {
		if ai := doc.DataFor(startElem).Parsoid.TplArgInfo; ai != nil {
			return ai
		}
	}
	// No threaded provenance (e.g. a synthetic/cloned marker): fall back to
	// an empty argInfo rather than a nil pointer, so Phase C step 5 still
	// produces a valid, if terser, data-mw entry.
	return &token.TemplateArgInfo{}
}

// findTopLevelNonOverlappingRanges is Phase B: resolve subsumption and
// sibling overlap into a flat, ordered, non-overlapping set (spec.md §4.6
// Phase B).
func findTopLevelNonOverlappingRanges(doc *dom.Document, ranges []*tplRange) []*tplRange {
	// Tag every node in every range's span with the covering range ids
	// (Phase B step 1).
	covers := map[*dom.Node][]*tplRange{}
	for _, r := range ranges {
		if r.parent == nil {
			continue
		}
		for c := r.start; c != nil; c = c.NextSibling {
			covers[c] = append(covers[c], r)
			if c == r.end {
				break
			}
		}
	}

	// Phase B step 2: a range is nested if an ancestor of its start is
	// covered by a *different* range.
	subsumedBy := map[*tplRange]*tplRange{}
	for _, r := range ranges {
		if r.start == nil {
			continue
		}
		for p := r.start.Parent; p != nil; p = p.Parent {
			if others, ok := covers[p]; ok {
				for _, o := range others {
					if o != r {
						subsumedBy[r] = outermost(subsumedBy, o)
						break
					}
				}
			}
			if _, ok := subsumedBy[r]; ok {
				break
			}
		}
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		return rangeOffset(doc, ranges[i]) < rangeOffset(doc, ranges[j])
	})

	var top []*tplRange
	var prev *tplRange
	for _, r := range ranges {
		if outer, ok := subsumedBy[r]; ok && outer != r {
			outer.parts = append(outer.parts, r.argInfo)
			r.subsumed = true
			continue
		}
		if prev != nil && overlapsSibling(prev, r) && !r.flipped {
			prev.end = r.end
			prev.endElem = r.endElem
			prev.parts = append(prev.parts, r.argInfo)
			r.subsumed = true
			continue
		}
		top = append(top, r)
		prev = r
	}
	return top
}

func outermost(subsumedBy map[*tplRange]*tplRange, r *tplRange) *tplRange {
	for {
		if o, ok := subsumedBy[r]; ok && o != r {
			r = o
			continue
		}
		return r
	}
}

func rangeOffset(doc *dom.Document, r *tplRange) int {
	if r.start == nil {
		return 0
	}
	return tsrOf(doc, r.start).Start
}

// overlapsSibling reports whether prev and r are adjacent/overlapping
// siblings under the same parent (a coarse stand-in for the spec's
// flipped-aware endpoint comparison).
func overlapsSibling(prev, r *tplRange) bool {
	if prev.parent != r.parent || prev.end == nil || r.start == nil {
		return false
	}
	for c := prev.end.NextSibling; c != nil; c = c.NextSibling {
		if c == r.start {
			return true
		}
		if c.Type == dom.ElementNode || (c.Type == dom.TextNode && !c.IsWhitespace()) {
			return false
		}
	}
	return false
}

// encapsulateOne is Phase C for a single top-level range: stamp about,
// pick the encapsulation target, merge typeof, compute the range DSR, and
// build data-mw.parts (spec.md §4.6 Phase C).
func encapsulateOne(doc *dom.Document, r *tplRange) error {
	if r.start == nil || r.end == nil || r.parent == nil {
		return fmt.Errorf("range %s has no resolvable DOM span", r.about)
	}

	var target *dom.Node
	for c := r.start; c != nil; c = c.NextSibling {
		if c.Type == dom.ElementNode && c != r.startElem && c != r.endElem {
			target = c
			break
		}
		if c == r.end {
			break
		}
	}
	if target == nil {
		return &perr.EncapsulationError{RangeID: r.about, Msg: "no target element"}
	}

	nd := doc.DataFor(target)
	dp := &nd.Parsoid
	existing, _ := target.Attr_("typeof")
	newType := "mw:Transclusion"
	if r.isParam {
		newType = "mw:Param"
	}
	if existing != "" {
		target.SetAttr("typeof", newType+" "+existing)
	} else {
		target.SetAttr("typeof", newType)
	}
	target.SetAttr("about", r.about)

	for c := r.start; c != nil; c = c.NextSibling {
		if c != target {
			if c.Type == dom.ElementNode {
				c.SetAttr("about", r.about)
			}
		}
		if c == r.end {
			break
		}
	}

	startDSR := doc.DataFor(r.startElem).Parsoid.DSR
	endDSR := doc.DataFor(r.endElem).Parsoid.DSR
	if startDSR.Valid {
		contentEnd := startDSR.ContentEnd
		if endDSR.Valid && endDSR.ContentEnd > contentEnd {
			contentEnd = endDSR.ContentEnd
		}
		dp.DSR = dom.DSR{ContentStart: startDSR.ContentStart, ContentEnd: contentEnd, Valid: true}
	}

	mw := &dom.DataMW{}
	for _, part := range r.parts {
		if part == nil {
			continue
		}
		inv := &dom.TemplateInvocation{Target: dom.TemplateTarget{WT: part.Target}}
		if part.IsParserFunction {
			inv.Target.Function = part.Target
		}
		if len(part.Params) > 0 {
			inv.Params = make(map[string]dom.TemplateParam, len(part.Params))
			for k, v := range part.Params {
				inv.Params[k] = dom.TemplateParam{WT: v.WT}
				dp.PI = append(dp.PI, dom.ParamInfo{Key: k, TSR: dom.Span{Start: v.TSR.Start, End: v.TSR.End}})
			}
		}
		if r.isParam {
			mw.Parts = append(mw.Parts, dom.DataMWPart{TemplateArg: inv})
		} else {
			mw.Parts = append(mw.Parts, dom.DataMWPart{Template: inv})
		}
	}
	nd.MW = mw

	if nd.Parsoid.Fostered && len(mw.Parts) == 1 {
		dp.DSR.ContentEnd = dp.DSR.ContentStart
	}

	removeIfAttached(r.startElem)
	removeIfAttached(r.endElem)
	return nil
}

func removeIfAttached(n *dom.Node) {
	if n == nil || n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

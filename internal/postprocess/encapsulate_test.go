package postprocess

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/token"
)

func meta(typeOf, about string) *dom.Node {
	return &dom.Node{Type: dom.ElementNode, Data: "meta", Attr: []dom.Attribute{
		{Key: "typeof", Val: typeOf},
		{Key: "about", Val: about},
	}}
}

func elem(tag string) *dom.Node {
	return &dom.Node{Type: dom.ElementNode, Data: tag}
}

func TestEncapsulateSimpleTransclusion(t *testing.T) {
	doc := dom.NewDocument(elem("body"), "{{echo|foo}}")

	start := meta("mw:Transclusion/Start", "#mwt1")
	out := elem("span")
	end := meta("mw:Transclusion/End", "#mwt1")

	doc.Root.AppendChild(start)
	doc.Root.AppendChild(out)
	doc.Root.AppendChild(end)

	doc.DataFor(start).Parsoid.TSR = dom.Span{Start: 0, End: 11}
	doc.DataFor(start).Parsoid.DSR = dom.DSR{ContentStart: 0, ContentEnd: 11, Valid: true}
	doc.DataFor(start).Parsoid.TplArgInfo = &token.TemplateArgInfo{
		Target: "echo",
		Params: map[string]token.ParamInfo{"1": {WT: "foo"}},
	}
	doc.DataFor(end).Parsoid.DSR = dom.DSR{ContentStart: 11, ContentEnd: 11, Valid: true}

	require.NoError(t, runEncapsulate(doc, &Env{}, true))

	typeOf, ok := out.Attr_("typeof")
	require.True(t, ok)
	require.Equal(t, "mw:Transclusion", typeOf)

	about, ok := out.Attr_("about")
	require.True(t, ok)
	require.Equal(t, "#mwt1", about)

	require.Nil(t, start.Parent, "start marker should be detached")
	require.Nil(t, end.Parent, "end marker should be detached")

	nd := doc.DataFor(out)
	require.NotNil(t, nd.MW)
	require.Len(t, nd.MW.Parts, 1)
	require.True(t, nd.Parsoid.DSR.Valid)
	require.Equal(t, 0, nd.Parsoid.DSR.ContentStart)

	wantPart := dom.DataMWPart{Template: &dom.TemplateInvocation{
		Target: dom.TemplateTarget{WT: "echo"},
		Params: map[string]dom.TemplateParam{"1": {WT: "foo"}},
	}}
	if diff := cmp.Diff(wantPart, nd.MW.Parts[0]); diff != "" {
		t.Errorf("data-mw part mismatch (-want +got):\n%s", diff)
	}
}

func TestEncapsulateNestedRangeIsSubsumed(t *testing.T) {
	doc := dom.NewDocument(elem("body"), "{{outer|{{inner}}}}")

	outerStart := meta("mw:Transclusion/Start", "#mwt1")
	target := elem("span")
	innerStart := meta("mw:Transclusion/Start", "#mwt2")
	innerEnd := meta("mw:Transclusion/End", "#mwt2")
	outerEnd := meta("mw:Transclusion/End", "#mwt1")

	// inner's markers live inside the element the outer range produced,
	// the shape a template nested within another template's output takes.
	target.AppendChild(innerStart)
	target.AppendChild(innerEnd)

	doc.Root.AppendChild(outerStart)
	doc.Root.AppendChild(target)
	doc.Root.AppendChild(outerEnd)

	require.NoError(t, runEncapsulate(doc, &Env{}, true))

	// Only the outer range should survive as a top-level encapsulation.
	typeOf, ok := target.Attr_("typeof")
	require.True(t, ok)
	require.Equal(t, "mw:Transclusion", typeOf)

	about, _ := target.Attr_("about")
	require.Equal(t, "#mwt1", about)

	nd := doc.DataFor(target)
	require.Len(t, nd.MW.Parts, 2, "outer range should absorb the nested range's argInfo")
}

func TestEncapsulateNoMarkersIsNoop(t *testing.T) {
	doc := dom.NewDocument(elem("body"), "plain text")
	p := elem("p")
	doc.Root.AppendChild(p)

	require.NoError(t, runEncapsulate(doc, &Env{}, true))
	require.False(t, doc.HasData(p))
}

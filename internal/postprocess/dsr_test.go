package postprocess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nikolas/parsoid/internal/dom"
)

func TestComputeDSRMergesFromChildren(t *testing.T) {
	body := elem("body")
	doc := dom.NewDocument(body, "0123456789ab")

	p := elem("p")
	span1 := elem("span")
	span2 := elem("span")

	body.AppendChild(p)
	p.AppendChild(span1)
	p.AppendChild(span2)

	// Registering p (without a TSR of its own) mirrors the tree builder
	// always allocating a data record, even when it carries no own span.
	doc.DataFor(p)
	doc.DataFor(span1).Parsoid.TSR = dom.Span{Start: 0, End: 5}
	doc.DataFor(span2).Parsoid.TSR = dom.Span{Start: 8, End: 12}

	require.NoError(t, runDSR(doc, &Env{}, true))

	pDSR := doc.DataFor(p).Parsoid.DSR
	require.True(t, pDSR.Valid)
	require.Equal(t, 0, pDSR.ContentStart)
	require.Equal(t, 12, pDSR.ContentEnd)

	span1DSR := doc.DataFor(span1).Parsoid.DSR
	require.True(t, span1DSR.Valid)
	require.Equal(t, 0, span1DSR.ContentStart)
	require.Equal(t, 5, span1DSR.ContentEnd)
}

func TestComputeDSRInvalidWithoutAnyTSR(t *testing.T) {
	body := elem("body")
	doc := dom.NewDocument(body, "no offsets here")

	p := elem("p")
	body.AppendChild(p)
	text := &dom.Node{Type: dom.TextNode, Data: "no offsets here"}
	p.AppendChild(text)

	doc.DataFor(p)

	require.NoError(t, runDSR(doc, &Env{}, true))

	pDSR := doc.DataFor(p).Parsoid.DSR
	require.False(t, pDSR.Valid)
}

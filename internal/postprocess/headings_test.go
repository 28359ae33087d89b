package postprocess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nikolas/parsoid/internal/dom"
)

func heading(tag, text string) *dom.Node {
	h := elem(tag)
	h.AppendChild(&dom.Node{Type: dom.TextNode, Data: text})
	return h
}

func TestHeadingAnchorsAndDedup(t *testing.T) {
	body := elem("body")
	doc := dom.NewDocument(body, "")

	h1 := heading("h2", "Overview")
	h2 := heading("h2", "Overview")
	body.AppendChild(h1)
	body.AppendChild(h2)

	require.NoError(t, runHeadingAnchors(doc, &Env{}, true))
	id1, _ := h1.Attr_("id")
	id2, _ := h2.Attr_("id")
	require.Equal(t, "Overview", id1)
	require.Equal(t, "Overview", id2, "anchors pass alone does not dedup")

	require.NoError(t, runHeadingIDDedup(doc, &Env{}, true))
	id1, _ = h1.Attr_("id")
	id2, _ = h2.Attr_("id")
	require.Equal(t, "Overview", id1)
	require.Equal(t, "Overview_2", id2)
}

func TestAnchorizeStripsUnsafeCharsAndSpaces(t *testing.T) {
	require.Equal(t, "Foo_Bar", anchorize("  Foo Bar  "))
	require.Equal(t, "_", anchorize("!!!"))
}

func TestAnchorizePreservesNonASCII(t *testing.T) {
	require.Equal(t, "Références", anchorize("Références"))
}

func TestLegacyFallbackIDEscapesNonASCIIBytes(t *testing.T) {
	require.Equal(t, "R.C3.A9f.C3.A9rences", legacyFallbackID("Références"))
}

func TestHeadingAnchorsEmitsFallbackIdForNonASCII(t *testing.T) {
	body := elem("body")
	doc := dom.NewDocument(body, "")

	h := heading("h1", "Références")
	body.AppendChild(h)

	require.NoError(t, runHeadingAnchors(doc, &Env{}, true))

	id, _ := h.Attr_("id")
	require.Equal(t, "Références", id)

	fallback := h.LastChild
	require.NotNil(t, fallback)
	require.Equal(t, "span", fallback.Data)
	typeOf, _ := fallback.Attr_("typeof")
	require.Equal(t, "mw:FallbackId", typeOf)
	fallbackID, _ := fallback.Attr_("id")
	require.Equal(t, "R.C3.A9f.C3.A9rences", fallbackID)
}

func TestSectionWrapGroupsByRank(t *testing.T) {
	body := elem("body")
	doc := dom.NewDocument(body, "")

	h1 := heading("h2", "A")
	p1 := elem("p")
	h2 := heading("h2", "B")
	p2 := elem("p")
	body.AppendChild(h1)
	body.AppendChild(p1)
	body.AppendChild(h2)
	body.AppendChild(p2)

	require.NoError(t, runSectionWrap(doc, &Env{}, true))

	var sections []*dom.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		sections = append(sections, c)
	}
	require.Len(t, sections, 2)
	for _, s := range sections {
		require.Equal(t, "section", s.Data)
	}

	require.Equal(t, h1, sections[0].FirstChild)
	require.Equal(t, p1, sections[0].LastChild)
	require.Equal(t, h2, sections[1].FirstChild)
	require.Equal(t, p2, sections[1].LastChild)
}

package pipeline

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/nikolas/parsoid/internal/dataaccess"
	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/siteconfig"
)

func newTestFactory(files fstest.MapFS) *Factory {
	site := siteconfig.New()
	data := dataaccess.NewFSClient(files)
	return NewFactory(site, data)
}

func TestParsePlainTextProducesBody(t *testing.T) {
	f := newTestFactory(fstest.MapFS{})
	p := f.Get(Options{Recipe: "page"})

	pc := siteconfig.PageConfig{Title: "Test"}
	doc, err := p.Parse(context.Background(), pc, "hello world", true)
	require.NoError(t, err)
	require.NotNil(t, doc.Root)
}

func TestParseTemplateTransclusionEncapsulates(t *testing.T) {
	files := fstest.MapFS{
		"Template/Echo.wikitext": &fstest.MapFile{Data: []byte("hi")},
	}
	f := newTestFactory(files)
	p := f.Get(Options{Recipe: "page"})

	pc := siteconfig.PageConfig{Title: "Test"}
	doc, err := p.Parse(context.Background(), pc, "{{Echo}}", true)
	require.NoError(t, err)

	var found *dom.Node
	var walk func(*dom.Node)
	walk = func(n *dom.Node) {
		if found != nil || n == nil {
			return
		}
		if n.Type == dom.ElementNode {
			if typeOf, ok := n.Attr_("typeof"); ok && typeOf == "mw:Transclusion" {
				found = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc.Root)
	require.NotNil(t, found, "expected one element stamped typeof=mw:Transclusion")

	nd := doc.DataFor(found)
	require.NotNil(t, nd.MW)
	require.Len(t, nd.MW.Parts, 1)
	require.NotNil(t, nd.MW.Parts[0].Template)
	require.Equal(t, "Echo", nd.MW.Parts[0].Template.Target.WT)
}

// TestIdempotentSecondPass checks that parsing the same wikitext twice with
// the same pipeline instance yields the same text content, i.e. state left
// on the pipeline by the first Parse does not change the second result.
func TestIdempotentSecondPass(t *testing.T) {
	f := newTestFactory(fstest.MapFS{})
	p := f.Get(Options{Recipe: "page"})
	pc := siteconfig.PageConfig{Title: "Test"}

	doc1, err := p.Parse(context.Background(), pc, "hello world", true)
	require.NoError(t, err)

	doc2, err := p.Parse(context.Background(), pc, "hello world", true)
	require.NoError(t, err)

	require.Equal(t, textOf(doc1.Root), textOf(doc2.Root))
}

func textOf(n *dom.Node) string {
	var s string
	if n.Type == dom.TextNode {
		s += n.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s += textOf(c)
	}
	return s
}

// Command parsoid is the CLI driver (spec.md §6 "CLI surface"): the thin,
// out-of-scope external collaborator that wires a PageConfig and the
// site-config/data-access collaborators into the core pipeline (C12) and
// prints the resulting HTML plus its PageBundle.
//
// html2wt/wt2wt/html2html are not implemented: the selective HTML-to-
// wikitext serializer is explicitly out of scope for the core (spec.md §1,
// "Out of scope (external collaborators): ... the selective HTML->wikitext
// serializer").
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/nikolas/parsoid/internal/dataaccess"
	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/pipeline"
	"github.com/nikolas/parsoid/internal/postprocess"
	"github.com/nikolas/parsoid/internal/siteconfig"
	"github.com/nikolas/parsoid/internal/tracesrv"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("parsoid", flag.ContinueOnError)
	fs.SetOutput(stderr)

	mode := fs.String("mode", "wt2html", "wt2html|html2wt|wt2wt|html2html")
	wt2htmlFlag := fs.Bool("wt2html", false, "shorthand for -mode=wt2html")
	html2wtFlag := fs.Bool("html2wt", false, "shorthand for -mode=html2wt")
	wt2wtFlag := fs.Bool("wt2wt", false, "shorthand for -mode=wt2wt")
	html2htmlFlag := fs.Bool("html2html", false, "shorthand for -mode=html2html")

	pageName := fs.String("pageName", "Test", "title of the page being parsed")
	domain := fs.String("domain", "", "wiki domain, e.g. en.wikipedia.org")
	apiURL := fs.String("apiURL", "", "MediaWiki action API base URL")
	_ = fs.Bool("linting", false, "enable the (unimplemented) linter pass")
	_ = fs.Bool("wrapSections", true, "accepted and ignored; section wrapping always runs")
	_ = fs.Bool("scrubWikitext", false, "accepted and ignored")
	_ = fs.Bool("selser", false, "selective serialization (html2wt only)")
	oldtext := fs.String("oldtext", "", "previous wikitext, for -selser")
	oldtextfile := fs.String("oldtextfile", "", "file containing previous wikitext")
	oldhtmlfile := fs.String("oldhtmlfile", "", "file containing previous HTML")
	dump := fs.String("dump", "", "comma-separated dump shortcuts")
	trace := fs.String("trace", "", "comma-separated trace channels")
	_ = fs.String("outputContentVersion", "2.x", "accepted and ignored; no content version is stamped")
	offsetType := fs.String("offsetType", "byte", "byte|ucs2|char")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	switch {
	case *wt2htmlFlag:
		*mode = "wt2html"
	case *html2wtFlag:
		*mode = "html2wt"
	case *wt2wtFlag:
		*mode = "wt2wt"
	case *html2htmlFlag:
		*mode = "html2html"
	}
	_ = oldtext
	_ = oldtextfile
	_ = oldhtmlfile
	_ = offsetType

	logLevel := slog.LevelInfo
	if trace != nil && *trace != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))

	switch *mode {
	case "html2wt", "wt2wt", "html2html":
		fmt.Fprintf(stderr, "parsoid: mode %q requires the HTML->wikitext serializer, which is out of scope for this build\n", *mode)
		return 1
	case "wt2html":
		// proceeds below
	default:
		fmt.Fprintf(stderr, "parsoid: unknown mode %q\n", *mode)
		return 1
	}

	src, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "parsoid: read input: %v\n", err)
		return 1
	}

	site := siteconfig.New()
	site.Logger = logger
	if *domain != "" {
		site.BaseURI = "//" + *domain + "/wiki/"
	}

	var data dataaccess.DataAccess
	if *apiURL != "" {
		data = dataaccess.NewHTTPClient(*apiURL)
	} else {
		data = dataaccess.NewFSClient(os.DirFS("."))
	}

	factory := pipeline.NewFactory(site, data)
	p := factory.Get(pipeline.Options{Recipe: "page"})

	var hub *tracesrv.Hub
	if *trace != "" {
		p.Trace = true
		hub = tracesrv.NewHub(logger)
		addr := "127.0.0.1:8765"
		go func() {
			if err := http.ListenAndServe(addr, hub); err != nil {
				logger.Warn("tracesrv: server exited", slog.Any("error", err))
			}
		}()
		fmt.Fprintf(stderr, "parsoid: live trace viewer listening on ws://%s\n", addr)
	}

	if *dump != "" {
		shortcuts := strings.Split(*dump, ",")
		p.Dump = postprocess.NewEtreeDumper(func(stage, xml string) {
			fmt.Fprintf(stderr, "=== dump: %s ===\n%s\n", stage, xml)
			if hub != nil {
				hub.Broadcast(tracesrv.Event{Stage: stage, XML: xml})
			}
		}, shortcuts...)
	} else if hub != nil {
		p.Dump = func(stage string, doc *dom.Document) {
			hub.Broadcast(tracesrv.Event{Stage: stage})
		}
	}

	pc := siteconfig.PageConfig{Title: *pageName, PageDir: "ltr", Source: string(src)}

	doc, err := p.Parse(context.Background(), pc, string(src), true)
	if err != nil {
		fmt.Fprintf(stderr, "parsoid: %v\n", err)
		return 1
	}

	if err := writeOutput(stdout, doc); err != nil {
		fmt.Fprintf(stderr, "parsoid: write output: %v\n", err)
		return 1
	}
	return 0
}

func writeOutput(w io.Writer, doc *dom.Document) error {
	bundle := dom.ExportPageBundle(doc)
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return err
	}

	html := serializeHTML(doc.Root)
	_, err = fmt.Fprintf(w, "%s\n<!-- data-parsoid/data-mw bundle:\n%s\n-->\n", html, bundleJSON)
	return err
}

func serializeHTML(n *dom.Node) string {
	var b []byte
	b = appendNode(b, n)
	return string(b)
}

func appendNode(b []byte, n *dom.Node) []byte {
	if n == nil {
		return b
	}
	switch n.Type {
	case dom.TextNode:
		b = append(b, []byte(n.Data)...)
	case dom.CommentNode:
		b = append(b, "<!--"...)
		b = append(b, n.Data...)
		b = append(b, "-->"...)
	case dom.ElementNode:
		b = append(b, '<')
		b = append(b, n.Data...)
		for _, a := range n.Attr {
			b = append(b, ' ')
			b = append(b, a.Key...)
			b = append(b, '=', '"')
			b = append(b, a.Val...)
			b = append(b, '"')
		}
		b = append(b, '>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b = appendNode(b, c)
		}
		b = append(b, '<', '/')
		b = append(b, n.Data...)
		b = append(b, '>')
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b = appendNode(b, c)
		}
	}
	return b
}

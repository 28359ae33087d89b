// Package pipeline implements C12, the pipeline factory & cache, and wires
// together C2 (tokenizer), C3 (token transform manager), C4 (template/
// extension handlers), C5 (tree builder), and C7 (post-processing driver)
// into the end-to-end wikitext-to-HTML transform (spec.md §4.3).
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nikolas/parsoid/internal/dataaccess"
	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/ext"
	"github.com/nikolas/parsoid/internal/perr"
	"github.com/nikolas/parsoid/internal/postprocess"
	"github.com/nikolas/parsoid/internal/siteconfig"
	"github.com/nikolas/parsoid/internal/token"
	"github.com/nikolas/parsoid/internal/tokenizer"
	"github.com/nikolas/parsoid/internal/treebuilder"
	"github.com/nikolas/parsoid/internal/tt"
)

// Options is the per-pipeline option vector that, together with the
// recipe name, keys the pipeline cache (spec.md §4.3).
type Options struct {
	Recipe        string
	InlineContext bool
	ExtTagName    string
}

func (o Options) key() string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%v|%s", o.Recipe, o.InlineContext, o.ExtTagName)
	return hex.EncodeToString(h.Sum(nil))
}

// Pipeline is one configured instance of the C2->C3->C5->C7 chain.
type Pipeline struct {
	ID      int
	Site    *siteconfig.Config
	Data    dataaccess.DataAccess
	Tok     tokenizer.Tokenizer
	Mgr     *tt.Manager
	Driver  *postprocess.Driver
	Logger  *slog.Logger

	// Trace and Dump, when set, are forwarded to the post-processing
	// Env on every Parse call (spec.md §6 --trace/--dump).
	Trace bool
	Dump  func(stage string, doc *dom.Document)

	aboutCounter int
}

// Factory is the pipeline factory & cache (C12): pipelines are pooled,
// keyed by (recipe, option-hash), with a cap per key so nested
// transclusion expansion reuses configured pipelines instead of rebuilding
// the transform manager from scratch on every {{template}} (spec.md §4.3,
// §5 "Shared resources. The pipeline cache in C12 is per-document").
type Factory struct {
	Site   *siteconfig.Config
	Data   dataaccess.DataAccess
	Logger *slog.Logger

	mu      sync.Mutex
	pools   map[string][]*Pipeline
	nextID  int
	maxPool int
}

// NewFactory builds a per-document Factory. Per spec.md §5, the cache is
// owned by the outer context (one Factory per document being processed).
func NewFactory(site *siteconfig.Config, data dataaccess.DataAccess) *Factory {
	return &Factory{
		Site:    site,
		Data:    data,
		Logger:  site.Logger,
		pools:   make(map[string][]*Pipeline),
		maxPool: 100,
	}
}

// Get returns a Pipeline configured for opts, reusing a pooled instance
// when available.
func (f *Factory) Get(opts Options) *Pipeline {
	key := opts.key()

	f.mu.Lock()
	if pool := f.pools[key]; len(pool) > 0 {
		p := pool[len(pool)-1]
		f.pools[key] = pool[:len(pool)-1]
		f.mu.Unlock()
		return p
	}
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	return f.build(id, opts)
}

// Put returns p to the pool for future reuse, subject to the per-key cap.
func (f *Factory) Put(opts Options, p *Pipeline) {
	key := opts.key()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pools[key]) >= f.maxPool {
		return
	}
	f.pools[key] = append(f.pools[key], p)
}

func (f *Factory) build(id int, opts Options) *Pipeline {
	mgr := tt.NewManager()
	registerIncludeStage(mgr, opts)

	disp := ext.NewDispatcher()
	mgr.Register(tt.StageExpand, tt.Registration{Name: "#transclusion", Handler: disp.HandleTransclusion, Label: "transclusion"})
	mgr.Register(tt.StageExpand, tt.Registration{Wildcard: true, Handler: disp.HandleExtensionTag, Label: "extensiontag"})

	return &Pipeline{
		ID:     id,
		Site:   f.Site,
		Data:   f.Data,
		Tok:    &tokenizer.Scanner{Extensions: f.Site},
		Mgr:    mgr,
		Driver: postprocess.NewDriver(),
		Logger: f.Logger,
	}
}

// registerIncludeStage wires stage 1 (spec.md §4.1): <onlyinclude>,
// <includeonly>, <noinclude> directives. The handlers act on the directive
// tags only, not on the content between them: a top-level parse drops
// <includeonly> tags and keeps <noinclude> tags, a pipeline built for the
// "template" recipe does the reverse, and <onlyinclude> tags are always
// kept. The enclosed content passes through unchanged in every case.
func registerIncludeStage(mgr *tt.Manager, opts Options) {
	nested := opts.Recipe == "template"
	for _, name := range []string{"onlyinclude", "includeonly", "noinclude"} {
		n := name
		mgr.Register(tt.StageIncludes, tt.Registration{
			Name:  n,
			Label: "include-directive:" + n,
			Handler: func(ctxAny any, tok token.Token) (tt.Result, error) {
				switch n {
				case "includeonly":
					if nested {
						return tt.Result{Action: tt.Unchanged}, nil
					}
					return tt.Result{Action: tt.Replace, Tokens: nil}, nil
				case "noinclude":
					if nested {
						return tt.Result{Action: tt.Replace, Tokens: nil}, nil
					}
					return tt.Result{Action: tt.Unchanged}, nil
				default: // onlyinclude
					return tt.Result{Action: tt.Unchanged}, nil
				}
			},
		})
	}
}

// Parse runs src through the full C2->C3->C5->C7 chain and returns the
// resulting DOM document (spec.md §4.3).
func (p *Pipeline) Parse(goCtx context.Context, pc siteconfig.PageConfig, src string, atTopLevel bool) (*dom.Document, error) {
	toks, err := p.Tok.Tokenize(src)
	if err != nil {
		return nil, perr.NewClientError(pc.Title, "tokenize", err)
	}
	toks = append(toks, token.NewEOF())

	ectx := &ext.Ctx{
		GoCtx:        goCtx,
		PageConfig:   pc,
		Site:         p.Site,
		Data:         p.Data,
		Logger:       p.Logger,
		AboutCounter: &p.aboutCounter,
		Recur: func(childCtx *ext.Ctx, body string) ([]token.Token, error) {
			childToks, err := p.Tok.Tokenize(body)
			if err != nil {
				return nil, perr.NewClientError(pc.Title, "tokenize nested body", err)
			}
			childToks = append(childToks, token.NewEOF())
			return p.Mgr.Run(childCtx, childToks)
		},
	}

	transformed, err := p.Mgr.Run(ectx, toks)
	if err != nil {
		return nil, err
	}

	doc, err := treebuilder.Build(transformed, src)
	if err != nil {
		return nil, err
	}

	env := &postprocess.Env{Logger: p.Logger, Site: p.Site, Trace: p.Trace, Dump: p.Dump}
	if err := p.Driver.Run(doc, env, atTopLevel); err != nil {
		return nil, err
	}
	return doc, nil
}

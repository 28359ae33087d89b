// Package postprocess implements the post-processing pipeline driver (C7)
// and its 22 ordered passes (C8-C11, C13): fostered-content marking, DSR
// computation, template-range encapsulation, and DOM finalization.
//
// Grounded on the teacher's chtml/render.go render-dispatch loop: a fixed
// ordered sequence of stages, each one either synchronous or operating via
// the per-tag traverser (C6), with errors aborting the document rather than
// being silently swallowed.
package postprocess

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nikolas/parsoid/internal/dom"
	"github.com/nikolas/parsoid/internal/perr"
)

// Env is the subset of pipeline/site state a pass needs.
type Env struct {
	Logger *slog.Logger
	Site   any // *siteconfig.Config, typed loosely to avoid an import cycle
	Trace  bool
	Dump   func(stage string, doc *dom.Document)
}

// Pass is one entry of the ordered post-processing pipeline (spec.md §4.7).
type Pass struct {
	// Shortcut is the tracing id, e.g. "mark-fostered".
	Shortcut string

	// SkipNested means this pass only runs for the top-level pipeline
	// (spec.md §4.7 items 4, 8, 9, 12, 15, 17, 20).
	SkipNested bool

	// Omit compile-time disables a pass (spec.md §4.7 items 18, 22 are
	// optional).
	Omit bool

	Run func(doc *dom.Document, env *Env, atTopLevel bool) error
}

// Driver runs an ordered list of Passes (spec.md §4.7).
type Driver struct {
	Passes []Pass
}

// NewDriver builds the Driver with the full, spec-ordered pass list.
func NewDriver() *Driver {
	return &Driver{Passes: StandardPasses()}
}

// StandardPasses returns the 22 passes from spec.md §4.7, in order. Passes
// that have no real implementation here are no-ops (each run function's
// comment says so) kept in the list rather than omitted, so pass numbering
// and tracing output follow the full 22-step order.
func StandardPasses() []Pass {
	return []Pass{
		{Shortcut: "mark-fostered", Run: runMarkFostered},
		{Shortcut: "tree-builder-fixups", Run: runTreeBuilderFixups},
		{Shortcut: "normalize", Run: runNormalize},
		{Shortcut: "paragraph-wrap", SkipNested: true, Run: runParagraphWrap},
		{Shortcut: "migrate-marker-metas", Run: runMigrateMarkerMetas},
		{Shortcut: "pre-blocks", Run: runPreBlocks},
		{Shortcut: "migrate-trailing-newlines", Run: runMigrateTrailingNewlines},
		{Shortcut: "dsr", SkipNested: true, Run: runDSR},
		{Shortcut: "encapsulate-templates", SkipNested: true, Run: runEncapsulate},
		{Shortcut: "unpack-fragments", Run: runUnpackFragments},
		{Shortcut: "extension-postprocessors", Run: runExtensionPostProcessors},
		{Shortcut: "list-table-style-fixups", SkipNested: true, Run: runListTableStyleFixups},
		{Shortcut: "media-info", Run: runMediaInfo},
		{Shortcut: "heading-anchors", Run: runHeadingAnchors},
		{Shortcut: "section-wrap", SkipNested: true, Run: runSectionWrap},
		{Shortcut: "heading-id-dedup", Run: runHeadingIDDedup},
		{Shortcut: "variant-conversion", SkipNested: true, Run: runVariantConversion},
		{Shortcut: "linter", Omit: true, Run: runLinter},
		{Shortcut: "strip-marker-metas", Run: runStripMarkerMetas},
		{Shortcut: "external-link-class", SkipNested: true, Run: runExternalLinkClass},
		{Shortcut: "cleanup-and-serialize-data", Run: runCleanupAndSerializeData},
		{Shortcut: "red-link-annotation", Omit: true, Run: runRedLinkAnnotation},
	}
}

// Run executes every non-omitted, applicable pass over doc in order,
// aborting on the first error (spec.md §4.7: "Errors from a pass are
// logged as fatal and abort the document").
func (d *Driver) Run(doc *dom.Document, env *Env, atTopLevel bool) error {
	for _, p := range d.Passes {
		if p.Omit || (p.SkipNested && !atTopLevel) {
			continue
		}
		start := time.Now()
		err := p.Run(doc, env, atTopLevel)
		if env.Trace && env.Logger != nil {
			env.Logger.Debug("postprocess: pass complete",
				slog.String("pass", p.Shortcut),
				slog.Duration("elapsed", time.Since(start)),
			)
		}
		if env.Dump != nil {
			env.Dump(p.Shortcut, doc)
		}
		if err != nil {
			if env.Logger != nil {
				env.Logger.Error("postprocess: fatal pass error",
					slog.String("pass", p.Shortcut),
					slog.Any("error", err),
				)
			}
			return perr.NewFatalPassError(p.Shortcut, err)
		}
	}
	return nil
}

func logPass(env *Env, name string, err error) {
	if env.Logger == nil {
		return
	}
	env.Logger.Warn(fmt.Sprintf("postprocess: %s", name), slog.Any("error", err))
}

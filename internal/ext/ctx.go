// Package ext implements the template & extension handlers (C4): resolving
// transclusions and extension tags encountered during stage 2 of the token
// transform manager (C3) into expanded token streams or DOM fragments.
package ext

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nikolas/parsoid/internal/dataaccess"
	"github.com/nikolas/parsoid/internal/siteconfig"
	"github.com/nikolas/parsoid/internal/token"
)

// RecurFunc tokenizes and runs src through the full three-stage token
// transform pipeline, recursively, for template/parser-function bodies and
// template-argument values. The pipeline package supplies the concrete
// implementation; ext only depends on this narrow function type to avoid
// an import cycle with pipeline (which constructs and wires the
// Dispatcher below).
type RecurFunc func(ctx *Ctx, src string) ([]token.Token, error)

// Ctx is the token-transform-manager context threaded through every C4
// handler invocation (the "ctx any" parameter of tt.Handler).
type Ctx struct {
	GoCtx      context.Context
	PageConfig siteconfig.PageConfig
	Site       *siteconfig.Config
	Data       dataaccess.DataAccess
	Logger     *slog.Logger

	// ArgBindings holds the positional/named argument values available
	// while expanding a template body, for resolving
	// {{{name|default}}} template-argument references (spec.md §4.2).
	// Nil outside of template-body expansion.
	ArgBindings map[string]string

	// AboutCounter hands out per-document unique #mwt<n> about ids to
	// every transclusion's marker pair (spec.md §4.2).
	AboutCounter *int

	// Depth guards against runaway recursive expansion (template
	// transcluding itself, etc).
	Depth int

	// Recur invokes the full stage 1-3 pipeline on a template/parser-
	// function body or an argument value.
	Recur RecurFunc
}

// MaxExpansionDepth bounds template recursion; exceeding it raises a
// ClientError rather than overflowing the call stack (real installations
// use the same kind of fixed depth cap as MediaWiki's $wgMaxTemplateDepth).
const MaxExpansionDepth = 40

// NextAbout returns the next #mwt<n> about id for this document.
func (c *Ctx) NextAbout() string {
	*c.AboutCounter++
	return "#mwt" + strconv.Itoa(*c.AboutCounter)
}

// child builds a derived Ctx for expanding a nested template body, with
// its own argument bindings and incremented depth.
func (c *Ctx) child(args map[string]string) *Ctx {
	cp := *c
	cp.ArgBindings = args
	cp.Depth = c.Depth + 1
	return &cp
}

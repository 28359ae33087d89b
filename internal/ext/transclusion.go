package ext

import (
	"fmt"
	"strings"

	"github.com/nikolas/parsoid/internal/perr"
	"github.com/nikolas/parsoid/internal/token"
	"github.com/nikolas/parsoid/internal/tt"
)

// Dispatcher implements the C4 template & extension handlers.
type Dispatcher struct {
	ParserFunctions map[string]ParserFunction
	Extensions      ExtensionLookup
}

// ExtensionLookup resolves a native extension by tag name. No type in this
// module implements it and NewDispatcher leaves Extensions nil;
// HandleExtensionTag looks extensions up in ctx.Site.Extensions instead.
type ExtensionLookup interface {
	Lookup(name string) (native any, ok bool)
}

// NewDispatcher builds a Dispatcher with the standard native parser
// function family registered (spec.md §6, original_source/ supplement).
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{ParserFunctions: make(map[string]ParserFunction)}
	RegisterParserFunctions(d)
	return d
}

// HandleTransclusion is the tt.Handler for Transclusion tokens
// (Registration{Name: "#transclusion"}).
func (d *Dispatcher) HandleTransclusion(ctxAny any, tok token.Token) (tt.Result, error) {
	ctx, ok := ctxAny.(*Ctx)
	if !ok {
		return tt.Result{}, perr.NewInternalException("ext: wrong ctx type", nil)
	}
	tp := tok.Transclusion
	if tp == nil {
		return tt.Result{}, perr.NewInternalException("ext: transclusion token missing payload", nil)
	}

	if ctx.Depth > MaxExpansionDepth {
		return tt.Result{}, perr.NewClientError("", "template recursion depth exceeded", nil)
	}

	if tp.IsArg {
		return d.expandArgRef(ctx, tp)
	}
	return d.expandTemplate(ctx, tp)
}

// expandArgRef resolves a {{{name|default}}} template-argument reference.
func (d *Dispatcher) expandArgRef(ctx *Ctx, tp *token.TransclusionPayload) (tt.Result, error) {
	name := tp.Target
	var value string
	var found bool
	if ctx.ArgBindings != nil {
		value, found = ctx.ArgBindings[name]
	}
	if !found {
		if len(tp.Args) > 0 {
			value = strings.TrimSpace(tp.Args[0].WT)
			found = true
		}
	}
	if !found {
		// Undefined, no default: MediaWiki renders the raw {{{name}}}
		// source back out verbatim.
		return tt.Result{Action: tt.Replace, Tokens: []token.Token{
			token.NewText("{{{"+name+"}}}", tp.TSR),
		}}, nil
	}

	about := ctx.NextAbout()
	expanded, err := ctx.Recur(ctx, value)
	if err != nil {
		return tt.Result{}, err
	}
	expanded = stripEOF(expanded)

	out := make([]token.Token, 0, len(expanded)+2)
	start := token.NewMarkerMeta(token.MarkerStart, about, true, tp.TSR)
	start.DataAttribs.TplArgInfo = &token.TemplateArgInfo{
		Target: name,
		Params: map[string]token.ParamInfo{"1": {WT: value}},
	}
	out = append(out, start)
	out = append(out, expanded...)
	out = append(out, token.NewMarkerMeta(token.MarkerEnd, about, true, tp.TSR))

	return tt.Result{Action: tt.ReEnqueue, Tokens: out}, nil
}

// expandTemplate resolves a {{target|args}} construct: a parser function
// if target matches a registered #name, else a template transclusion
// fetched through the data-access collaborator (spec.md §4.2).
func (d *Dispatcher) expandTemplate(ctx *Ctx, tp *token.TransclusionPayload) (tt.Result, error) {
	target := strings.TrimSpace(tp.Target)

	if fn, name, ok := d.lookupParserFunction(target); ok {
		return d.expandParserFunction(ctx, fn, name, target, tp)
	}

	title := normalizeTemplateTitle(target)
	src, err := ctx.Data.FetchTemplateSource(ctx.GoCtx, title)
	if err != nil {
		// ClientError: render an error span, continue (spec.md §7).
		about := ctx.NextAbout()
		msg := fmt.Sprintf("%s (missing)", title)
		return tt.Result{Action: tt.Replace, Tokens: bracket(about, tp.TSR, false, &token.TemplateArgInfo{Target: target}, []token.Token{
			token.NewText(msg, tp.TSR),
		})}, nil
	}

	args := bindArgs(tp)
	childCtx := ctx.child(args)
	expanded, err := ctx.Recur(childCtx, src)
	if err != nil {
		return tt.Result{}, err
	}
	expanded = stripEOF(expanded)

	about := ctx.NextAbout()
	argInfo := &token.TemplateArgInfo{Target: target, Params: make(map[string]token.ParamInfo, len(tp.Args))}
	for i, a := range tp.Args {
		k, v := splitNamedArg(a.WT, i)
		argInfo.Params[k] = token.ParamInfo{WT: v, TSR: a.TSR}
	}

	out := bracket(about, tp.TSR, false, argInfo, expanded)
	return tt.Result{Action: tt.ReEnqueue, Tokens: out}, nil
}

func bracket(about string, tsr token.TSR, isParam bool, argInfo *token.TemplateArgInfo, body []token.Token) []token.Token {
	start := token.NewMarkerMeta(token.MarkerStart, about, isParam, tsr)
	start.DataAttribs.TplArgInfo = argInfo
	out := make([]token.Token, 0, len(body)+2)
	out = append(out, start)
	out = append(out, body...)
	out = append(out, token.NewMarkerMeta(token.MarkerEnd, about, isParam, tsr))
	return out
}

func stripEOF(toks []token.Token) []token.Token {
	if n := len(toks); n > 0 && toks[n-1].Kind == token.EOF {
		return toks[:n-1]
	}
	return toks
}

// bindArgs builds the positional/named argument map available to
// {{{...}}} references inside the template body being expanded.
func bindArgs(tp *token.TransclusionPayload) map[string]string {
	args := make(map[string]string, len(tp.Args))
	pos := 1
	for _, a := range tp.Args {
		k, v := splitNamedArg(a.WT, pos-1)
		args[k] = v
		if _, named := splitNamed(a.WT); !named {
			pos++
		}
	}
	return args
}

func splitNamedArg(raw string, posIndex int) (key, val string) {
	if k, v, named := splitNamedRaw(raw); named {
		return k, v
	}
	return fmt.Sprintf("%d", posIndex+1), strings.TrimSpace(raw)
}

func splitNamed(raw string) (string, bool) {
	_, _, named := splitNamedRaw(raw)
	return "", named
}

// splitNamedRaw splits "name=value" on the first top-level "=", respecting
// nested {{ }} and [[ ]] the same way token-splitting does. Returns
// named=false if no top-level "=" is found.
func splitNamedRaw(raw string) (name, val string, named bool) {
	depthCurly, depthSquare := 0, 0
	for i := 0; i < len(raw); i++ {
		switch {
		case strings.HasPrefix(raw[i:], "{{"):
			depthCurly++
			i++
		case strings.HasPrefix(raw[i:], "}}"):
			if depthCurly > 0 {
				depthCurly--
			}
			i++
		case raw[i] == '[':
			depthSquare++
		case raw[i] == ']':
			if depthSquare > 0 {
				depthSquare--
			}
		case raw[i] == '=' && depthCurly == 0 && depthSquare == 0:
			return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:]), true
		}
	}
	return "", "", false
}

// normalizeTemplateTitle applies the default "Template:" namespace prefix
// when target has no namespace prefix of its own.
func normalizeTemplateTitle(target string) string {
	if strings.Contains(target, ":") {
		return target
	}
	return "Template:" + target
}

func (d *Dispatcher) lookupParserFunction(target string) (ParserFunction, string, bool) {
	name := target
	if idx := strings.Index(target, ":"); idx >= 0 {
		name = target[:idx]
	}
	fn, ok := d.ParserFunctions[strings.ToLower(strings.TrimSpace(name))]
	return fn, name, ok
}

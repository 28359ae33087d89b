package ext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/nikolas/parsoid/internal/token"
	"github.com/nikolas/parsoid/internal/tt"
)

// ParserFunction implements one native MediaWiki-style parser function
// (spec.md §4.2 supplement: "#if", "#ifeq", "#switch", "#expr", "#ifexpr").
// args are the raw, unexpanded wikitext pipe-arguments that followed the
// function name in the {{#name:arg1|arg2|...}} construct.
type ParserFunction func(ctx *Ctx, args []string) (string, error)

// RegisterParserFunctions installs the standard native parser function
// family into d.
func RegisterParserFunctions(d *Dispatcher) {
	d.ParserFunctions["#if"] = pfIf
	d.ParserFunctions["#ifeq"] = pfIfEq
	d.ParserFunctions["#switch"] = pfSwitch
	d.ParserFunctions["#expr"] = pfExpr
	d.ParserFunctions["#ifexpr"] = pfIfExpr
	d.ParserFunctions["#ifexist"] = pfIfExist
}

// expandParserFunction expands a {{#name:arg1|arg2|...}} construct: args
// are first substituted for template-argument references against the
// current ArgBindings (shallow, non-recursive — args are only tokenized
// once the function selects which one(s) survive), then handed to fn.
func (d *Dispatcher) expandParserFunction(ctx *Ctx, fn ParserFunction, name, target string, tp *token.TransclusionPayload) (tt.Result, error) {
	rest := strings.TrimPrefix(target, name)
	rest = strings.TrimPrefix(rest, ":")
	args := make([]string, 0, len(tp.Args)+1)
	if s := strings.TrimSpace(rest); s != "" {
		args = append(args, s)
	}
	for _, a := range tp.Args {
		args = append(args, a.WT)
	}

	result, err := fn(ctx, args)
	if err != nil {
		return tt.Result{Action: tt.Replace, Tokens: []token.Token{
			token.NewText(fmt.Sprintf("<strong class=\"error\">%v</strong>", err), tp.TSR),
		}}, nil
	}

	expanded, err := ctx.Recur(ctx, result)
	if err != nil {
		return tt.Result{}, err
	}
	return tt.Result{Action: tt.ReEnqueue, Tokens: stripEOF(expanded)}, nil
}

func pfIf(_ *Ctx, args []string) (string, error) {
	cond := argAt(args, 0)
	if strings.TrimSpace(cond) != "" {
		return argAt(args, 1), nil
	}
	return argAt(args, 2), nil
}

func pfIfEq(_ *Ctx, args []string) (string, error) {
	a, b := strings.TrimSpace(argAt(args, 0)), strings.TrimSpace(argAt(args, 1))
	if a == b {
		return argAt(args, 2), nil
	}
	return argAt(args, 3), nil
}

func pfSwitch(_ *Ctx, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	needle := strings.TrimSpace(args[0])
	var defaultVal string
	haveDefault := false
	for i, raw := range args[1:] {
		k, v, named := splitNamedRaw(raw)
		if !named {
			// Bare value: acts as both a case label (a match returns the
			// value itself) and, if it's the last entry, the implicit
			// default.
			if i == len(args)-2 {
				defaultVal = strings.TrimSpace(raw)
				haveDefault = true
			}
			if strings.TrimSpace(raw) == needle {
				return strings.TrimSpace(raw), nil
			}
			continue
		}
		if k == needle || (k == "#default") {
			if k == needle {
				return v, nil
			}
			defaultVal = v
			haveDefault = true
		}
	}
	if haveDefault {
		return defaultVal, nil
	}
	return "", nil
}

// pfExpr evaluates args[0] as an arithmetic/boolean expression using
// expr-lang/expr, translating the handful of MediaWiki operator spellings
// that differ from Go/expr syntax (spec.md domain-stack: "#expr ...
// compile and run ... through expr-lang/expr").
func pfExpr(_ *Ctx, args []string) (string, error) {
	v, err := evalExpr(argAt(args, 0))
	if err != nil {
		return "", err
	}
	return formatExprResult(v), nil
}

func pfIfExpr(_ *Ctx, args []string) (string, error) {
	v, err := evalExpr(argAt(args, 0))
	if err != nil {
		return "", err
	}
	if truthyExpr(v) {
		return argAt(args, 1), nil
	}
	return argAt(args, 2), nil
}

func pfIfExist(ctx *Ctx, args []string) (string, error) {
	title := strings.TrimSpace(argAt(args, 0))
	if ctx.Data == nil {
		return argAt(args, 2), nil
	}
	res, err := ctx.Data.FetchPageExistence(ctx.GoCtx, []string{title})
	if err != nil {
		return argAt(args, 2), nil
	}
	if info, ok := res[title]; ok && info.Exists {
		return argAt(args, 1), nil
	}
	return argAt(args, 2), nil
}

func argAt(args []string, i int) string {
	if i < 0 || i >= len(args) {
		return ""
	}
	return args[i]
}

func evalExpr(src string) (any, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("#expr: empty expression")
	}
	normalized := strings.NewReplacer(
		"<>", "!=",
		" mod ", " % ",
		" and ", " && ",
		" or ", " || ",
		" not ", " !",
	).Replace(normalizeExprEquality(src))
	program, err := expr.Compile(normalized, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("#expr: %w", err)
	}
	out, err := expr.Run(program, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("#expr: %w", err)
	}
	return out, nil
}

// normalizeExprEquality rewrites bare "=" comparisons (MediaWiki) into
// "==" (expr), leaving "==", "!=", "<=", ">=" untouched.
func normalizeExprEquality(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '=' {
			prevOK := i == 0 || (s[i-1] != '=' && s[i-1] != '!' && s[i-1] != '<' && s[i-1] != '>')
			nextOK := i+1 >= len(s) || s[i+1] != '='
			if prevOK && nextOK {
				b.WriteString("==")
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func truthyExpr(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	default:
		return v != nil
	}
}

func formatExprResult(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "1"
		}
		return "0"
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

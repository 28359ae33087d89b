// Package tt implements the token transform manager (C3): three ordered
// stages of token handlers, dispatched per spec.md §4.1. Stage assignment
// and within-stage ordering are authoritative — reordering changes output.
package tt

import "github.com/nikolas/parsoid/internal/token"

// Stage identifies one of the three fixed transform stages.
type Stage int

const (
	StageIncludes Stage = iota // include directives: onlyinclude/includeonly/noinclude
	StageExpand                // templates, extensions, attributes, links, variants, fragments
	StagePatch                 // token-stream patching, pre, quotes, behavior switches, lists, sanitize, paragraphs
	numStages
)

// Action is what a Transformer asks the Manager to do with its result.
type Action int

const (
	// Unchanged means: emit the input token as-is.
	Unchanged Action = iota
	// Replace means: emit Result.Tokens instead of the input token
	// (Result.Tokens may be empty, meaning "drop").
	Replace
	// ReEnqueue means: feed Result.Tokens back through the whole stage
	// from its first transform, so they pass the transforms registered
	// earlier (and the requesting one itself) before continuing (used by
	// template expansion to let its output pass through e.g. the
	// wiki-link handler registered ahead of it — spec.md §4.1).
	ReEnqueue
)

// Result is what a Handler returns.
type Result struct {
	Action Action
	Tokens []token.Token
}

func unchanged() Result { return Result{Action: Unchanged} }

// Handler processes one inbound token and decides its fate. ctx carries
// whatever per-pipeline state (option vector, environment) the handler
// needs; it is opaque to the Manager.
type Handler func(ctx any, tok token.Token) (Result, error)

// Registration binds a Handler to either a specific token name, the EOF
// token, or the wildcard (matches every token), per spec.md §4.1: "Each
// transformer registers interest in (a) a specific token name, (b) any
// token, or (c) end-of-input."
type Registration struct {
	// Name, if non-empty, restricts this handler to StartTag/EndTag/
	// SelfClosingTag/ExtensionTag tokens with this Name, or to
	// Transclusion tokens when Name == "#transclusion".
	Name string
	// OnEOF restricts this handler to the terminal EOF token.
	OnEOF bool
	// Wildcard, when true (and Name == "" && !OnEOF), matches every
	// token.
	Wildcard bool

	Handler Handler
	// Label names this transformer for tracing (spec.md §4.7
	// Observability).
	Label string
}

// Manager holds, for each stage, an ordered list of Registrations and runs
// them over a token stream (spec.md §4.1).
type Manager struct {
	stages [numStages][]Registration
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register appends r to stage's handler list. Registration order within a
// stage is authoritative.
func (m *Manager) Register(stage Stage, r Registration) {
	m.stages[stage] = append(m.stages[stage], r)
}

// Run pushes toks through all three stages in order and returns the final
// token stream. ctx is passed through to every Handler unchanged.
func (m *Manager) Run(ctx any, toks []token.Token) ([]token.Token, error) {
	cur := toks
	for stage := Stage(0); stage < numStages; stage++ {
		out, err := m.runStage(ctx, stage, cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// RunStage runs a single stage, for callers that only need, e.g., stage 2
// expansion for attribute values. Nothing in this module calls it.
func (m *Manager) RunStage(ctx any, stage Stage, toks []token.Token) ([]token.Token, error) {
	return m.runStage(ctx, stage, toks)
}

func (m *Manager) runStage(ctx any, stage Stage, toks []token.Token) ([]token.Token, error) {
	regs := m.stages[stage]
	var out []token.Token

	// process runs a single token through regs[from:], honoring
	// ReEnqueue by re-running produced tokens through regs[0:], which
	// includes the handler that asked for re-enqueue.
	var process func(tok token.Token, from int) error
	process = func(tok token.Token, from int) error {
		for idx := from; idx < len(regs); idx++ {
			r := regs[idx]
			if !matches(r, tok) {
				continue
			}
			res, err := r.Handler(ctx, tok)
			if err != nil {
				return err
			}
			switch res.Action {
			case Unchanged:
				continue
			case Replace:
				for _, t := range res.Tokens {
					if err := process(t, idx+1); err != nil {
						return err
					}
				}
				return nil
			case ReEnqueue:
				for _, t := range res.Tokens {
					if err := process(t, 0); err != nil {
						return err
					}
				}
				return nil
			}
		}
		out = append(out, tok)
		return nil
	}

	for _, tok := range toks {
		if err := process(tok, 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func matches(r Registration, tok token.Token) bool {
	if r.OnEOF {
		return tok.Kind == token.EOF
	}
	if tok.Kind == token.EOF {
		return false
	}
	if r.Wildcard {
		return true
	}
	if r.Name == "" {
		return false
	}
	if r.Name == "#transclusion" {
		return tok.Kind == token.Transclusion
	}
	return tok.Name == r.Name
}

// Package siteconfig defines the site-config collaborator (spec.md §6):
// the per-wiki configuration the pipeline needs but does not own —
// namespace metadata, link affix regexes, the native extension registry,
// global modules, and the base URI.
package siteconfig

import (
	"log/slog"
	"regexp"

	"github.com/nikolas/parsoid/internal/dom"
)

// Namespace describes one MediaWiki-style namespace.
type Namespace struct {
	ID           int
	Name         string
	Canonical    string
	CaseSensitive bool
}

// NativeExtension is the registration surface for an extension tag
// implementation (spec.md §6: "name → { toDOM, modifyArgDict,
// fragmentOptions, config }"). A native implementation either returns a
// DOM subtree (ToDOM) or leaves ToDOM nil to defer to a wikitext re-parse
// of the inner content (spec.md §4.2).
type NativeExtension struct {
	Name string

	// ToDOM renders inner (the tag's raw inner content) plus its parsed
	// Attrs into a DOM fragment. May be nil to defer to the wikitext
	// parser fallback.
	ToDOM func(env *RenderEnv, attrs map[string]string, inner string) (*dom.Node, error)

	// ModifyArgDict post-processes the data-mw args dict built for this
	// extension's invocation (e.g. to drop sensitive or derived keys)
	// before it is attached to the encapsulation wrapper.
	ModifyArgDict func(args map[string]any) map[string]any

	// FragmentOptions controls how the returned fragment is spliced into
	// the surrounding token stream: InlineContext forces inline-only
	// output (no block-level wrapper is introduced around it).
	FragmentOptions FragmentOptions

	Config map[string]any
}

type FragmentOptions struct {
	InlineContext bool
}

// RenderEnv is the subset of pipeline state a NativeExtension's ToDOM
// function needs: logging, the page being rendered, and a ParseWikitext
// hook for running wikitext through the pipeline recursively. The
// extension-tag handler in internal/ext sets ParseWikitext to a function
// that always returns an error.
type RenderEnv struct {
	Logger      *slog.Logger
	PageConfig  PageConfig
	ParseWikitext func(src string) (*dom.Node, error)
}

// PageConfig is the input page metadata (spec.md §6).
type PageConfig struct {
	Title       string
	RevisionID  int64
	PageLangCode string
	PageDir      string // "ltr" or "rtl"
	Source       string
}

// Config is the full site-config collaborator surface.
type Config struct {
	LinkPrefixRegexp *regexp.Regexp
	LinkTrailRegexp  *regexp.Regexp

	Namespaces map[int]Namespace

	Extensions map[string]NativeExtension

	GlobalModules      []string
	GlobalModuleStyles []string

	MainPageName string
	BaseURI      string

	Logger *slog.Logger
}

// New builds a Config with MediaWiki-standard default link affix regexes
// and namespaces, and an empty extension registry.
func New() *Config {
	return &Config{
		// Default link-trail: a run of lowercase letters glued onto the
		// end of a [[wikilink]] becomes part of the link text, e.g.
		// [[cat]]s -> "cats" as link text, "s" still part of the run.
		LinkTrailRegexp: regexp.MustCompile(`^[a-z]+`),
		LinkPrefixRegexp: nil,
		Namespaces: map[int]Namespace{
			0: {ID: 0, Name: "", Canonical: ""},
			6: {ID: 6, Name: "File", Canonical: "File"},
			10: {ID: 10, Name: "Template", Canonical: "Template"},
			14: {ID: 14, Name: "Category", Canonical: "Category"},
		},
		Extensions:   make(map[string]NativeExtension),
		MainPageName: "Main Page",
		BaseURI:      "//example.org/wiki/",
		Logger:       slog.New(slog.NewTextHandler(discardWriter{}, nil)),
	}
}

// Register adds or replaces a native extension in the Extensions map,
// keyed by name. The map keeps no registration order, and NativeExtension
// has no per-document post-processor hook for pass 11 to run.
func (c *Config) Register(ext NativeExtension) {
	c.Extensions[ext.Name] = ext
}

// IsExtensionTag implements tokenizer.ExtensionTagSet.
func (c *Config) IsExtensionTag(name string) bool {
	_, ok := c.Extensions[name]
	return ok
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

package dom

import (
	"strings"

	"github.com/nikolas/parsoid/internal/token"
)

// NodeType discriminates Node.Type. Mirrors the subset of HTML5 node types
// the pipeline actually produces.
type NodeType int

const (
	ErrorNode NodeType = iota
	DocumentNode
	ElementNode
	TextNode
	CommentNode
	DoctypeNode
)

// Attribute is an attribute on an Element node. Namespace is almost always
// empty; it exists to round-trip foreign (MathML/SVG) content untouched.
type Attribute struct {
	Namespace string
	Key       string
	Val       string
}

// Node is the DOM tree node used by the post-processing pipeline (C7-C13).
// It is built once by the tree-builder adapter (C5) from the token stream
// and mutated in place by every subsequent pass.
//
// Structurally this is the teacher's chtml/node.go Node type (itself a
// from-scratch reimplementation of golang.org/x/net/html.Node's linked-list
// shape): the InsertBefore/AppendChild/RemoveChild operations below are
// that same generic doubly-linked tree surgery, unmodified, because a DOM
// tree's shape doesn't change between templating and wikitext domains.
type Node struct {
	Parent, FirstChild, LastChild, PrevSibling, NextSibling *Node

	Type NodeType
	Data string // tag name for ElementNode, text for TextNode/CommentNode
	Attr []Attribute

	// id is this node's key into the owning Document's data side-table.
	// Zero means "no data record yet" (see Document.DataFor).
	id int
}

// Document owns the per-document data side-table that backs data-parsoid
// and data-mw, indirected through each Node's numeric id (spec.md §3,
// "The indirection avoids repeated JSON encode/decode during traversal").
type Document struct {
	Root *Node

	// Source is the original wikitext this document was parsed from.
	Source string

	nextID int
	data   map[int]*NodeData
}

// NewDocument creates an empty Document wrapping root.
func NewDocument(root *Node, source string) *Document {
	return &Document{Root: root, Source: source, nextID: 1, data: make(map[int]*NodeData)}
}

// DataFor returns the NodeData record for n, allocating a fresh id and
// record on first access. The record survives node re-parenting because it
// is keyed by id, not by pointer identity.
func (d *Document) DataFor(n *Node) *NodeData {
	if n.id == 0 {
		n.id = d.nextID
		d.nextID++
	}
	nd, ok := d.data[n.id]
	if !ok {
		nd = &NodeData{}
		d.data[n.id] = nd
	}
	return nd
}

// HasData reports whether n already has a data record, without allocating
// one.
func (d *Document) HasData(n *Node) bool {
	if n.id == 0 {
		return false
	}
	_, ok := d.data[n.id]
	return ok
}

// DropData removes n's data record, for use when n is removed from the
// tree, so the side-table keeps no dangling id for it. The encapsulation
// pass's marker removal does not call it.
func (d *Document) DropData(n *Node) {
	if n.id == 0 {
		return
	}
	delete(d.data, n.id)
	n.id = 0
}

// CloneID gives fresh a fresh id so the data side-table does not conflate
// a cloned node with its source, per spec.md §9 ("freshen ids on clone").
func (d *Document) CloneID(n *Node) {
	n.id = 0
	d.DataFor(n)
}

// NodeData is the per-node side record backing data-parsoid and data-mw.
type NodeData struct {
	Parsoid DataParsoid
	MW      *DataMW
}

// ParamInfo is a single template parameter's source-offset record, used to
// populate DataParsoid.PI during encapsulation (spec.md §4.6 Phase C
// step 5).
type ParamInfo struct {
	Key string
	TSR Span
}

// DataParsoid holds round-trip metadata: dsr, src, tsr, stx, fostered,
// tmp (pass scratch), firstWikitextNode, pi (param-info) — spec.md §3.
type DataParsoid struct {
	DSR      DSR
	Src      string
	TSR      Span
	Stx      string // syntax variant, e.g. "html" for literal <b> vs wikitext '''
	Fostered bool

	FirstWikitextNode string
	PI                []ParamInfo

	// TplArgInfo is threaded from the originating marker-meta token's
	// DataAttribs.TplArgInfo (C4's computed target/params) by the tree
	// builder (C5), so C10's encapsulation pass can read a transclusion's
	// real argument description instead of inventing one (spec.md §4.2,
	// §4.6 Phase C step 5).
	TplArgInfo *token.TemplateArgInfo

	// Tmp is pass-scratch storage, cleared at cleanup. C10 Phase B keeps
	// the set of template ranges covering each node in a local map, not
	// here.
	Tmp map[string]any
}

// TmpSet stores v under key in dp.Tmp, allocating the map if necessary.
func (dp *DataParsoid) TmpSet(key string, v any) {
	if dp.Tmp == nil {
		dp.Tmp = make(map[string]any)
	}
	dp.Tmp[key] = v
}

// TmpGet retrieves a previously stored scratch value.
func (dp *DataParsoid) TmpGet(key string) (any, bool) {
	if dp.Tmp == nil {
		return nil, false
	}
	v, ok := dp.Tmp[key]
	return v, ok
}

// DataMW holds semantic template/extension metadata: the ordered parts
// (spec.md §3). It has no media-caption field.
type DataMW struct {
	Parts []DataMWPart
}

// DataMWPart is one entry of data-mw.parts: either a literal wikitext run
// or a template/templatearg invocation.
type DataMWPart struct {
	// WT is set for a literal wikitext gap/trailing run (spec.md §4.6
	// Phase C step 5).
	WT string

	// Template/TemplateArg are mutually exclusive with WT and with each
	// other; set depending on whether the originating marker's typeof
	// indicated mw:Param (spec.md §4.6 Phase C step 5).
	Template    *TemplateInvocation
	TemplateArg *TemplateInvocation
}

// TemplateInvocation is one {{target|args}} invocation's serialized form.
type TemplateInvocation struct {
	Target TemplateTarget
	Params map[string]TemplateParam
}

type TemplateTarget struct {
	WT       string
	Function string // set for parser-function invocations, e.g. "#if"
}

type TemplateParam struct {
	WT string
}

// Attr looks up an attribute by key.
func (n *Node) Attr_(key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets (adding or replacing) an attribute on n.
func (n *Node) SetAttr(key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute by key, if present.
func (n *Node) RemoveAttr(key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// IsWhitespace reports whether n is a text node containing only whitespace.
func (n *Node) IsWhitespace() bool {
	return n.Type == TextNode && strings.TrimSpace(n.Data) == ""
}

// InsertBefore inserts newChild as a child of n, immediately before
// oldChild. oldChild may be nil, in which case newChild is appended.
//
// It will panic if newChild already has a parent or siblings.
func (n *Node) InsertBefore(newChild, oldChild *Node) {
	if newChild.Parent != nil || newChild.PrevSibling != nil || newChild.NextSibling != nil {
		panic("dom: InsertBefore called for an attached child Node")
	}
	var prev, next *Node
	if oldChild != nil {
		prev, next = oldChild.PrevSibling, oldChild
	} else {
		prev = n.LastChild
	}
	if prev != nil {
		prev.NextSibling = newChild
	} else {
		n.FirstChild = newChild
	}
	if next != nil {
		next.PrevSibling = newChild
	} else {
		n.LastChild = newChild
	}
	newChild.Parent = n
	newChild.PrevSibling = prev
	newChild.NextSibling = next
}

// AppendChild adds c as the last child of n.
//
// It will panic if c already has a parent or siblings.
func (n *Node) AppendChild(c *Node) {
	if c.Parent != nil || c.PrevSibling != nil || c.NextSibling != nil {
		panic("dom: AppendChild called for an attached child Node")
	}
	last := n.LastChild
	if last != nil {
		last.NextSibling = c
	} else {
		n.FirstChild = c
	}
	n.LastChild = c
	c.Parent = n
	c.PrevSibling = last
}

// RemoveChild removes c, a child of n. Afterwards c has no parent or
// siblings.
//
// It will panic if c's parent is not n.
func (n *Node) RemoveChild(c *Node) {
	if c.Parent != n {
		panic("dom: RemoveChild called for a non-child Node")
	}
	if n.FirstChild == c {
		n.FirstChild = c.NextSibling
	}
	if c.NextSibling != nil {
		c.NextSibling.PrevSibling = c.PrevSibling
	}
	if n.LastChild == c {
		n.LastChild = c.PrevSibling
	}
	if c.PrevSibling != nil {
		c.PrevSibling.NextSibling = c.NextSibling
	}
	c.Parent = nil
	c.PrevSibling = nil
	c.NextSibling = nil
}

// ReplaceChild swaps old (a child of n) for replacement, preserving
// position. old ends up detached.
func (n *Node) ReplaceChild(replacement, old *Node) {
	n.InsertBefore(replacement, old)
	n.RemoveChild(old)
}

// NextNodeDocOrder returns the next node in document (pre-)order, or nil at
// the end of the tree rooted at root.
func (n *Node) NextNodeDocOrder(root *Node) *Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for n != root {
		if n.NextSibling != nil {
			return n.NextSibling
		}
		n = n.Parent
		if n == nil {
			return nil
		}
	}
	return nil
}

// Ancestors returns n's ancestor chain, starting with n.Parent, ending with
// the document root.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// SiblingIndex returns n's index among its parent's children, or -1 if n
// has no parent.
func (n *Node) SiblingIndex() int {
	if n.Parent == nil {
		return -1
	}
	i := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c == n {
			return i
		}
		i++
	}
	return -1
}

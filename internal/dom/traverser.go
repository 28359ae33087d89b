package dom

// HandlerFunc is invoked for a matching node during a Traverser walk. It
// may return a replacement "resume" node: traversal continues from there
// instead of n's natural successor (spec.md §5, "unless a handler returns
// a sibling skip, in which case traversal resumes at the returned node").
// Returning (nil, false) means "no skip, continue normally".
type HandlerFunc func(doc *Document, n *Node) (resume *Node, skip bool, err error)

// Traverser walks a DOM tree in document order, dispatching to handlers
// registered per tag name (or the wildcard handler for any element), the
// way C6 is specified: "pre/post-order walk with per-tag handler
// registry". Modeled on the switch-dispatch-by-node-type style of the
// teacher's chtml/render.go render method, generalized into a registry
// instead of a hardcoded switch so post-processing passes (C7) can plug in
// handlers without editing the traverser itself.
type Traverser struct {
	pre     map[string][]HandlerFunc
	post    map[string][]HandlerFunc
	preAny  []HandlerFunc
	postAny []HandlerFunc
}

// NewTraverser creates an empty Traverser.
func NewTraverser() *Traverser {
	return &Traverser{
		pre:  make(map[string][]HandlerFunc),
		post: make(map[string][]HandlerFunc),
	}
}

// OnEnter registers h to run when entering an element named tag ("" for
// text/comment nodes is not matched; use OnAnyEnter for wildcard).
func (t *Traverser) OnEnter(tag string, h HandlerFunc) {
	t.pre[tag] = append(t.pre[tag], h)
}

// OnLeave registers h to run when leaving an element named tag.
func (t *Traverser) OnLeave(tag string, h HandlerFunc) {
	t.post[tag] = append(t.post[tag], h)
}

// OnAnyEnter registers h to run when entering any node.
func (t *Traverser) OnAnyEnter(h HandlerFunc) {
	t.preAny = append(t.preAny, h)
}

// OnAnyLeave registers h to run when leaving any node.
func (t *Traverser) OnAnyLeave(h HandlerFunc) {
	t.postAny = append(t.postAny, h)
}

// Walk runs the traversal starting at root (root itself is visited).
func (t *Traverser) Walk(doc *Document, root *Node) error {
	_, err := t.walk(doc, root, root)
	return err
}

func (t *Traverser) walk(doc *Document, root, n *Node) (*Node, error) {
	for n != nil {
		resume, skip, err := t.dispatch(doc, n, t.preAny, t.pre[n.Data])
		if err != nil {
			return nil, err
		}
		if skip {
			n = resume
			continue
		}

		if child := n.FirstChild; child != nil {
			if _, err := t.walk(doc, n, child); err != nil {
				return nil, err
			}
		}

		resume, skip, err = t.dispatch(doc, n, t.postAny, t.post[n.Data])
		if err != nil {
			return nil, err
		}
		if skip {
			n = resume
			continue
		}

		if n == root {
			return nil, nil
		}
		n = n.NextSibling
	}
	return nil, nil
}

func (t *Traverser) dispatch(doc *Document, n *Node, any, named []HandlerFunc) (*Node, bool, error) {
	for _, h := range any {
		resume, skip, err := h(doc, n)
		if err != nil {
			return nil, false, err
		}
		if skip {
			return resume, true, nil
		}
	}
	if n.Type != ElementNode {
		return nil, false, nil
	}
	for _, h := range named {
		resume, skip, err := h(doc, n)
		if err != nil {
			return nil, false, err
		}
		if skip {
			return resume, true, nil
		}
	}
	return nil, false, nil
}

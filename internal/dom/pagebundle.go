package dom

import "strconv"

// PageBundle is the per-document container for the data-parsoid and
// data-mw side-tables plus the id counter, written out alongside the
// rendered HTML (spec.md §3). It is the serialized form of a Document's
// internal data side-table; Document itself never round-trips directly
// since its ids are only meaningful for the lifetime of one pipeline run.
type PageBundle struct {
	// Parsoid maps node id (as stamped on the rendered HTML in the
	// id-carrying placeholder attribute) to that node's DataParsoid.
	Parsoid map[int]DataParsoid `json:"parsoid"`
	// MW maps node id to that node's DataMW, when present.
	MW map[int]*DataMW `json:"mw,omitempty"`
	// Counter is the next id that would be allocated; persisted so a
	// later edit-and-reserialize round can keep allocating fresh ids
	// without colliding with existing ones.
	Counter int `json:"counter"`
}

// IDAttr is the placeholder attribute name that indirects a rendered
// element to its PageBundle entry (spec.md §3: "indirected through a
// numeric id embedded in a placeholder attribute").
const IDAttr = "data-parsoid-id"

// ExportPageBundle walks doc and serializes its data side-table into a
// PageBundle, stamping IDAttr onto every element that has a data record.
// It runs once, after post-processing has finished (cmd/parsoid calls it
// when writing output); the cleanup pass itself only clears scratch data.
func ExportPageBundle(doc *Document) *PageBundle {
	pb := &PageBundle{
		Parsoid: make(map[int]DataParsoid),
		MW:      make(map[int]*DataMW),
		Counter: doc.nextID,
	}

	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Type == ElementNode && doc.HasData(n) {
			nd := doc.DataFor(n)
			pb.Parsoid[n.id] = nd.Parsoid
			if nd.MW != nil {
				pb.MW[n.id] = nd.MW
			}
			n.SetAttr(IDAttr, strconv.Itoa(n.id))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if doc.Root != nil {
		walk(doc.Root)
	}
	return pb
}

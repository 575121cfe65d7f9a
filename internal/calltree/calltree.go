package calltree

type (
	// CallSite identifies what was invoked: the script path, the 1-based
	// line number and the traced line of code. Multi-line statements carry
	// their continuation lines in Code joined with a literal `\n` marker.
	CallSite struct {
		File string `json:"file" msgpack:"file"`
		Line int    `json:"line" msgpack:"line"`
		Code string `json:"code" msgpack:"code"`
	}

	// RawEvent is one timestamped invocation as read from the trace.
	// Depth 0 means the trace carries no usable nesting information for
	// this event; real traces report depths starting at 1.
	RawEvent struct {
		Depth     int
		Timestamp float64
		Site      CallSite
	}

	// Node is one reconstructed invocation. Duration is cumulative: the
	// node's own execution time plus the execution time of all its
	// descendants. Parent and Children are indices into the owning
	// Forest's arena.
	Node struct {
		Site     CallSite `json:"site" msgpack:"site"`
		Duration float64  `json:"duration" msgpack:"duration"`
		Parent   int32    `json:"parent" msgpack:"parent"`
		Children []int32  `json:"children,omitempty" msgpack:"children,omitempty"`
	}

	// Forest is an arena of call nodes. The node at rootIndex is a
	// synthetic sentinel standing for "outside any call": its children
	// are the top-level calls in first-seen order and its Duration is the
	// whole traced duration.
	Forest struct {
		Nodes []Node `json:"nodes" msgpack:"nodes"`
	}
)

const rootIndex int32 = 0

// noParent marks the sentinel's parent slot.
const noParent int32 = -1

func NewForest() *Forest {
	return &Forest{
		Nodes: []Node{{Parent: noParent}},
	}
}

// Roots returns the indices of the top-level calls in first-seen order.
func (f *Forest) Roots() []int32 {
	if len(f.Nodes) == 0 {
		return nil
	}
	return f.Nodes[rootIndex].Children
}

// WholeDuration is the sum of the top-level cumulative durations, used as
// the denominator when reporting relative timings.
func (f *Forest) WholeDuration() float64 {
	var whole float64
	for _, root := range f.Roots() {
		whole += f.Nodes[root].Duration
	}
	return whole
}

// add appends a node as the last child of parent and walks the parent
// chain up to the sentinel, adding the new node's duration to every
// ancestor's cumulative duration.
func (f *Forest) add(parent int32, site CallSite, duration float64) int32 {
	idx := int32(len(f.Nodes))
	f.Nodes = append(f.Nodes, Node{
		Site:     site,
		Duration: duration,
		Parent:   parent,
	})
	f.Nodes[parent].Children = append(f.Nodes[parent].Children, idx)
	for p := parent; p != noParent; p = f.Nodes[p].Parent {
		f.Nodes[p].Duration += duration
	}
	return idx
}

// lastChild returns the index of the last child of idx, or idx itself if
// it has none.
func (f *Forest) lastChild(idx int32) int32 {
	children := f.Nodes[idx].Children
	if len(children) == 0 {
		return idx
	}
	return children[len(children)-1]
}

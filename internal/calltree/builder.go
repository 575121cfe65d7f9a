package calltree

import (
	"fmt"
	"math"

	"github.com/getsentry/cmakestat/internal/errorutil"
)

// trailingDuration is attributed to the very last event of a trace, which
// has no following timestamp to measure against.
const trailingDuration = 1e-6

// Builder consumes the event stream and reconstructs the call forest.
// A node is materialized for an event once the following event's timestamp
// is known; Finish materializes the final pending event.
type Builder struct {
	forest *Forest
	parent int32

	hasPending   bool
	pendingTime  float64
	pendingSite  CallSite
	pendingDepth int
	// Depth delta between the pending event and the event before it,
	// used to re-create the earlier event's depth when attaching.
	pendingDiff int
}

func NewBuilder() *Builder {
	return &Builder{
		forest: NewForest(),
		parent: rootIndex,
		// Depth 1 is what a well-formed annotated trace starts at.
		pendingDepth: 1,
	}
}

// Add feeds the next event to the builder. The previously fed event, if
// any, gets its duration from ev's timestamp and is attached to the tree.
func (b *Builder) Add(ev RawEvent) error {
	if b.hasPending {
		err := b.attach(ev.Timestamp, b.pendingDepth, b.pendingDiff)
		if err != nil {
			return err
		}
	}
	if ev.Depth == 0 {
		b.pendingDepth = 0
		b.pendingDiff = 0
	} else {
		b.pendingDiff = ev.Depth - b.pendingDepth
		b.pendingDepth = ev.Depth
	}
	b.hasPending = true
	b.pendingTime = ev.Timestamp
	b.pendingSite = ev.Site
	return nil
}

// Finish materializes the final pending event with a nominal duration and
// returns the completed forest. The builder must not be reused afterwards.
func (b *Builder) Finish() (*Forest, error) {
	if b.hasPending {
		err := b.attach(b.pendingTime+trailingDuration, b.pendingDepth, 0)
		if err != nil {
			return nil, err
		}
		b.hasPending = false
	}
	return b.forest, nil
}

// attach creates the node for the pending event. depth is the pending
// event's nesting depth (0 when unknown) and diff the depth change from
// the event preceding it.
func (b *Builder) attach(next float64, depth, diff int) error {
	duration := next - b.pendingTime
	if duration < 0 {
		duration = 0
	}

	parent := b.parent
	if depth == 0 {
		parent = attachmentParent(b.forest, parent, b.pendingSite)
	} else {
		switch {
		case diff == 0:
			// Sibling of the previous call, same parent.
		case diff < 0:
			for i := diff; i < 0; i++ {
				parent = b.forest.Nodes[parent].Parent
				if parent == noParent {
					return fmt.Errorf("nesting depth ascends past the forest root: %w", errorutil.ErrDataIntegrity)
				}
			}
		case diff == 1:
			if len(b.forest.Nodes[parent].Children) == 0 {
				return fmt.Errorf("nesting depth descends with no call to descend into: %w", errorutil.ErrDataIntegrity)
			}
			parent = b.forest.lastChild(parent)
		default:
			return fmt.Errorf("nesting depth increased by %d in a single step: %w", diff, errorutil.ErrDataIntegrity)
		}
	}

	b.forest.add(parent, b.pendingSite, duration)
	b.parent = parent
	return nil
}

// attachmentParent infers where the next node belongs when the trace
// carries no nesting information. It walks the chain of active frames from
// the innermost (the active parent's most recent call, or the parent
// itself) out to the sentinel. Frames in the same file as site compete on
// source-line distance and the first minimum encountered wins; the winning
// frame's parent becomes the attachment point, a nearby line meaning a
// return to a sibling call at that frame's level. If no frame shares the
// file, the innermost frame itself is the fallback.
//
// The tie-break and fallback order is load-bearing: reports produced from
// historical traces must not change.
func attachmentParent(f *Forest, parent int32, site CallSite) int32 {
	best := math.MaxInt
	attach := noParent
	for idx := f.lastChild(parent); ; idx = f.Nodes[idx].Parent {
		n := &f.Nodes[idx]
		if idx != rootIndex && n.Site.File == site.File {
			d := n.Site.Line - site.Line
			if d < 0 {
				d = -d
			}
			if d < best {
				best = d
				attach = n.Parent
			}
		} else if attach == noParent {
			attach = idx
		}
		if n.Parent == noParent {
			break
		}
	}
	return attach
}

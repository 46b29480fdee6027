package route

// L1RouteTree groups an L1Route that fans out to several independent
// continuations, such as a DNC merger output feeding more than one
// crossbar. Every tail's source chip must equal the head's target
// chip, and a tree with any tails must have a non-empty head.
type L1RouteTree struct {
	Head  L1Route
	Tails []*L1RouteTree
}

// NewLeaf wraps a single route with no continuations.
func NewLeaf(head L1Route) *L1RouteTree {
	return &L1RouteTree{Head: head}
}

// AddTail attaches a continuation, verifying it starts where the head
// leaves off.
func (t *L1RouteTree) AddTail(tail *L1RouteTree) error {
	if t.Head.Empty() {
		return invalidf("cannot attach a tail to a tree with an empty head")
	}
	target, err := t.Head.TargetChip()
	if err != nil {
		return err
	}
	if tail.Head.Empty() {
		return invalidf("tail head must not be empty")
	}
	source, err := tail.Head.SourceChip()
	if err != nil {
		return err
	}
	if source != target {
		return invalidf("tail source chip %v does not match head target chip %v", source, target)
	}
	t.Tails = append(t.Tails, tail)
	return nil
}

// Leaves returns every route from the tree's head to each of its
// leaves, depth-first, each prefixed by the head route it descends
// from via Extend.
func (t *L1RouteTree) Leaves() ([]L1Route, error) {
	if len(t.Tails) == 0 {
		return []L1Route{t.Head.Clone()}, nil
	}

	var out []L1Route
	for _, tail := range t.Tails {
		subLeaves, err := tail.Leaves()
		if err != nil {
			return nil, err
		}
		for _, leaf := range subLeaves {
			full := t.Head.Clone()
			if err := full.Extend(leaf); err != nil {
				return nil, err
			}
			out = append(out, full)
		}
	}
	return out, nil
}

// Size returns the total number of nodes in the tree, including the
// receiver.
func (t *L1RouteTree) Size() int {
	n := 1
	for _, tail := range t.Tails {
		n += tail.Size()
	}
	return n
}

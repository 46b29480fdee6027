// Package resource tracks which chips of a wafer are present, available,
// allocated, or defective, and provides the snapshot/restore pair used to
// discard partial results on pipeline cancellation.
package resource

import (
	"fmt"
	"sort"

	"github.com/sarchlab/marocco/coordinate"
)

// State is the lifecycle state of a chip slot.
type State int

const (
	// Absent means the slot carries no chip at all.
	Absent State = iota
	// Available means the chip is present, functional, and unclaimed.
	Available
	// Allocated means a stage has claimed the chip for its own use.
	Allocated
	// Defective means the chip is present but excluded from mapping.
	Defective
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Available:
		return "available"
	case Allocated:
		return "allocated"
	case Defective:
		return "defective"
	default:
		panic("invalid resource state")
	}
}

// Manager is the read-mostly registry of chip presence and allocation.
// Presence and defect information is fixed at construction; only
// allocation state changes during a run.
type Manager struct {
	wafer  coordinate.Wafer
	states map[coordinate.Chip]State
}

// NewManager builds a Manager for wafer w. present lists every chip that
// physically exists; defective marks the subset of present chips excluded
// from mapping.
func NewManager(w coordinate.Wafer, present, defective []coordinate.Chip) *Manager {
	m := &Manager{wafer: w, states: make(map[coordinate.Chip]State, len(present))}
	for _, c := range present {
		m.states[c] = Available
	}
	for _, c := range defective {
		if _, ok := m.states[c]; !ok {
			panic(fmt.Sprintf("resource: %s marked defective but not present", c))
		}
		m.states[c] = Defective
	}
	return m
}

// Wafer returns the wafer this manager tracks.
func (m *Manager) Wafer() coordinate.Wafer { return m.wafer }

// StateOf returns the current state of chip c.
func (m *Manager) StateOf(c coordinate.Chip) State {
	if s, ok := m.states[c]; ok {
		return s
	}
	return Absent
}

// Allocate marks an available chip as allocated. Returns an error if the
// chip is not currently available.
func (m *Manager) Allocate(c coordinate.Chip) error {
	if m.StateOf(c) != Available {
		return fmt.Errorf("resource: cannot allocate %s: state is %s", c, m.StateOf(c))
	}
	m.states[c] = Allocated
	return nil
}

// Release returns a previously allocated chip to the available pool.
func (m *Manager) Release(c coordinate.Chip) error {
	if m.StateOf(c) != Allocated {
		return fmt.Errorf("resource: cannot release %s: state is %s", c, m.StateOf(c))
	}
	m.states[c] = Available
	return nil
}

func (m *Manager) filter(want State) []coordinate.Chip {
	out := make([]coordinate.Chip, 0, len(m.states))
	for c, s := range m.states {
		if s == want {
			out = append(out, c)
		}
	}
	sortChips(out)
	return out
}

// Present returns every chip physically on the wafer, present or
// defective, sorted in row-major order.
func (m *Manager) Present() []coordinate.Chip {
	out := make([]coordinate.Chip, 0, len(m.states))
	for c := range m.states {
		out = append(out, c)
	}
	sortChips(out)
	return out
}

// Available returns every chip currently unclaimed and non-defective.
func (m *Manager) Available() []coordinate.Chip { return m.filter(Available) }

// Allocated returns every chip currently claimed by a stage.
func (m *Manager) Allocated() []coordinate.Chip { return m.filter(Allocated) }

// Defective returns every chip excluded from mapping.
func (m *Manager) Defective() []coordinate.Chip { return m.filter(Defective) }

func sortChips(cs []coordinate.Chip) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Y != cs[j].Y {
			return cs[i].Y < cs[j].Y
		}
		return cs[i].X < cs[j].X
	})
}

// Snapshot is an immutable copy of a Manager's allocation state, taken so
// that a cancelled stage can discard whatever partial allocations it made.
type Snapshot struct {
	states map[coordinate.Chip]State
}

// Snapshot captures the manager's current allocation state.
func (m *Manager) Snapshot() Snapshot {
	cp := make(map[coordinate.Chip]State, len(m.states))
	for c, s := range m.states {
		cp[c] = s
	}
	return Snapshot{states: cp}
}

// Restore reverts the manager to a previously captured snapshot.
func (m *Manager) Restore(snap Snapshot) {
	m.states = make(map[coordinate.Chip]State, len(snap.states))
	for c, s := range snap.states {
		m.states[c] = s
	}
}

package dogact

import (
	"fmt"
	"sort"
)

// MemberID identifies a chat platform member (a snowflake on most platforms).
type MemberID int64

// Side is the side of a dog act a vote lands on.
type Side int

const (
	SideYes Side = iota + 1
	SideNo
)

func (s Side) String() string {
	switch s {
	case SideYes:
		return "yes"
	case SideNo:
		return "no"
	default:
		return "unknown"
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	side, ok := ParseSide(string(text))
	if !ok {
		return fmt.Errorf("unknown side %q", text)
	}
	*s = side
	return nil
}

// ParseSide converts "yes"/"no" into a Side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "yes", "guilty":
		return SideYes, true
	case "no", "not_guilty":
		return SideNo, true
	}
	return 0, false
}

// Tally holds the current yes/no voters for a single dog act.
// A voter is present in at most one of the two sets.
type Tally struct {
	yes map[MemberID]struct{}
	no  map[MemberID]struct{}
}

func NewTally() *Tally {
	return &Tally{
		yes: make(map[MemberID]struct{}),
		no:  make(map[MemberID]struct{}),
	}
}

// Cast moves voter to side, dropping any earlier vote they made.
func (t *Tally) Cast(voter MemberID, side Side) {
	delete(t.yes, voter)
	delete(t.no, voter)

	switch side {
	case SideYes:
		t.yes[voter] = struct{}{}
	case SideNo:
		t.no[voter] = struct{}{}
	}
}

func (t *Tally) Count(side Side) int {
	switch side {
	case SideYes:
		return len(t.yes)
	case SideNo:
		return len(t.no)
	}
	return 0
}

// Clear empties both sides. Used when an appeal restarts voting.
func (t *Tally) Clear() {
	clear(t.yes)
	clear(t.no)
}

// Voters returns the voters on side in ascending order.
func (t *Tally) Voters(side Side) []MemberID {
	var set map[MemberID]struct{}
	switch side {
	case SideYes:
		set = t.yes
	case SideNo:
		set = t.no
	default:
		return nil
	}

	voters := make([]MemberID, 0, len(set))
	for id := range set {
		voters = append(voters, id)
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i] < voters[j] })
	return voters
}

// SideOf reports which side voter is currently on.
func (t *Tally) SideOf(voter MemberID) (Side, bool) {
	if _, ok := t.yes[voter]; ok {
		return SideYes, true
	}
	if _, ok := t.no[voter]; ok {
		return SideNo, true
	}
	return 0, false
}

func (t *Tally) Clone() *Tally {
	c := NewTally()
	for id := range t.yes {
		c.yes[id] = struct{}{}
	}
	for id := range t.no {
		c.no[id] = struct{}{}
	}
	return c
}

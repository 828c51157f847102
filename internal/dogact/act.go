package dogact

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxHistory caps history queries regardless of the requested limit.
	MaxHistory = 30
	// DefaultHistory is used when no limit is requested.
	DefaultHistory = 10
	// DefaultTopOffenders is the leaderboard size when none is requested.
	DefaultTopOffenders = 3

	DefaultAllegation   = "being a dog, idk"
	DefaultAppealReason = "BOO HOO!"
)

var (
	ErrInvalidState       = errors.New("dog act is not in the required state")
	ErrAppealAlreadySpent = errors.New("an appeal can only be attempted once per dog act")
	ErrNotFound           = errors.New("dog act not found")
	ErrInvalidVotes       = errors.New("required votes must be at least 1")
)

// Verdict is the outcome of a dog act. It is derived from the tally and the
// timeout flag and is never stored independently.
type Verdict int

const (
	Pending Verdict = iota
	Guilty
	Innocent
)

func (v Verdict) String() string {
	switch v {
	case Guilty:
		return "guilty"
	case Innocent:
		return "innocent"
	default:
		return "pending"
	}
}

// Act is one accusation under adjudication.
type Act struct {
	ID            int64
	GuildID       int64
	Reporter      MemberID
	Target        MemberID
	Allegation    string
	RequiredVotes int
	MessageRef    string

	Tally    *Tally
	TimedOut bool

	AppealAttempted bool
	AppealReason    string
	// Prior is the verdict an open appeal replaced. It is nil unless an
	// appeal is in progress or was interrupted before settling.
	Prior *PriorVerdict

	CreatedAt time.Time
}

// PriorVerdict is the tally and timeout flag of a finalized act at the moment
// an appeal reopened it.
type PriorVerdict struct {
	Tally    *Tally
	TimedOut bool
}

// New creates a pending dog act with an empty tally. The ID is assigned by the
// store on creation.
func New(guildID int64, reporter, target MemberID, allegation string, requiredVotes int) (*Act, error) {
	if requiredVotes < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVotes, requiredVotes)
	}
	if allegation == "" {
		allegation = DefaultAllegation
	}

	return &Act{
		GuildID:       guildID,
		Reporter:      reporter,
		Target:        target,
		Allegation:    allegation,
		RequiredVotes: requiredVotes,
		Tally:         NewTally(),
	}, nil
}

// Verdict evaluates the act. No-votes and timeout are checked before
// yes-votes, so an act meeting both thresholds is Innocent.
func (a *Act) Verdict() Verdict {
	if a.Tally.Count(SideNo) >= a.RequiredVotes || a.TimedOut {
		return Innocent
	}
	if a.Tally.Count(SideYes) >= a.RequiredVotes {
		return Guilty
	}
	return Pending
}

func (a *Act) Finalized() bool {
	return a.Verdict() != Pending
}

// RecordVote casts voter's vote. Only valid while pending.
func (a *Act) RecordVote(voter MemberID, side Side) error {
	if a.Finalized() {
		return fmt.Errorf("record vote on act %d: %w", a.ID, ErrInvalidState)
	}
	if side != SideYes && side != SideNo {
		return fmt.Errorf("record vote on act %d: invalid side %d", a.ID, side)
	}
	a.Tally.Cast(voter, side)
	return nil
}

// TimeOut marks the act as abandoned by voters, which finds the target innocent.
func (a *Act) TimeOut() error {
	if a.Finalized() {
		return fmt.Errorf("time out act %d: %w", a.ID, ErrInvalidState)
	}
	a.TimedOut = true
	return nil
}

// BeginAppeal spends the act's one appeal. The check and the set happen
// together, so callers holding the act's lock get compare-and-set semantics.
// override lets an operator reopen an act whose appeal is already spent.
func (a *Act) BeginAppeal(reason string, override bool) error {
	if !a.Finalized() {
		return fmt.Errorf("appeal act %d: %w", a.ID, ErrInvalidState)
	}
	if a.AppealAttempted && !override {
		return fmt.Errorf("appeal act %d: %w", a.ID, ErrAppealAlreadySpent)
	}
	if reason == "" {
		reason = DefaultAppealReason
	}
	a.AppealAttempted = true
	a.AppealReason = reason
	a.Prior = &PriorVerdict{Tally: a.Tally.Clone(), TimedOut: a.TimedOut}
	return nil
}

// ResetVoting clears the tally and the timeout flag, returning the act to pending.
func (a *Act) ResetVoting() {
	a.Tally.Clear()
	a.TimedOut = false
}

// SettleAppeal closes an appeal once the re-vote has reached a verdict. A
// re-vote that timed out puts back the prior tally and timeout flag; the
// appeal fields are left as they are so a failed appeal stays spent. It
// reports whether the prior verdict was restored.
func (a *Act) SettleAppeal() bool {
	if a.Prior == nil || !a.Finalized() {
		return false
	}
	restored := a.TimedOut
	if restored {
		a.Tally = a.Prior.Tally.Clone()
		a.TimedOut = a.Prior.TimedOut
	}
	a.Prior = nil
	return restored
}

func (a *Act) Clone() *Act {
	c := *a
	c.Tally = a.Tally.Clone()
	if a.Prior != nil {
		c.Prior = &PriorVerdict{Tally: a.Prior.Tally.Clone(), TimedOut: a.Prior.TimedOut}
	}
	return &c
}

// Offender is one row of the guild leaderboard.
type Offender struct {
	Target      MemberID
	GuiltyCount int
	LastOffense time.Time
}

// ClampHistoryLimit applies the default and the hard ceiling to a requested
// history limit.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistory
	case limit > MaxHistory:
		return MaxHistory
	}
	return limit
}

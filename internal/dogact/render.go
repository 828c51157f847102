package dogact

import (
	"fmt"
	"strings"
)

// StatusText describes the act and the current standing of the vote.
func (a *Act) StatusText(reporter, target string) string {
	var b strings.Builder
	if a.AppealAttempted {
		fmt.Fprintf(&b, "Someone is appealing this dog act on the grounds '%s'.\n", a.AppealReason)
	} else {
		fmt.Fprintf(&b, "Whoah there %s, that's a big claim!\n", reporter)
	}
	fmt.Fprintf(&b, "Who agrees that %s was really a dog for '%s'?\n", target, a.Allegation)
	fmt.Fprintf(&b, "Votes required on one side for a verdict: %d\n", a.RequiredVotes)
	fmt.Fprintf(&b, "Current votes: Guilty - %d, Not Guilty - %d",
		a.Tally.Count(SideYes), a.Tally.Count(SideNo))
	return b.String()
}

// OutcomeText announces the verdict. Pending acts have no outcome yet.
func (a *Act) OutcomeText(reporter, target string) string {
	switch a.Verdict() {
	case Guilty:
		return fmt.Sprintf("%s has been found guilty of being a dog for '%s'!", target, a.Allegation)
	case Innocent:
		if !a.TimedOut {
			return fmt.Sprintf("%s has been found innocent! Shame on %s", target, reporter)
		}
		// Timing out during an appeal means the appeal failed.
		if a.AppealAttempted {
			return "Appeal denied due to lack of participation!"
		}
		return fmt.Sprintf("%s has been found innocent due to lack of voter participation!", target)
	default:
		return "Voting is still in progress."
	}
}

func (a *Act) verdictLabel() string {
	switch a.Verdict() {
	case Guilty:
		return "Guilty"
	case Innocent:
		if a.TimedOut {
			return "Timed Out"
		}
		return "Not Guilty"
	default:
		return "Pending"
	}
}

// HistoryLine is the compact one-line summary shown in a member's history.
func (a *Act) HistoryLine() string {
	id := fmt.Sprintf("#%d", a.ID)
	if a.AppealAttempted && a.Verdict() == Guilty {
		id += " (appeal failed)"
	}
	return fmt.Sprintf("%s | Verdict: %s | Guilty votes: %d | Not Guilty votes: %d | Allegation: %s",
		id, a.verdictLabel(), a.Tally.Count(SideYes), a.Tally.Count(SideNo), a.Allegation)
}

var rankTitles = []string{"Worst Dogger", "Still a dog", "Also a dog"}

// RankTitle names a leaderboard position, counting from zero.
func RankTitle(i int) string {
	if i >= 0 && i < len(rankTitles) {
		return rankTitles[i]
	}
	return fmt.Sprintf("Dog #%d", i+1)
}

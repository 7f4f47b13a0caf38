// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

// Group is a run of trace entries decided together: a single winner, a tie
// group, or a round that found no winner.
type Group struct {
	Rounds []Round
}

// Winners lists the winners of the group in trace order
func (g Group) Winners() []CandidateID {
	var winners []CandidateID
	for _, r := range g.Rounds {
		if r.HasWinner() {
			winners = append(winners, r.Winner)
		}
	}
	return winners
}

func (g Group) IsTie() bool {
	return len(g.Rounds) > 0 && g.Rounds[0].IsTie
}

// Snapshot is the pre-round state shared by the group's entries
func (g Group) Snapshot() Round {
	return g.Rounds[0]
}

// GroupRounds merges consecutive tie-marked entries carrying identical ballot
// snapshots into a single group. Every other entry forms its own group.
func GroupRounds(rounds []Round) []Group {
	var groups []Group
	for _, r := range rounds {
		if n := len(groups); n > 0 && r.IsTie {
			last := groups[n-1].Rounds[len(groups[n-1].Rounds)-1]
			if last.IsTie && last.Ballots.Equal(r.Ballots) {
				groups[n-1].Rounds = append(groups[n-1].Rounds, r)
				continue
			}
		}
		groups = append(groups, Group{Rounds: []Round{r}})
	}
	return groups
}

// Tie describes candidates jointly tied for more seats than remain.
type Tie struct {
	Seat       int // first contested seat, 1-based
	Remaining  int // number of seats they are contesting
	Candidates []CandidateID
}

// Placement is the seat assignment derived from a trace.
type Placement struct {
	Seated []CandidateID
	Tie    *Tie
}

// Place assigns seats to winners in trace order. A group that would overflow
// the remaining seats is not broken arbitrarily: none of its members is
// seated and the group is reported as an unresolved tie.
func Place(rounds []Round, seats int) Placement {
	var p Placement
	for _, g := range GroupRounds(rounds) {
		winners := g.Winners()
		if len(winners) == 0 {
			continue
		}

		remaining := seats - len(p.Seated)
		if remaining <= 0 {
			break
		}
		if len(winners) > remaining {
			p.Tie = &Tie{
				Seat:       len(p.Seated) + 1,
				Remaining:  remaining,
				Candidates: winners,
			}
			break
		}
		p.Seated = append(p.Seated, winners...)
	}
	return p
}

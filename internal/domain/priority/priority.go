// Package priority enumerates the 28 allocation priority levels. Each level
// binds one choice rank to one match tier; lower levels are served first.
//
//	levels  1-12  tiers 1-3, rotated within each rank: first(1-3), second(4-6), third(7-9), unranked(10-12)
//	levels 13-16  tier 4, ranks first..unranked
//	levels 17-20  tier 5
//	levels 21-24  tier 6
//	levels 25-28  tier 7
package priority

import (
	"fmt"

	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
)

// Level bounds.
const (
	First Level = 1
	Last  Level = 28

	leadingTiers = 3 // tiers grouped per rank in the first block
	leadingSpan  = leadingTiers * len(model.ChoiceRanks)
)

// Level is one step of the allocation state machine. The zero value is not a
// valid level; start from First.
type Level int

// Valid reports whether l is within First..Last.
func (l Level) Valid() bool {
	return l >= First && l <= Last
}

// Next returns the following level and false once Last has been passed.
func (l Level) Next() (Level, bool) {
	if l < First {
		return First, true
	}
	if l >= Last {
		return l, false
	}
	return l + 1, true
}

// Rank returns the choice rank served at this level.
func (l Level) Rank() model.ChoiceRank {
	i := int(l - First)
	if i < leadingSpan {
		return model.ChoiceRanks[i/leadingTiers]
	}
	return model.ChoiceRanks[(i-leadingSpan)%len(model.ChoiceRanks)]
}

// Tier returns the match tier served at this level.
func (l Level) Tier() matching.Tier {
	i := int(l - First)
	if i < leadingSpan {
		return matching.Tier(i%leadingTiers + 1)
	}
	return matching.Tier(leadingTiers + 1 + (i-leadingSpan)/len(model.ChoiceRanks))
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return fmt.Sprintf("level %d (%s choice, tier %d)", int(l), l.Rank(), l.Tier())
}

// Of returns the level serving the (rank, tier) pair.
func Of(rank model.ChoiceRank, tier matching.Tier) Level {
	r := int(rank - model.FirstChoice)
	t := int(tier)
	if t <= leadingTiers {
		return First + Level(r*leadingTiers+t-1)
	}
	return First + Level(leadingSpan+(t-leadingTiers-1)*len(model.ChoiceRanks)+r)
}

// All returns every level in ascending order.
func All() []Level {
	out := make([]Level, 0, Last)
	for l, ok := First, true; ok; l, ok = l.Next() {
		out = append(out, l)
	}
	return out
}

package matching

// Tier is a discrete match quality, 1 (best) to 7 (worst).
type Tier int

const (
	TierFullMet      Tier = iota + 1 // all skills, competency met
	TierFullUnmet                    // all skills, competency not met
	TierHalfMet                      // >=50% of skills, competency met
	TierHalfUnmet                    // >=50% of skills, competency not met
	TierPartialMet                   // >0% and <50% of skills, competency met
	TierPartialUnmet                 // >0% and <50% of skills, competency not met
	TierNone                         // none of the skills
)

// Tiers lists every tier in order.
var Tiers = [...]Tier{TierFullMet, TierFullUnmet, TierHalfMet, TierHalfUnmet, TierPartialMet, TierPartialUnmet, TierNone}

// Classify derives the tier from requirement count, matching count and the
// competency verdict. A project without requirements always yields TierNone.
func Classify(required, matching int, competencyMet bool) Tier {
	switch {
	case required <= 0 || matching <= 0:
		return TierNone
	case matching >= required:
		return pick(competencyMet, TierFullMet, TierFullUnmet)
	case 2*matching >= required:
		return pick(competencyMet, TierHalfMet, TierHalfUnmet)
	default:
		return pick(competencyMet, TierPartialMet, TierPartialUnmet)
	}
}

func pick(met bool, a, b Tier) Tier {
	if met {
		return a
	}
	return b
}

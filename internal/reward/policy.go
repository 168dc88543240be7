package reward

import "sort"

// StreakPolicy maps a streak length to bonus points.
type StreakPolicy interface {
	Bonus(streak int) int
}

type Tier struct {
	MinStreak int
	Bonus     int
}

// TieredPolicy pays the bonus of the highest tier whose MinStreak the
// streak reaches.
type TieredPolicy struct {
	tiers []Tier
}

func NewTieredPolicy(tiers ...Tier) TieredPolicy {
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinStreak > sorted[j].MinStreak })
	return TieredPolicy{tiers: sorted}
}

// DefaultPolicy pays 2, 5, 10 and 20 points at 3, 7, 14 and 30 days.
func DefaultPolicy() TieredPolicy {
	return NewTieredPolicy(
		Tier{MinStreak: 3, Bonus: 2},
		Tier{MinStreak: 7, Bonus: 5},
		Tier{MinStreak: 14, Bonus: 10},
		Tier{MinStreak: 30, Bonus: 20},
	)
}

func (p TieredPolicy) Bonus(streak int) int {
	for _, t := range p.tiers {
		if streak >= t.MinStreak {
			return t.Bonus
		}
	}
	return 0
}

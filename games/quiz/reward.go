/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import (
	"fmt"
	"math"
)

// RewardPolicy converts a final score and rank into in-game coins.
type RewardPolicy struct {
	Rate          float64
	PositionBonus []int
}

func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		Rate:          0.1,
		PositionBonus: []int{40, 30, 20, 10},
	}
}

func (p RewardPolicy) Validate() error {
	if p.Rate < 0 || math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) {
		return fmt.Errorf("invalid reward rate: %v", p.Rate)
	}

	for i, bonus := range p.PositionBonus {
		if bonus < 0 {
			return fmt.Errorf("position bonus %d is negative: %d", i+1, bonus)
		}
		if i > 0 && bonus > p.PositionBonus[i-1] {
			return fmt.Errorf("position bonus must not increase with rank: %v", p.PositionBonus)
		}
	}

	return nil
}

// Bonus returns the bonus for a 1-based position. Positions past the end of
// the table get nothing.
func (p RewardPolicy) Bonus(position int) int {
	if position < 1 || position > len(p.PositionBonus) {
		return 0
	}

	return p.PositionBonus[position-1]
}

func (p RewardPolicy) Reward(score, position int) int {
	return int(math.Round(float64(score)*p.Rate + float64(p.Bonus(position))))
}

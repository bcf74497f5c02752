/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import "testing"

func TestRewardPolicy(t *testing.T) {
	p := DefaultRewardPolicy()

	tests := []struct {
		score, position, want int
	}{
		{100, 1, 50},
		{100, 2, 40},
		{0, 3, 20},
		{35, 4, 14},
		{45, 5, 5},
		{0, 9, 0},
	}
	for _, tt := range tests {
		if got := p.Reward(tt.score, tt.position); got != tt.want {
			t.Errorf("Reward(%d, %d) = %d, want %d", tt.score, tt.position, got, tt.want)
		}
	}

	for pos := 2; pos <= 8; pos++ {
		if p.Reward(60, pos) > p.Reward(60, pos-1) {
			t.Fatalf("rank %d earns more than rank %d", pos, pos-1)
		}
	}
}

func TestRewardPolicyValidate(t *testing.T) {
	if err := DefaultRewardPolicy().Validate(); err != nil {
		t.Fatal(err)
	}

	bad := []RewardPolicy{
		{Rate: -0.1},
		{Rate: 0.1, PositionBonus: []int{10, 20}},
		{Rate: 0.1, PositionBonus: []int{10, -1}},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("%+v accepted", p)
		}
	}
}

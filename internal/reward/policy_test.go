package reward

import "testing"

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		streak, want int
	}{
		{0, 0}, {1, 0}, {2, 0}, {3, 2}, {6, 2}, {7, 5}, {13, 5}, {14, 10}, {29, 10}, {30, 20}, {365, 20},
	}
	for _, tt := range tests {
		if got := p.Bonus(tt.streak); got != tt.want {
			t.Errorf("Bonus(%d) = %d, want %d", tt.streak, got, tt.want)
		}
	}
}

func TestTieredPolicyUnsortedTiers(t *testing.T) {
	p := NewTieredPolicy(Tier{MinStreak: 10, Bonus: 4}, Tier{MinStreak: 2, Bonus: 1})
	if got := p.Bonus(12); got != 4 {
		t.Errorf("Bonus(12) = %d, want 4", got)
	}
	if got := p.Bonus(5); got != 1 {
		t.Errorf("Bonus(5) = %d, want 1", got)
	}
}

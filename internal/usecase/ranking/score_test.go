package ranking

import (
	"math"
	"testing"

	"github.com/storeway/catsync/internal/domain"
)

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got, want)
	}
}

func TestScore_WeightedSum(t *testing.T) {
	w := Weights{Orders: 0.4, Views: 0.2, Favorites: 0.2, Rating: 0.2}
	c := domain.Counters{Orders: 50, Views: 500, Favorites: 25, AvgRating: 4}

	// Each signal sits at the midpoint of its range, rating at 4/5.
	approx(t, Score(w, c, testBounds()), 0.4*0.5+0.2*0.5+0.2*0.5+0.2*0.8)
}

func TestScore_ZeroSignal(t *testing.T) {
	w := Weights{Orders: 0.4, Views: 0.2, Favorites: 0.2, Rating: 0.2}

	approx(t, Score(w, domain.Counters{}, testBounds()), 0)
}

func TestScore_ClampsAboveBounds(t *testing.T) {
	w := Weights{Orders: 1}
	c := domain.Counters{Orders: 500}

	// Counters past the recorded max normalize to 1, not beyond.
	approx(t, Score(w, c, testBounds()), 1)
}

func TestScore_DegenerateRange(t *testing.T) {
	w := Weights{Orders: 1}
	c := domain.Counters{Orders: 10}
	b := domain.CounterBounds{MinOrders: 10, MaxOrders: 10}

	approx(t, Score(w, c, b), 0)
}

func TestScore_RatingClampedToScale(t *testing.T) {
	w := Weights{Rating: 1}
	c := domain.Counters{AvgRating: 7.5}

	approx(t, Score(w, c, domain.CounterBounds{}), 1)
}

func TestScore_Deterministic(t *testing.T) {
	w := Weights{Orders: 0.4, Views: 0.2, Favorites: 0.2, Rating: 0.2}
	c := domain.Counters{Orders: 33, Views: 700, Favorites: 12, AvgRating: 3.7}

	first := Score(w, c, testBounds())
	for i := 0; i < 10; i++ {
		if got := Score(w, c, testBounds()); got != first {
			t.Fatalf("score drifted: %v != %v", got, first)
		}
	}
}

func TestCompareRank_Ordering(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.RankSnapshot
		want int
	}{
		{
			name: "higher score first",
			a:    domain.RankSnapshot{ItemID: "a", Score: 0.9},
			b:    domain.RankSnapshot{ItemID: "b", Score: 0.5},
			want: -1,
		},
		{
			name: "score tie broken by order count",
			a:    domain.RankSnapshot{ItemID: "a", Score: 0.5, OrderCount: 3},
			b:    domain.RankSnapshot{ItemID: "b", Score: 0.5, OrderCount: 9},
			want: 1,
		},
		{
			name: "full tie broken by item id",
			a:    domain.RankSnapshot{ItemID: "a", Score: 0.5, OrderCount: 3},
			b:    domain.RankSnapshot{ItemID: "b", Score: 0.5, OrderCount: 3},
			want: -1,
		},
		{
			name: "identical snapshots are equal",
			a:    domain.RankSnapshot{ItemID: "a", Score: 0.5, OrderCount: 3},
			b:    domain.RankSnapshot{ItemID: "a", Score: 0.5, OrderCount: 3},
			want: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.CompareRank(tc.a, tc.b); got != tc.want {
				t.Errorf("CompareRank = %d, want %d", got, tc.want)
			}
		})
	}
}

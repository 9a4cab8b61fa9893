package kpi

import (
	"math/rand"
	"strings"
	"testing"
	"testing/quick"
	"time"
)

func TestShowRate(t *testing.T) {
	cases := []struct {
		attended, scheduled int
		want                float64
	}{
		{0, 0, 0},
		{0, 10, 0},
		{5, 10, 50},
		{10, 10, 100},
	}
	for _, tc := range cases {
		if got := ShowRate(tc.attended, tc.scheduled); got != tc.want {
			t.Errorf("ShowRate(%d, %d) = %v, want %v", tc.attended, tc.scheduled, got, tc.want)
		}
	}
}

func TestCloseRate(t *testing.T) {
	if got := CloseRate(3, 0); got != 0 {
		t.Errorf("CloseRate with zero attended must be 0, got %v", got)
	}
	if got := CloseRate(3, 12); got != 25 {
		t.Errorf("CloseRate(3, 12) = %v, want 25", got)
	}
}

func TestROAS(t *testing.T) {
	if got := ROAS(5000, 0); got != 0 {
		t.Errorf("ROAS with zero spend must be 0, got %v", got)
	}
	if got := ROAS(5000, 1000); got != 5 {
		t.Errorf("ROAS(5000, 1000) = %v, want 5", got)
	}
}

// The SQL fragments divide via NULLIF so an empty period yields NULL, never a
// division error.
func TestExprsGuardDivision(t *testing.T) {
	for name, expr := range map[string]string{
		"show rate":  ShowRateExpr,
		"close rate": CloseRateExpr,
		"roas":       ROASExpr("r", "s"),
	} {
		if !strings.Contains(expr, "NULLIF") {
			t.Errorf("%s expression must guard its divisor: %s", name, expr)
		}
	}
}

func TestPropertyRatesBounded(t *testing.T) {
	cfg := &quick.Config{MaxCount: 300, Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	f := func(seed int64) bool {
		r := rand.New(rand.NewSource(seed))
		scheduled := r.Intn(1000)
		attended := 0
		if scheduled > 0 {
			attended = r.Intn(scheduled + 1)
		}
		closed := 0
		if attended > 0 {
			closed = r.Intn(attended + 1)
		}

		sr := ShowRate(attended, scheduled)
		cr := CloseRate(closed, attended)
		return sr >= 0 && sr <= 100 && cr >= 0 && cr <= 100
	}
	if err := quick.Check(f, cfg); err != nil {
		t.Errorf("rate bounds property failed: %v", err)
	}
}

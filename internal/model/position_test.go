package model

import "testing"

func TestPositionFilled(t *testing.T) {
	cases := []struct {
		name string
		pos  Position
		tick int
		want bool
	}{
		{name: "inactive", pos: Position{}, tick: 100, want: false},
		{name: "above inside", pos: Position{LowerTick: 60, UpperTick: 120, Direction: DirectionAbove}, tick: 119, want: false},
		{name: "above at upper", pos: Position{LowerTick: 60, UpperTick: 120, Direction: DirectionAbove}, tick: 120, want: true},
		{name: "below at lower", pos: Position{LowerTick: -120, UpperTick: -60, Direction: DirectionBelow}, tick: -120, want: false},
		{name: "below past lower", pos: Position{LowerTick: -120, UpperTick: -60, Direction: DirectionBelow}, tick: -121, want: true},
	}
	for _, tc := range cases {
		if got := tc.pos.Filled(tc.tick); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPositionActiveWithZeroLowerTick(t *testing.T) {
	pos := Position{LowerTick: 0, UpperTick: 60}
	if !pos.Active() {
		t.Fatalf("expected active position")
	}
}

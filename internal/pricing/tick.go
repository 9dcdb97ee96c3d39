package pricing

import (
	"fmt"
	"math"

	"rangeHedger/internal/model"
)

// NearestUsableTick rounds tick to the nearest multiple of spacing within [MinTick, MaxTick].
func NearestUsableTick(tick, spacing int) int {
	if spacing <= 0 {
		return tick
	}
	rounded := int(math.Round(float64(tick)/float64(spacing))) * spacing
	if rounded < MinTick {
		rounded += spacing
	} else if rounded > MaxTick {
		rounded -= spacing
	}
	return rounded
}

// floorTick returns the greatest multiple of spacing <= tick.
func floorTick(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// RangeTicks places a band of width spacings next to refTick, strictly on the
// deposit side of currentTick: above it for ABOVE, at or below it for BELOW.
func RangeTicks(refTick, currentTick, spacing, width int, direction model.Direction) (int, int, error) {
	if spacing <= 0 {
		return 0, 0, ErrInvalidTickSpacing
	}
	if width < 1 {
		width = 1
	}

	var lower, upper int
	switch direction {
	case model.DirectionAbove:
		lower = NearestUsableTick(refTick, spacing)
		if lower <= currentTick {
			lower = floorTick(currentTick, spacing) + spacing
		}
		upper = lower + spacing*width
	case model.DirectionBelow:
		upper = NearestUsableTick(refTick, spacing)
		if upper > currentTick {
			upper = floorTick(currentTick, spacing)
		}
		lower = upper - spacing*width
	default:
		return 0, 0, fmt.Errorf("unknown direction %q", direction)
	}

	if lower < MinTick || upper > MaxTick {
		return 0, 0, fmt.Errorf("%w: [%d, %d]", ErrTickOutOfRange, lower, upper)
	}
	return lower, upper, nil
}

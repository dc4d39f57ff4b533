package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

var half = decimal.New(5, -1)

// RoundHalfDown rounds v to the given number of decimal places, breaking
// exact ties toward zero (1.55 -> 1.5, 1.56 -> 1.6).
func RoundHalfDown(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := roundHalfDown(decimal.NewFromFloat(v), places).Float64()
	return f
}

func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	neg := d.IsNegative()
	shifted := d.Abs().Shift(places)
	whole := shifted.Floor()
	if shifted.Sub(whole).GreaterThan(half) {
		whole = whole.Add(decimal.NewFromInt(1))
	}
	out := whole.Shift(-places)
	if neg {
		out = out.Neg()
	}
	return out
}

// AggregateRating is the mean of values rounded half-down to one decimal.
// An empty slice aggregates to 0.
func AggregateRating(values []int) float64 {
	var st RatingStats
	for _, v := range values {
		st.Sum += int64(v)
		st.Count++
	}
	return st.Average()
}

// RatingStats carries the exact sum and count of a set of rating values so
// the mean is taken in decimal, not from a pre-rounded store average.
type RatingStats struct {
	Sum   int64
	Count int64
}

// Average is Sum/Count rounded half-down to one decimal, or 0 when empty.
func (s RatingStats) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	mean := decimal.NewFromInt(s.Sum).Div(decimal.NewFromInt(s.Count))
	f, _ := roundHalfDown(mean, 1).Float64()
	return f
}

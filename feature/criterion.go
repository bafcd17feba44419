package feature

import (
	"fmt"
	"math"
)

/*
Criterion represents a constraint on a characteristic.

Its SatisfiedBy method takes the characteristic vector of an observation and
returns a boolean indicating if the observation satisfies the criterion.

Its Characteristic method returns the characteristic on which the criterion
is applied.
*/
type Criterion interface {
	Characteristic() Characteristic
	SatisfiedBy(values []float64) bool
}

/*
Interval is a Criterion that constrains a characteristic to the half-open
range (A, B]. Either end can be open by using -Inf for A or +Inf for B.
The left child of a split at cutpoint c is (-Inf, c] and the right one
(c, +Inf).
*/
type Interval struct {
	C    Characteristic
	A, B float64
}

// Below returns the interval of values at or below the cutpoint.
func Below(c Characteristic, cutpoint float64) Interval {
	return Interval{c, math.Inf(-1), cutpoint}
}

// Above returns the interval of values strictly above the cutpoint.
func Above(c Characteristic, cutpoint float64) Interval {
	return Interval{c, cutpoint, math.Inf(1)}
}

/*
Characteristic returns the characteristic to which the constraint applies.
*/
func (i Interval) Characteristic() Characteristic {
	return i.C
}

/*
SatisfiedBy takes a characteristic vector and returns whether the value of
the interval's characteristic on it is within the interval.
*/
func (i Interval) SatisfiedBy(values []float64) bool {
	v := values[i.C.Index]
	return (math.IsInf(i.A, -1) || i.A < v) && (math.IsInf(i.B, 1) || v <= i.B)
}

/*
Intersect takes another interval on the same characteristic and returns the
interval satisfied by values satisfying both, and false if the intervals are
on different characteristics.
*/
func (i Interval) Intersect(o Interval) (Interval, bool) {
	if i.C.Index != o.C.Index {
		return Interval{}, false
	}
	return Interval{i.C, math.Max(i.A, o.A), math.Min(i.B, o.B)}, true
}

func (i Interval) String() string {
	if math.IsInf(i.A, -1) {
		return fmt.Sprintf("%s <= %f", i.C.Name, i.B)
	}
	if math.IsInf(i.B, 1) {
		return fmt.Sprintf("%f < %s", i.A, i.C.Name)
	}
	return fmt.Sprintf("%f < %s <= %f", i.A, i.C.Name, i.B)
}

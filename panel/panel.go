/*
Package panel holds the in-memory panel of asset-month observations a P-Tree
is grown from: for every month, the cross-section of assets with their excess
returns, portfolio weights, loss weights and cross-sectionally ranked
characteristics.
*/
package panel

import (
	"fmt"
	"math"
	"sort"
)

/*
Observation is one (asset, month) pair of the panel.

Weight is the portfolio weight used to value-weight returns (typically the
lagged market capitalization), LossWeight weights the observation in the
splitting objective and Characteristics holds one ranked value in [0,1] per
characteristic of the panel, in the panel's characteristic order.
*/
type Observation struct {
	Asset           string
	Return          float64
	Weight          float64
	LossWeight      float64
	Characteristics []float64
}

/*
Month is a period of the panel with the cross-section of observations
for it.
*/
type Month struct {
	ID           string
	Observations []Observation
}

/*
Panel is a sequence of months, sorted by ID, whose observations share the same
characteristics.
*/
type Panel struct {
	Characteristics []string
	Months          []Month
}

/*
InputShapeError is returned when the data handed to the tree does not have the
shape it should: characteristic vectors of the wrong length, series whose
length does not match the number of months, missing values and the like.
*/
type InputShapeError struct {
	Month  string
	Asset  string
	Reason string
}

func (e *InputShapeError) Error() string {
	switch {
	case e.Month != "" && e.Asset != "":
		return fmt.Sprintf("invalid panel input at month %s asset %s: %s", e.Month, e.Asset, e.Reason)
	case e.Month != "":
		return fmt.Sprintf("invalid panel input at month %s: %s", e.Month, e.Reason)
	}
	return fmt.Sprintf("invalid panel input: %s", e.Reason)
}

// ShapeErrorf returns an InputShapeError not tied to a month or asset.
func ShapeErrorf(format string, a ...interface{}) error {
	return &InputShapeError{Reason: fmt.Sprintf(format, a...)}
}

/*
Validate checks the panel is fit to grow a tree from. It returns an
*InputShapeError describing the first problem found or nil. A valid panel has
at least one characteristic, months sorted by unique ID, no empty months,
no asset repeated within a month, non-negative finite weights, finite returns
and characteristic vectors of the right length with values in [0,1].
*/
func (p *Panel) Validate() error {
	if p == nil || len(p.Months) == 0 {
		return ShapeErrorf("panel has no months")
	}
	k := len(p.Characteristics)
	if k == 0 {
		return ShapeErrorf("panel has no characteristics")
	}
	for i, m := range p.Months {
		if i > 0 && p.Months[i-1].ID >= m.ID {
			return &InputShapeError{Month: m.ID, Reason: fmt.Sprintf("months out of order or repeated after %s", p.Months[i-1].ID)}
		}
		if len(m.Observations) == 0 {
			return &InputShapeError{Month: m.ID, Reason: "empty cross-section"}
		}
		seen := make(map[string]bool, len(m.Observations))
		for _, o := range m.Observations {
			if seen[o.Asset] {
				return &InputShapeError{Month: m.ID, Asset: o.Asset, Reason: "asset observed twice"}
			}
			seen[o.Asset] = true
			if len(o.Characteristics) != k {
				return &InputShapeError{Month: m.ID, Asset: o.Asset, Reason: fmt.Sprintf("%d characteristics, expected %d", len(o.Characteristics), k)}
			}
			if !finite(o.Return) {
				return &InputShapeError{Month: m.ID, Asset: o.Asset, Reason: "return is not a finite number"}
			}
			if !finite(o.Weight) || o.Weight < 0 {
				return &InputShapeError{Month: m.ID, Asset: o.Asset, Reason: "weight must be a non-negative number"}
			}
			if !finite(o.LossWeight) || o.LossWeight < 0 {
				return &InputShapeError{Month: m.ID, Asset: o.Asset, Reason: "loss weight must be a non-negative number"}
			}
			for j, v := range o.Characteristics {
				if math.IsNaN(v) || v < 0 || v > 1 {
					return &InputShapeError{Month: m.ID, Asset: o.Asset, Reason: fmt.Sprintf("characteristic %s = %v outside [0,1]", p.Characteristics[j], v)}
				}
			}
		}
	}
	return nil
}

// Len returns the number of months in the panel.
func (p *Panel) Len() int {
	return len(p.Months)
}

// MonthIDs returns the IDs of the months of the panel in order.
func (p *Panel) MonthIDs() []string {
	ids := make([]string, len(p.Months))
	for i, m := range p.Months {
		ids[i] = m.ID
	}
	return ids
}

// Count returns the total number of observations in the panel.
func (p *Panel) Count() int {
	var n int
	for _, m := range p.Months {
		n += len(m.Observations)
	}
	return n
}

/*
MinCrossSection returns the size of the smallest cross-section in the
panel, or 0 for an empty panel.
*/
func (p *Panel) MinCrossSection() int {
	if len(p.Months) == 0 {
		return 0
	}
	min := len(p.Months[0].Observations)
	for _, m := range p.Months[1:] {
		if len(m.Observations) < min {
			min = len(m.Observations)
		}
	}
	return min
}

/*
CharacteristicIndex takes a characteristic name and returns its index on the
observations' characteristic vectors, or -1 if the panel does not have it.
*/
func (p *Panel) CharacteristicIndex(name string) int {
	for i, c := range p.Characteristics {
		if c == name {
			return i
		}
	}
	return -1
}

/*
Slice returns a panel sharing this panel's characteristics with the months
in positions [i, j). The observations are not copied.
*/
func (p *Panel) Slice(i, j int) *Panel {
	return &Panel{Characteristics: p.Characteristics, Months: p.Months[i:j]}
}

/*
Window returns a panel with the months whose ID is within [start, end].
An empty start or end leaves that side of the window open. The observations
are not copied.
*/
func (p *Panel) Window(start, end string) *Panel {
	i := sort.Search(len(p.Months), func(i int) bool {
		return start == "" || p.Months[i].ID >= start
	})
	j := sort.Search(len(p.Months), func(j int) bool {
		return end != "" && p.Months[j].ID > end
	})
	if j < i {
		j = i
	}
	return p.Slice(i, j)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package portfolio

import (
	"gonum.org/v1/gonum/mat"

	"github.com/pbanos/ptree/panel"
	"github.com/pbanos/ptree/tree"
)

/*
Group accumulates the observations of a portfolio within a month to compute
its weighted return. The zero value is an empty group.
*/
type Group struct {
	weightedSum float64
	weights     float64
	sum         float64
	n           int
}

// Add takes the return and the weight of an observation and adds it to the group.
func (g *Group) Add(ret, weight float64) {
	g.weightedSum += weight * ret
	g.weights += weight
	g.sum += ret
	g.n++
}

// Len returns the number of observations in the group.
func (g *Group) Len() int {
	return g.n
}

/*
Return returns the weighted mean return of the group. A group whose weights
add up to zero falls back to the equally weighted mean, and an empty group
returns 0.
*/
func (g *Group) Return() float64 {
	switch {
	case g.n == 0:
		return 0
	case g.weights > 0:
		return g.weightedSum / g.weights
	}
	return g.sum / float64(g.n)
}

/*
LeafReturns takes a panel, a tree and whether leaves are equally weighted and
returns the matrix with the return of every leaf (columns, by leaf ID) on
every month of the panel (rows). Observations are weighted by their
portfolio weight unless equalWeight is set.

The second value holds, for every month, the number of leaves that received
no observation. Their return is 0 for that month.
*/
func LeafReturns(p *panel.Panel, t *tree.Tree, equalWeight bool) (*mat.Dense, []int) {
	l := t.NumLeaves()
	r := mat.NewDense(len(p.Months), l, nil)
	empty := make([]int, len(p.Months))
	groups := make([]Group, l)
	for i, m := range p.Months {
		for j := range groups {
			groups[j] = Group{}
		}
		for _, o := range m.Observations {
			w := o.Weight
			if equalWeight {
				w = 1
			}
			groups[t.Leaf(o.Characteristics).ID].Add(o.Return, w)
		}
		for j := range groups {
			if groups[j].Len() == 0 {
				empty[i]++
			}
			r.Set(i, j, groups[j].Return())
		}
	}
	return r, empty
}

// Rows returns the rows of a matrix as a slice of slices.
func Rows(m mat.Matrix) [][]float64 {
	if m == nil {
		return nil
	}
	t, _ := m.Dims()
	rows := make([][]float64, t)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}

// FromRows takes a slice of equally long rows and returns them as a matrix.
func FromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

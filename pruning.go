package ptree

import (
	"context"
	"math"
)

/*
Pruner is an interface wrapping the Prune method, that can be used
to decide whether the best partition found for a node is good enough to
become part of the tree or if the node must be left as a leaf instead.

The Prune method takes a context and a partition and returns a boolean:
true to indicate the partition must be pruned, false to allow its adding to
the tree and further development.
*/
type Pruner interface {
	Prune(ctx context.Context, p *Partition) (bool, error)
}

/*
PrunerFunc wraps a function with the Prune method signature to implement
the Pruner interface
*/
type PrunerFunc func(ctx context.Context, p *Partition) (bool, error)

/*
Prune takes a context.Context and a partition and invokes the PrunerFunc
with those parameters to return its boolean result.
*/
func (pf PrunerFunc) Prune(ctx context.Context, p *Partition) (bool, error) {
	return pf(ctx, p)
}

/*
DefaultPruner returns a Pruner whose Prune method prunes partitions that do
not improve the objective of the benchmark factors, that is, whose gain is
not positive or not finite.
*/
func DefaultPruner() Pruner {
	return FixedGainPruner(0)
}

/*
FixedGainPruner takes a gainThreshold float64 value and returns a Pruner
whose Prune method returns whether the gainThreshold is greater or equal to
the received partition's gain. Partitions with a gain that is not finite are
always pruned.
*/
func FixedGainPruner(gainThreshold float64) Pruner {
	return PrunerFunc(func(ctx context.Context, p *Partition) (bool, error) {
		if math.IsNaN(p.Gain) || math.IsInf(p.Gain, 0) {
			return true, nil
		}
		return gainThreshold >= p.Gain, nil
	})
}

/*
NoPruner returns a Pruner whose Prune method always returns false, that is,
never prunes.
*/
func NoPruner() Pruner {
	return PrunerFunc(func(ctx context.Context, p *Partition) (bool, error) {
		return false, nil
	})
}

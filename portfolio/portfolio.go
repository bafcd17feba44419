/*
Package portfolio turns leaf partitions into factors: it aggregates the
observations of each leaf into monthly value-weighted returns, finds the
regularized mean-variance weights of a set of return series and applies
them to obtain a factor.
*/
package portfolio

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrSingularCovariance is returned when the regularized covariance
	// matrix of a set of return series cannot be inverted.
	ErrSingularCovariance = errors.New("singular covariance matrix")
	// ErrZeroWeights is returned when every mean-variance weight is zero
	// and they cannot be normalized.
	ErrZeroWeights = errors.New("mean-variance weights are all zero")
)

/*
Stack takes a number of equally long return series and returns the matrix
with one row per month and one column per series. It panics if the series
lengths differ.
*/
func Stack(series ...[]float64) *mat.Dense {
	if len(series) == 0 {
		return nil
	}
	t := len(series[0])
	m := mat.NewDense(t, len(series), nil)
	for j, s := range series {
		if len(s) != t {
			panic(fmt.Sprintf("portfolio: series %d has %d months, want %d", j, len(s), t))
		}
		m.SetCol(j, s)
	}
	return m
}

/*
solve takes a T×N matrix of returns and returns the solution x of
(Σ + λcov I) x = μ + λmean 1 together with the right hand side, where μ and
Σ are the sample mean and the unbiased sample covariance of the columns.
*/
func solve(r mat.Matrix, lambdaCov, lambdaMean float64) (x, m *mat.VecDense, err error) {
	t, n := r.Dims()
	if t < 2 {
		return nil, nil, fmt.Errorf("at least 2 months of returns are required, got %d", t)
	}
	means := make([]float64, n)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, r), nil) + lambdaMean
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, r, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, cov.At(i, i)+lambdaCov)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, nil, ErrSingularCovariance
	}
	m = mat.NewVecDense(n, means)
	x = mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, m); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || lambdaCov == 0 {
			return nil, nil, fmt.Errorf("%w: %v", ErrSingularCovariance, err)
		}
	}
	return x, m, nil
}

/*
Objective takes a T×N matrix of returns and the regularization constants and
returns the squared Sharpe ratio of their regularized mean-variance
portfolio, m'(Σ + λcov I)⁻¹m with m = μ + λmean.
*/
func Objective(r mat.Matrix, lambdaCov, lambdaMean float64) (float64, error) {
	x, m, err := solve(r, lambdaCov, lambdaMean)
	if err != nil {
		return 0, err
	}
	return mat.Dot(m, x), nil
}

/*
Weights takes a T×N matrix of returns and the regularization constants and
returns the mean-variance weights w = (Σ + λcov I)⁻¹(μ + λmean 1) divided by
their L1 norm, so that the absolute weights add up to 1. The sign of the
weights follows μ + λmean: a single series with a negative shrunk mean gets
a weight of -1, so the portfolio is short it.
*/
func Weights(r mat.Matrix, lambdaCov, lambdaMean float64) ([]float64, error) {
	x, _, err := solve(r, lambdaCov, lambdaMean)
	if err != nil {
		return nil, err
	}
	w := x.RawVector().Data
	norm := floats.Norm(w, 1)
	if norm == 0 {
		return nil, ErrZeroWeights
	}
	floats.Scale(1/norm, w)
	return w, nil
}

/*
Apply takes a T×N matrix of returns and N weights and returns the T returns
of the weighted portfolio. Every factor is computed by this function, so
applying the same weights to the same matrix always gives the same series.
*/
func Apply(r mat.Matrix, w []float64) []float64 {
	t, n := r.Dims()
	if n != len(w) {
		panic(fmt.Sprintf("portfolio: %d weights for %d series", len(w), n))
	}
	f := make([]float64, t)
	for i := range f {
		var sum float64
		for j, wj := range w {
			sum += wj * r.At(i, j)
		}
		f[i] = sum
	}
	return f
}

// maxResidualCond is the largest condition number of the covariance of the
// benchmark factors that is regressed on without a ridge.
const maxResidualCond = 1e12

/*
Residualizer regresses return series on a fixed set of benchmark factors and
returns what the benchmarks do not span. The regression has no intercept
term, so the mean return the benchmarks do not explain stays in the
residual. A Residualizer is safe for concurrent use.
*/
type Residualizer struct {
	h     mat.Matrix
	means []float64
	chol  mat.Cholesky
}

/*
NewResidualizer takes a T×K matrix of benchmark factor returns and the
covariance ridge and returns a Residualizer for them. The sample covariance
of the benchmarks is factorized as is when it is well conditioned and with
the ridge added to its diagonal otherwise. ErrSingularCovariance is returned
if neither can be factorized.
*/
func NewResidualizer(h mat.Matrix, lambdaCov float64) (*Residualizer, error) {
	t, k := h.Dims()
	if t < 2 {
		return nil, fmt.Errorf("at least 2 months of returns are required, got %d", t)
	}
	r := &Residualizer{h: h, means: make([]float64, k)}
	for j := range r.means {
		r.means[j] = stat.Mean(mat.Col(nil, j, h), nil)
	}
	cov := mat.NewSymDense(k, nil)
	stat.CovarianceMatrix(cov, h, nil)
	if r.chol.Factorize(cov) && r.chol.Cond() < maxResidualCond {
		return r, nil
	}
	for i := 0; i < k; i++ {
		cov.SetSym(i, i, cov.At(i, i)+lambdaCov)
	}
	if lambdaCov <= 0 || !r.chol.Factorize(cov) {
		return nil, ErrSingularCovariance
	}
	return r, nil
}

/*
Residual takes a return series as long as the benchmarks and returns
f - Hβ, where β solves cov(H) β = cov(H, f).
*/
func (r *Residualizer) Residual(f []float64) ([]float64, error) {
	t, k := r.h.Dims()
	if len(f) != t {
		return nil, fmt.Errorf("series has %d months, want %d", len(f), t)
	}
	fMean := stat.Mean(f, nil)
	c := mat.NewVecDense(k, nil)
	for j := 0; j < k; j++ {
		var sum float64
		for i := 0; i < t; i++ {
			sum += (r.h.At(i, j) - r.means[j]) * (f[i] - fMean)
		}
		c.SetVec(j, sum/float64(t-1))
	}
	beta := mat.NewVecDense(k, nil)
	if err := r.chol.SolveVecTo(beta, c); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: %v", ErrSingularCovariance, err)
		}
	}
	e := make([]float64, t)
	for i := range e {
		var fitted float64
		for j := 0; j < k; j++ {
			fitted += r.h.At(i, j) * beta.AtVec(j)
		}
		e[i] = f[i] - fitted
	}
	return e, nil
}

package portfolio

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MonthsPerYear annualizes monthly statistics.
const MonthsPerYear = 12

/*
Sharpe takes a monthly return series and returns its annualized Sharpe
ratio, mean/std·√12. It returns 0 for series shorter than 2 months or
without variance.
*/
func Sharpe(r []float64) float64 {
	if len(r) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(r, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(MonthsPerYear)
}

/*
MVESharpe takes a number of factors and the regularization constants and
returns the annualized Sharpe ratio of their regularized mean-variance
portfolio.
*/
func MVESharpe(factors [][]float64, lambdaCov, lambdaMean float64) (float64, error) {
	if len(factors) == 0 {
		return 0, nil
	}
	r := Stack(factors...)
	w, err := Weights(r, lambdaCov, lambdaMean)
	if err != nil {
		return 0, err
	}
	return Sharpe(Apply(r, w)), nil
}

/*
Correlation returns the Pearson correlation of two equally long series, or 0
if either has no variance.
*/
func Correlation(x, y []float64) float64 {
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

/*
MaxAbsCorrelation takes a factor and a number of prior factors and returns
the largest absolute correlation between the factor and any of them, 0 if
there are none.
*/
func MaxAbsCorrelation(f []float64, prior [][]float64) float64 {
	var max float64
	for _, p := range prior {
		if c := math.Abs(Correlation(f, p)); c > max {
			max = c
		}
	}
	return max
}

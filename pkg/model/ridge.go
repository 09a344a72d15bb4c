package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNoRows is returned when fitting on an empty set
var ErrNoRows = errors.New("no training rows")

// Linear is a fitted linear model in raw feature units
type Linear struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Predict evaluates the model on one feature vector
func (l Linear) Predict(x []float64) (float64, error) {
	if len(x) != len(l.Coefficients) {
		return 0, fmt.Errorf("expected %d features, got %d", len(l.Coefficients), len(x))
	}
	y := l.Intercept
	for i, c := range l.Coefficients {
		y += c * x[i]
	}
	return y, nil
}

// FitRidge fits y ≈ b0 + X·b with an L2 penalty lambda on b. Features are
// standardized before the solve so lambda acts evenly; constant columns get a
// zero coefficient. The intercept is not penalized.
func FitRidge(x [][]float64, y []float64, lambda float64) (Linear, error) {
	n := len(x)
	if n == 0 || len(y) != n {
		return Linear{}, ErrNoRows
	}
	p := len(x[0])
	if lambda < 0 {
		lambda = 0
	}

	means := make([]float64, p)
	scales := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		means[j] = mean
		if std > 0 && !math.IsNaN(std) {
			scales[j] = std
		}
	}
	yMean := stat.Mean(y, nil)

	z := mat.NewDense(n, p, nil)
	for i := range x {
		for j := 0; j < p; j++ {
			if scales[j] > 0 {
				z.Set(i, j, (x[i][j]-means[j])/scales[j])
			}
		}
	}
	yc := mat.NewVecDense(n, nil)
	for i := range y {
		yc.SetVec(i, y[i]-yMean)
	}

	var gram mat.Dense
	gram.Mul(z.T(), z)
	for j := 0; j < p; j++ {
		ridge := lambda
		// keep the system solvable for dropped columns even without a penalty
		if scales[j] == 0 && ridge == 0 {
			ridge = 1
		}
		gram.Set(j, j, gram.At(j, j)+ridge)
	}

	var rhs mat.VecDense
	rhs.MulVec(z.T(), yc)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		return Linear{}, fmt.Errorf("solve ridge system: %w", err)
	}

	model := Linear{Intercept: yMean, Coefficients: make([]float64, p)}
	for j := 0; j < p; j++ {
		if scales[j] == 0 {
			continue
		}
		c := beta.AtVec(j) / scales[j]
		model.Coefficients[j] = c
		model.Intercept -= c * means[j]
	}
	return model, nil
}

// Scores are regression quality measures over a set of predictions
type Scores struct {
	MAE float64 `json:"mae"`
	MSE float64 `json:"mse"`
	R2  float64 `json:"r2"`
	N   int     `json:"n"`
}

// Score compares predictions with actual values. R2 is NaN for fewer than
// two points or constant actuals.
func Score(predicted, actual []float64) Scores {
	s := Scores{N: len(actual)}
	if len(actual) == 0 || len(predicted) != len(actual) {
		s.MAE, s.MSE, s.R2 = math.NaN(), math.NaN(), math.NaN()
		return s
	}

	for i := range actual {
		d := predicted[i] - actual[i]
		s.MAE += math.Abs(d)
		s.MSE += d * d
	}
	s.MAE /= float64(len(actual))
	s.MSE /= float64(len(actual))

	if len(actual) < 2 || stat.Variance(actual, nil) == 0 {
		s.R2 = math.NaN()
	} else {
		s.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}
	return s
}

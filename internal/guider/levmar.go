package guider

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// The point-source model is an elliptical 2-D Gaussian on a constant
// background:
//
//	f(x, y) = A * exp(-0.5*(((x-x0)/sx)^2 + ((y-y0)/sy)^2)) + b
//
// with parameter vector p = [A, x0, y0, sx, sy, b].
const nFitParams = 6

// gaussianEval evaluates the model at (x, y).
func gaussianEval(x, y float64, p []float64) float64 {
	u := (x - p[1]) / p[3]
	v := (y - p[2]) / p[4]
	return p[0]*math.Exp(-0.5*(u*u+v*v)) + p[5]
}

// gaussianJacobian writes the partial derivatives of the model at (x, y)
// into row.
func gaussianJacobian(x, y float64, p []float64, row []float64) {
	u := (x - p[1]) / p[3]
	v := (y - p[2]) / p[4]
	e := math.Exp(-0.5 * (u*u + v*v))
	ae := p[0] * e
	row[0] = e
	row[1] = ae * u / p[3]
	row[2] = ae * v / p[4]
	row[3] = ae * u * u / p[3]
	row[4] = ae * v * v / p[4]
	row[5] = 1
}

// levmarGaussian fits the Gaussian model to the samples (xs[i], ys[i]) ->
// zs[i] by damped least squares (Levenberg-Marquardt), keeping each
// parameter inside [lo, hi] by projection after every accepted step.
//
// The solver never returns an error: non-convergence within maxIter
// iterations simply yields the best parameters found, with converged=false.
// Callers surface implausible results through the fit's HasFailed flag.
func levmarGaussian(xs, ys, zs, p0, lo, hi []float64, maxIter int) (p []float64, converged bool) {
	p = make([]float64, nFitParams)
	copy(p, p0)
	clampParams(p, lo, hi)

	cost := sumSquaredResiduals(xs, ys, zs, p)
	lambda := 1e-3

	jtj := mat.NewSymDense(nFitParams, nil)
	jtr := mat.NewVecDense(nFitParams, nil)
	var chol mat.Cholesky
	var step mat.VecDense
	trial := make([]float64, nFitParams)
	row := make([]float64, nFitParams)

	for iter := 0; iter < maxIter; iter++ {
		// Accumulate J^T J and J^T r without materialising J.
		jtj.Zero()
		jtr.Zero()
		for i := range xs {
			gaussianJacobian(xs[i], ys[i], p, row)
			r := zs[i] - gaussianEval(xs[i], ys[i], p)
			for a := 0; a < nFitParams; a++ {
				jtr.SetVec(a, jtr.AtVec(a)+row[a]*r)
				for b := a; b < nFitParams; b++ {
					jtj.SetSym(a, b, jtj.At(a, b)+row[a]*row[b])
				}
			}
		}

		improved := false
		for lambda <= 1e10 {
			// Damped normal equations: (J^T J + lambda*diag(J^T J)) dp = J^T r.
			damped := mat.NewSymDense(nFitParams, nil)
			for a := 0; a < nFitParams; a++ {
				for b := a; b < nFitParams; b++ {
					v := jtj.At(a, b)
					if a == b {
						d := v
						if d == 0 {
							d = 1e-12
						}
						v += lambda * d
					}
					damped.SetSym(a, b, v)
				}
			}
			if ok := chol.Factorize(damped); !ok {
				lambda *= 10
				continue
			}
			if err := chol.SolveVecTo(&step, jtr); err != nil {
				lambda *= 10
				continue
			}

			for a := 0; a < nFitParams; a++ {
				trial[a] = p[a] + step.AtVec(a)
			}
			clampParams(trial, lo, hi)

			trialCost := sumSquaredResiduals(xs, ys, zs, trial)
			if trialCost < cost {
				maxStep := 0.0
				for a := 0; a < nFitParams; a++ {
					if d := math.Abs(trial[a] - p[a]); d > maxStep {
						maxStep = d
					}
				}
				relDrop := (cost - trialCost) / (cost + 1e-12)
				copy(p, trial)
				cost = trialCost
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				if relDrop < 1e-10 || maxStep < 1e-9 {
					return p, true
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			// Damping exhausted; the surface is flat or degenerate here.
			return p, cost < 1e-20
		}
	}
	return p, false
}

func sumSquaredResiduals(xs, ys, zs, p []float64) float64 {
	var sum float64
	for i := range xs {
		r := zs[i] - gaussianEval(xs[i], ys[i], p)
		sum += r * r
	}
	return sum
}

func clampParams(p, lo, hi []float64) {
	for i := range p {
		if p[i] < lo[i] {
			p[i] = lo[i]
		}
		if p[i] > hi[i] {
			p[i] = hi[i]
		}
	}
}

package sim

import (
	"math"
	"slices"

	"github.com/gomlx/govcl/clapi"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// solveFuncName is the entry point name used for fault injection and errors of Solve.
const solveFuncName = "vclSolve"

// Solve implements clapi.Solver: it validates the queue and computes the solution on the host with gonum.
//
// Triangular tags use a triangular solve; iterative tags are computed with a direct dense solve, which
// converges to the same solution for the well-conditioned systems the simulation is meant for.
// The preconditioner is validated but doesn't change the result.
func (b *Backend) Solve(queueHandle clapi.Handle, req *clapi.SolveRequest) ([]float64, error) {
	b.mu.Lock()
	if err := b.enter(solveFuncName); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	_, found := b.queues[queueHandle]
	b.mu.Unlock()
	if !found {
		return nil, statusError(solveFuncName, clapi.InvalidCommandQueue)
	}

	n, nrhs := req.N, req.NRHS
	if n <= 0 || nrhs <= 0 || len(req.A) != n*n || len(req.B) != n*nrhs {
		return nil, errors.Wrapf(clapi.NewStatusError(solveFuncName, clapi.InvalidValue),
			"invalid dimensions: N=%d, NRHS=%d, len(A)=%d, len(B)=%d", n, nrhs, len(req.A), len(req.B))
	}
	if req.Tag.IsIterative() && nrhs != 1 {
		return nil, errors.Wrapf(clapi.NewStatusError(solveFuncName, clapi.InvalidValue),
			"iterative solver %s requires a single right-hand side, got %d", req.Tag, nrhs)
	}
	if !req.Precond.IsAPreconditioner() {
		return nil, statusError(solveFuncName, clapi.InvalidValue)
	}

	var a mat.Matrix
	switch {
	case req.Tag.IsTriangular():
		data := slices.Clone(req.A)
		kind := mat.Upper
		if req.Tag == clapi.TagLower || req.Tag == clapi.TagUnitLower {
			kind = mat.Lower
		}
		if req.Tag == clapi.TagUnitUpper || req.Tag == clapi.TagUnitLower {
			for ii := 0; ii < n; ii++ {
				data[ii*n+ii] = 1
			}
		}
		a = mat.NewTriDense(n, kind, data)
	case req.Tag.IsIterative():
		a = mat.NewDense(n, n, slices.Clone(req.A))
	default:
		return nil, statusError(solveFuncName, clapi.InvalidValue)
	}

	rhs := mat.NewDense(n, nrhs, slices.Clone(req.B))
	var x mat.Dense
	if err := x.Solve(a, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) || math.IsNaN(float64(cond)) {
			return nil, errors.Wrapf(clapi.NewStatusError(solveFuncName, clapi.InvalidValue),
				"%s solve failed: %v", req.Tag, err)
		}
		klog.Warningf("sim: %s solve is ill-conditioned (condition number %g)", req.Tag, float64(cond))
	}
	b.mu.Lock()
	b.stats.Solves++
	b.mu.Unlock()
	return slices.Clone(x.RawMatrix().Data), nil
}

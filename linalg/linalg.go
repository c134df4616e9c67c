// Package linalg dispatches linear solves to the current context of an ocl.Registry.
//
// The operation is selected by a clapi.SolveOp (solve, solve with a preconditioner, or in-place solve) and the
// algorithm by a clapi.SolverTag. The computation itself is delegated to the backend, which must implement
// clapi.Solver: it runs on the current queue of the current device of the registry's current context.
package linalg

import (
	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/ocl"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Args are the operands of a solve.
type Args struct {
	// A is the square system matrix.
	A *Matrix

	// B holds the right-hand sides. For InplaceSolve it is overwritten with the solution.
	B *Matrix

	Tag     clapi.SolverTag
	Precond clapi.Preconditioner
}

// Solve returns the solution x of A*x = B, for the triangular or iterative solver selected by tag.
func Solve(reg *ocl.Registry, a, b *Matrix, tag clapi.SolverTag) (*Matrix, error) {
	return Dispatch(reg, clapi.OpSolve, Args{A: a, B: b, Tag: tag})
}

// SolvePrecond is like Solve for an iterative solver tag, using the given preconditioner.
func SolvePrecond(reg *ocl.Registry, a, b *Matrix, tag clapi.SolverTag, precond clapi.Preconditioner) (*Matrix, error) {
	return Dispatch(reg, clapi.OpSolvePrecond, Args{A: a, B: b, Tag: tag, Precond: precond})
}

// InplaceSolve solves the triangular system A*x = B, storing the solution x in B.
func InplaceSolve(reg *ocl.Registry, a, b *Matrix, tag clapi.SolverTag) error {
	_, err := Dispatch(reg, clapi.OpInplaceSolve, Args{A: a, B: b, Tag: tag})
	return err
}

// validate checks the operands against the operation.
func validate(op clapi.SolveOp, args *Args) error {
	a, b := args.A, args.B
	if a == nil || b == nil {
		return errors.Errorf("%s: missing operands", op)
	}
	if a.rows != a.cols {
		return errors.Errorf("%s: system matrix must be square, got %s", op, a)
	}
	if b.rows != a.rows {
		return errors.Errorf("%s: right-hand side %s doesn't match system matrix %s", op, b, a)
	}
	if a.dtype != b.dtype {
		return errors.Errorf("%s: mixed dtypes %s and %s", op, a.dtype, b.dtype)
	}
	if args.Tag.IsIterative() && b.cols != 1 {
		return errors.Errorf("%s: iterative solver %s requires a vector right-hand side, got %s", op, args.Tag, b)
	}
	switch op {
	case clapi.OpSolve:
		if args.Precond != clapi.PrecondNone {
			return errors.Errorf("%s: preconditioner %s given, use %s", op, args.Precond, clapi.OpSolvePrecond)
		}
	case clapi.OpSolvePrecond:
		if !args.Tag.IsIterative() {
			return errors.Errorf("%s: preconditioners require an iterative solver, got %s", op, args.Tag)
		}
	case clapi.OpInplaceSolve:
		if !args.Tag.IsTriangular() {
			return errors.Errorf("%s: in-place solves require a triangular solver, got %s", op, args.Tag)
		}
	default:
		return errors.Errorf("unknown solve operation %s", op)
	}
	if !args.Tag.IsTriangular() && !args.Tag.IsIterative() {
		return errors.Errorf("%s: unknown solver tag %s", op, args.Tag)
	}
	if !args.Precond.IsAPreconditioner() {
		return errors.Errorf("%s: unknown preconditioner %s", op, args.Precond)
	}
	return nil
}

// Dispatch runs the solve operation op on the current queue of the registry's current context.
//
// It fails with ocl.DeviceNotCompatible if the current device can't handle the dtype of the operands, and with
// ocl.BackendUnavailable if the backend doesn't implement clapi.Solver. For OpInplaceSolve the result is
// args.B itself.
func Dispatch(reg *ocl.Registry, op clapi.SolveOp, args Args) (*Matrix, error) {
	if err := validate(op, &args); err != nil {
		return nil, err
	}
	solver, ok := reg.Backend().(clapi.Solver)
	if !ok {
		return nil, ocl.NewError(ocl.BackendUnavailable, op.String(), "backend %q doesn't implement linear algebra",
			reg.Backend().Name())
	}
	ctx, err := reg.CurrentContext()
	if err != nil {
		return nil, err
	}
	queue, err := ctx.CurrentQueue()
	if err != nil {
		return nil, err
	}
	if device := queue.Device(); !device.Supports(args.A.dtype) {
		return nil, ocl.NewError(ocl.DeviceNotCompatible, op.String(), "%s doesn't support %s (requires extension %q)",
			device, args.A.dtype, args.A.dtype.RequiredExtension())
	}

	req := &clapi.SolveRequest{
		Op:      op,
		Tag:     args.Tag,
		Precond: args.Precond,
		N:       args.A.rows,
		A:       args.A.data,
		B:       args.B.data,
		NRHS:    args.B.cols,
	}
	klog.V(2).Infof("%s(%s) of %s on %s", op, args.Tag, args.A, queue)
	x, err := solver.Solve(queue.Handle(), req)
	if err != nil {
		return nil, ocl.ToError(op.String(), err)
	}
	if err := queue.Finish(); err != nil {
		return nil, err
	}

	result := args.B
	if op != clapi.OpInplaceSolve {
		result = &Matrix{rows: args.B.rows, cols: args.B.cols, dtype: args.B.dtype, isVector: args.B.isVector}
	}
	result.setData(x)
	return result, nil
}

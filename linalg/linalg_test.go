package linalg

import (
	"testing"

	"github.com/gomlx/govcl/clapi"
	"github.com/gomlx/govcl/clapi/sim"
	"github.com/gomlx/govcl/dtypes"
	"github.com/gomlx/govcl/ocl"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

type errTester[T any] struct {
	value T
	err   error
}

// capture is a shortcut to test that there is no error and return the value.
func capture[T any](value T, err error) errTester[T] {
	return errTester[T]{value, err}
}

func (e errTester[T]) Test(t *testing.T) T {
	require.NoError(t, e.err)
	return e.value
}

func newRegistry(t *testing.T) (*ocl.Registry, *sim.Backend) {
	backend := sim.New(sim.DefaultConfig())
	reg := ocl.NewRegistry(backend)
	t.Cleanup(func() {
		require.NoError(t, reg.Close())
		require.NoError(t, backend.Close())
	})
	return reg, backend
}

func TestMatrix(t *testing.T) {
	m := capture(NewMatrix(2, 3, []float32{1, 2, 3, 4, 5, 6})).Test(t)
	require.Equal(t, 2, m.Rows())
	require.Equal(t, 3, m.Cols())
	require.Equal(t, dtypes.Float32, m.DType())
	require.False(t, m.IsVector())
	require.Equal(t, 6.0, m.At(1, 2))
	require.Equal(t, "Matrix[2x3](Float32)", m.String())
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, capture(Values[float32](m)).Test(t))
	_, err := Values[float64](m)
	require.Error(t, err)

	_, err = NewMatrix(2, 2, []float64{1, 2, 3})
	require.Error(t, err)
	_, err = NewMatrix(0, 2, []float64{})
	require.Error(t, err)

	v := NewVector([]float64{1, 2})
	require.True(t, v.IsVector())
	require.Equal(t, "Vector[2](Float64)", v.String())
}

func TestSolve(t *testing.T) {
	reg, backend := newRegistry(t)

	// The default device (sim-cpu) supports float64.
	a := capture(NewMatrix(2, 2, []float64{2, 1, 0, 4})).Test(t)
	b := NewVector([]float64{4, 8})
	x := capture(Solve(reg, a, b, clapi.TagUpper)).Test(t)
	require.True(t, x.IsVector())
	require.InDeltaSlice(t, []float64{1, 2}, x.Float64s(), 1e-12)
	require.Equal(t, []float64{4, 8}, b.Float64s())

	// Multiple right-hand sides.
	lower := capture(NewMatrix(2, 2, []float64{1, 0, 3, 1})).Test(t)
	rhs := capture(NewMatrix(2, 2, []float64{1, 2, 5, 10})).Test(t)
	x = capture(Solve(reg, lower, rhs, clapi.TagUnitLower)).Test(t)
	require.InDeltaSlice(t, []float64{1, 2, 2, 4}, x.Float64s(), 1e-12)

	// Iterative solver with preconditioner.
	spd := capture(NewMatrix(2, 2, []float64{4, 1, 1, 3})).Test(t)
	x = capture(SolvePrecond(reg, spd, NewVector([]float64{1, 2}), clapi.TagCG, clapi.PrecondJacobi)).Test(t)
	require.InDeltaSlice(t, []float64{1.0 / 11, 7.0 / 11}, x.Float64s(), 1e-12)

	// In-place.
	require.NoError(t, InplaceSolve(reg, a, b, clapi.TagUpper))
	require.InDeltaSlice(t, []float64{1, 2}, b.Float64s(), 1e-12)

	stats := backend.Stats()
	require.Equal(t, 4, stats.Solves)
	require.Equal(t, 4, stats.Finishes)
	require.Equal(t, 1, stats.ContextsCreated, "solves use the current context")
}

func TestSolveInvalidArguments(t *testing.T) {
	reg, backend := newRegistry(t)
	a := capture(NewMatrix(2, 2, []float64{2, 1, 0, 4})).Test(t)
	rect := capture(NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})).Test(t)

	for name, args := range map[string]struct {
		op   clapi.SolveOp
		args Args
	}{
		"non-square":         {clapi.OpSolve, Args{A: rect, B: NewVector([]float64{1, 2}), Tag: clapi.TagUpper}},
		"mismatched rhs":     {clapi.OpSolve, Args{A: a, B: NewVector([]float64{1, 2, 3}), Tag: clapi.TagUpper}},
		"mixed dtypes":       {clapi.OpSolve, Args{A: a, B: NewVector([]float32{1, 2}), Tag: clapi.TagUpper}},
		"iterative matrix":   {clapi.OpSolve, Args{A: a, B: a, Tag: clapi.TagGMRES}},
		"precond in solve":   {clapi.OpSolve, Args{A: a, B: NewVector([]float64{1, 2}), Tag: clapi.TagCG, Precond: clapi.PrecondILU0}},
		"triangular precond": {clapi.OpSolvePrecond, Args{A: a, B: NewVector([]float64{1, 2}), Tag: clapi.TagUpper}},
		"iterative inplace":  {clapi.OpInplaceSolve, Args{A: a, B: NewVector([]float64{1, 2}), Tag: clapi.TagBiCGStab}},
		"unknown op":         {clapi.SolveOp(17), Args{A: a, B: NewVector([]float64{1, 2}), Tag: clapi.TagUpper}},
		"unknown tag":        {clapi.OpSolve, Args{A: a, B: NewVector([]float64{1, 2}), Tag: clapi.SolverTag(42)}},
		"missing operands":   {clapi.OpSolve, Args{A: a, Tag: clapi.TagUpper}},
		"unknown precond":    {clapi.OpSolvePrecond, Args{A: a, B: NewVector([]float64{1, 2}), Tag: clapi.TagCG, Precond: clapi.Preconditioner(9)}},
	} {
		_, err := Dispatch(reg, args.op, args.args)
		require.Errorf(t, err, "case %q", name)
	}
	require.Zero(t, backend.Stats().Solves)

	// Singular system: the backend fails.
	singular := capture(NewMatrix(2, 2, []float64{0, 1, 0, 0})).Test(t)
	_, err := Solve(reg, singular, NewVector([]float64{1, 1}), clapi.TagUpper)
	require.Error(t, err)
	kind, ok := ocl.KindOf(err)
	require.True(t, ok)
	require.Equal(t, ocl.BackendFailure, kind)
}

func TestSolveDeviceCompatibility(t *testing.T) {
	reg, _ := newRegistry(t)
	platforms := capture(reg.Platforms()).Test(t)
	devices := capture(platforms[0].Devices()).Test(t)
	gpu := devices[1]
	npu := capture(platforms[1].Devices()).Test(t)[0]

	// sim-gpu doesn't support float64, but supports float32.
	require.NoError(t, reg.SetupContext(1, gpu))
	reg.SwitchContextID(1)
	a := capture(NewMatrix(2, 2, []float64{2, 1, 0, 4})).Test(t)
	_, err := Solve(reg, a, NewVector([]float64{4, 8}), clapi.TagUpper)
	require.True(t, errors.Is(err, ocl.DeviceNotCompatible), "got %+v", err)
	kind, ok := ocl.KindOf(err)
	require.True(t, ok)
	require.Equal(t, ocl.DeviceNotCompatible, kind)

	a32 := capture(NewMatrix(2, 2, []float32{2, 1, 0, 4})).Test(t)
	x := capture(Solve(reg, a32, NewVector([]float32{4, 8}), clapi.TagUpper)).Test(t)
	require.Equal(t, []float32{1, 2}, capture(Values[float32](x)).Test(t))

	// sim-npu only supports half precision (besides float32).
	require.NoError(t, reg.SetupContext(2, npu))
	reg.SwitchContextID(2)
	h := func(values ...float32) []float16.Float16 {
		out := make([]float16.Float16, len(values))
		for ii, v := range values {
			out[ii] = float16.Fromfloat32(v)
		}
		return out
	}
	a16 := capture(NewMatrix(2, 2, h(2, 1, 0, 4))).Test(t)
	x = capture(Solve(reg, a16, NewVector(h(4, 8)), clapi.TagUpper)).Test(t)
	require.Equal(t, dtypes.Float16, x.DType())
	require.Equal(t, h(1, 2), capture(Values[float16.Float16](x)).Test(t))
	_, err = Solve(reg, a, NewVector([]float64{4, 8}), clapi.TagUpper)
	require.True(t, errors.Is(err, ocl.DeviceNotCompatible))
}

// noSolverBackend hides the Solver implementation of the wrapped backend.
type noSolverBackend struct {
	clapi.Backend
}

func TestSolveWithoutSolver(t *testing.T) {
	backend := sim.New(sim.DefaultConfig())
	reg := ocl.NewRegistry(noSolverBackend{backend})
	defer func() { require.NoError(t, reg.Close()) }()
	a := capture(NewMatrix(2, 2, []float64{2, 1, 0, 4})).Test(t)
	_, err := Solve(reg, a, NewVector([]float64{4, 8}), clapi.TagUpper)
	require.True(t, errors.Is(err, ocl.BackendUnavailable), "got %+v", err)
	var oclErr *ocl.Error
	require.True(t, errors.As(err, &oclErr))
	require.Equal(t, ocl.BackendUnavailable, oclErr.Kind)
	require.Equal(t, "solve", oclErr.Op)
}

package clapi

// SolveOp selects one of the solve entry points.
type SolveOp int

//go:generate go tool enumer -type SolveOp -trimprefix Op -transform snake -output solveop_enumer.go solver.go

const (
	// OpSolve returns x such that A*x = B.
	OpSolve SolveOp = iota
	// OpSolvePrecond is OpSolve for an iterative solver with a preconditioner.
	OpSolvePrecond
	// OpInplaceSolve overwrites B with the solution.
	OpInplaceSolve
)

// SolverTag selects the solver: a triangular substitution or an iterative method.
type SolverTag int

//go:generate go tool enumer -type SolverTag -trimprefix Tag -transform snake -output solvertag_enumer.go solver.go

const (
	TagUpper SolverTag = iota
	TagUnitUpper
	TagLower
	TagUnitLower
	TagCG
	TagBiCGStab
	TagGMRES
)

// IsTriangular returns whether the tag selects a triangular substitution.
func (tag SolverTag) IsTriangular() bool {
	return tag >= TagUpper && tag <= TagUnitLower
}

// IsIterative returns whether the tag selects an iterative solver.
func (tag SolverTag) IsIterative() bool {
	return tag >= TagCG && tag <= TagGMRES
}

// Preconditioner used by iterative solvers.
type Preconditioner int

//go:generate go tool enumer -type Preconditioner -trimprefix Precond -transform snake -output preconditioner_enumer.go solver.go

const (
	PrecondNone Preconditioner = iota
	PrecondJacobi
	PrecondRowScaling
	PrecondILU0
)

// SolveRequest is the argument of Solver.Solve. Matrices are dense and row-major.
type SolveRequest struct {
	Op      SolveOp
	Tag     SolverTag
	Precond Preconditioner

	// N is the dimension of the square system matrix A (N*N values).
	N int
	A []float64

	// B holds the right-hand side(s), N*NRHS values, row-major.
	B    []float64
	NRHS int
}

// Solver is an optional extension of Backend for backends that provide linear-algebra kernels.
type Solver interface {
	// Solve enqueues the solve on the queue, waits for it and returns the solution (N*NRHS values).
	// It never modifies req.
	Solve(queue Handle, req *SolveRequest) ([]float64, error)
}

package clapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type nopBackend struct {
	Backend
	config string
}

func (b *nopBackend) Name() string { return "nop" }

func TestNewWithConfig(t *testing.T) {
	Register("nop", func(config string) (Backend, error) {
		return &nopBackend{config: config}, nil
	})
	require.Contains(t, Registered(), "nop")

	backend, err := NewWithConfig("nop:some/config.yaml")
	require.NoError(t, err)
	require.Equal(t, "nop", backend.Name())
	require.Equal(t, "some/config.yaml", backend.(*nopBackend).config)

	backend, err = NewWithConfig("nop")
	require.NoError(t, err)
	require.Equal(t, "", backend.(*nopBackend).config)

	_, err = NewWithConfig("milliways")
	require.ErrorContains(t, err, "milliways")

	t.Setenv(BackendEnv, "nop:from-env")
	backend, err = New()
	require.NoError(t, err)
	require.Equal(t, "from-env", backend.(*nopBackend).config)
}

func TestStatus(t *testing.T) {
	require.Equal(t, "CL_INVALID_CONTEXT", InvalidContext.String())
	require.Equal(t, "CL_UNKNOWN_ERROR(-77)", Status(-77).String())
	require.NoError(t, NewStatusError("clFinish", Success))
	err := NewStatusError("clFinish", InvalidCommandQueue)
	require.EqualError(t, err, "clFinish failed with CL_INVALID_COMMAND_QUEUE (-36)")
}

func TestDeviceType(t *testing.T) {
	require.Equal(t, "GPU", DeviceTypeGPU.String())
	require.True(t, DeviceTypeGPU.Matches(DeviceTypeAll))
	require.True(t, (DeviceTypeGPU | DeviceTypeDefault).Matches(DeviceTypeGPU))
	require.False(t, DeviceTypeCPU.Matches(DeviceTypeGPU))
	dt, err := DeviceTypeString("accelerator")
	require.NoError(t, err)
	require.Equal(t, DeviceTypeAccelerator, dt)
}

func TestSolverTag(t *testing.T) {
	require.True(t, TagUnitLower.IsTriangular())
	require.False(t, TagUnitLower.IsIterative())
	require.True(t, TagGMRES.IsIterative())
	require.Equal(t, "bi_cg_stab", TagBiCGStab.String())
	require.Equal(t, "unit_upper", TagUnitUpper.String())
	require.Equal(t, "inplace_solve", OpInplaceSolve.String())
	require.Equal(t, "row_scaling", PrecondRowScaling.String())
	require.Equal(t, "SolverTag(17)", SolverTag(17).String())
	require.False(t, SolverTag(17).IsASolverTag())

	tag, err := SolverTagString("UNIT_LOWER")
	require.NoError(t, err)
	require.Equal(t, TagUnitLower, tag)
	op, err := SolveOpString("solve_precond")
	require.NoError(t, err)
	require.Equal(t, OpSolvePrecond, op)
	_, err = PreconditionerString("ilu1")
	require.Error(t, err)
}

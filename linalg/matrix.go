package linalg

import (
	"fmt"
	"slices"

	"github.com/gomlx/govcl/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Matrix is a dense row-major matrix of host data, tagged with the dtype it has on the device.
//
// Values are held as float64 on the host and rounded to the dtype when created and when results are stored.
// A vector is a matrix with one column.
type Matrix struct {
	rows, cols int
	dtype      dtypes.DType
	data       []float64
	isVector   bool
}

// NewMatrix creates a rows x cols matrix from the flat row-major values.
func NewMatrix[T dtypes.Supported](rows, cols int, flat []T) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("invalid matrix dimensions %dx%d", rows, cols)
	}
	if len(flat) != rows*cols {
		return nil, errors.Errorf("matrix %dx%d requires %d values, got %d", rows, cols, rows*cols, len(flat))
	}
	return &Matrix{rows: rows, cols: cols, dtype: dtypes.FromGenericsType[T](), data: dtypes.ToFloat64(flat)}, nil
}

// NewVector creates a vector (a matrix with one column) from the values.
func NewVector[T dtypes.Supported](values []T) *Matrix {
	return &Matrix{rows: len(values), cols: 1, dtype: dtypes.FromGenericsType[T](), data: dtypes.ToFloat64(values), isVector: true}
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// DType returns the element type of the matrix.
func (m *Matrix) DType() dtypes.DType { return m.dtype }

// IsVector returns whether the matrix was created as a vector.
func (m *Matrix) IsVector() bool { return m.isVector }

// At returns the element at row, col, converted to float64.
func (m *Matrix) At(row, col int) float64 {
	return m.data[row*m.cols+col]
}

// Float64s returns a copy of the row-major values converted to float64.
func (m *Matrix) Float64s() []float64 {
	return slices.Clone(m.data)
}

// String implements fmt.Stringer.
func (m *Matrix) String() string {
	if m.isVector {
		return fmt.Sprintf("Vector[%d](%s)", m.rows, m.dtype)
	}
	return fmt.Sprintf("Matrix[%dx%d](%s)", m.rows, m.cols, m.dtype)
}

// Values returns the row-major values of the matrix in its Go type. T must match the dtype of the matrix.
func Values[T dtypes.Supported](m *Matrix) ([]T, error) {
	if dtype := dtypes.FromGenericsType[T](); dtype != m.dtype {
		return nil, errors.Errorf("can't read %s values from %s", dtype, m)
	}
	return dtypes.FromFloat64[T](m.data), nil
}

// setData stores values, rounded to the dtype of the matrix.
func (m *Matrix) setData(values []float64) {
	switch m.dtype {
	case dtypes.Float16:
		m.data = dtypes.ToFloat64(dtypes.FromFloat64[float16.Float16](values))
	case dtypes.Float32:
		m.data = dtypes.ToFloat64(dtypes.FromFloat64[float32](values))
	default:
		m.data = slices.Clone(values)
	}
}

package ort

import "fmt"

// DType identifies a tensor's element type.
type DType string

const (
	DTypeFloat32 DType = "float32"
	DTypeInt64   DType = "int64"
)

// Tensor is a dense tensor exchanged with execution contexts.
type Tensor struct {
	dtype DType
	shape []int64
	data  any
}

// NewTensor creates a tensor from a flat data slice and shape.
func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	count := int64(1)
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("invalid tensor dimension %d", d)
		}
		count *= d
	}
	if count != int64(len(data)) {
		return nil, fmt.Errorf("shape %v does not match %d elements", shape, len(data))
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	switch any(data).(type) {
	case []float32:
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		t.dtype = DTypeFloat32
		t.data = converted
	case []int64:
		converted := make([]int64, len(data))
		for i, v := range data {
			converted[i] = int64(v)
		}
		t.dtype = DTypeInt64
		t.data = converted
	default:
		return nil, fmt.Errorf("unsupported tensor element type %T", data)
	}

	return t, nil
}

// DType returns the element type.
func (t *Tensor) DType() DType {
	return t.dtype
}

// Shape returns the tensor shape.
func (t *Tensor) Shape() []int64 {
	return t.shape
}

// Data returns the flat backing slice ([]float32 or []int64).
func (t *Tensor) Data() any {
	return t.data
}

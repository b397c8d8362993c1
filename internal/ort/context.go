package ort

import (
	"context"
	"fmt"

	ortapi "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// executionContext wraps one ORT session. The runtime and environment are
// shared with the owning Runtime and are not closed here.
type executionContext struct {
	name    string
	runtime *ortapi.Runtime
	session *ortapi.Session
}

func (c *executionContext) Name() string {
	return c.name
}

func (c *executionContext) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	ortInputs := make(map[string]*ortapi.Value, len(inputs))
	for name, t := range inputs {
		v, err := tensorToORT(c.runtime, t)
		if err != nil {
			closeValues(ortInputs)
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		ortInputs[name] = v
	}
	defer closeValues(ortInputs)

	ortOutputs, err := c.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", c.name, err)
	}
	defer closeValues(ortOutputs)

	outputs := make(map[string]*Tensor, len(ortOutputs))
	for name, v := range ortOutputs {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		outputs[name] = t
	}

	return outputs, nil
}

func (c *executionContext) Close() error {
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	return nil
}

func tensorToORT(runtime *ortapi.Runtime, t *Tensor) (*ortapi.Value, error) {
	switch data := t.Data().(type) {
	case []float32:
		return ortapi.NewTensorValue(runtime, data, t.Shape())
	case []int64:
		return ortapi.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %T", data)
	}
}

func ortToTensor(v *ortapi.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ortapi.ONNXTensorElementDataTypeFloat:
		data, shape, err := ortapi.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}
		return NewTensor(data, shape)
	case ortapi.ONNXTensorElementDataTypeInt64:
		data, shape, err := ortapi.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}
		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeValues(vals map[string]*ortapi.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}

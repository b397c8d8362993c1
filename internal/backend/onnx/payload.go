package onnx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vantorlabs/ortserve/internal/ort"
)

// Tensor wire format for Infer requests and responses: a JSON object with
// named, typed, shaped tensors.
//
//	{"inputs": [{"name": "data", "dtype": "float32", "shape": [1, 3], "float32": [0.1, 0.2, 0.3]}]}
type inferencePayload struct {
	Inputs  []tensorPayload `json:"inputs,omitempty"`
	Outputs []tensorPayload `json:"outputs,omitempty"`
}

type tensorPayload struct {
	Name    string    `json:"name"`
	DType   ort.DType `json:"dtype"`
	Shape   []int64   `json:"shape"`
	Float32 []float32 `json:"float32,omitempty"`
	Int64   []int64   `json:"int64,omitempty"`
}

func decodeInputs(r io.Reader) (map[string]*ort.Tensor, error) {
	var payload inferencePayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode inference request: %w", err)
	}
	if len(payload.Inputs) == 0 {
		return nil, fmt.Errorf("decode inference request: no inputs")
	}

	inputs := make(map[string]*ort.Tensor, len(payload.Inputs))
	for _, p := range payload.Inputs {
		t, err := p.tensor()
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", p.Name, err)
		}
		inputs[p.Name] = t
	}

	return inputs, nil
}

func encodeOutputs(outputs map[string]*ort.Tensor) (*bytes.Buffer, error) {
	payload := inferencePayload{Outputs: make([]tensorPayload, 0, len(outputs))}

	for name, t := range outputs {
		p := tensorPayload{Name: name, DType: t.DType(), Shape: t.Shape()}

		switch data := t.Data().(type) {
		case []float32:
			p.Float32 = data
		case []int64:
			p.Int64 = data
		default:
			return nil, fmt.Errorf("output %q: unsupported tensor type %T", name, data)
		}

		payload.Outputs = append(payload.Outputs, p)
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode inference response: %w", err)
	}

	return buf, nil
}

func (p tensorPayload) tensor() (*ort.Tensor, error) {
	switch p.DType {
	case ort.DTypeFloat32:
		return ort.NewTensor(p.Float32, p.Shape)
	case ort.DTypeInt64:
		return ort.NewTensor(p.Int64, p.Shape)
	default:
		return nil, fmt.Errorf("unsupported dtype %q", p.DType)
	}
}

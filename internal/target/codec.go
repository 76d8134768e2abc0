package target

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownAlgo = errors.New("unknown algo")

// wireAlgo is the portable {algo, params} form of an Algo.
type wireAlgo struct {
	Algo   string          `json:"algo"`
	Params json.RawMessage `json:"params"`
}

// Marshal encodes a as {"algo": ..., "params": {...}}.
func Marshal(a Algo) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("marshal nil algo: %w", ErrUnknownAlgo)
	}
	params, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", a.Name(), err)
	}
	return json.Marshal(wireAlgo{Algo: a.Name(), Params: params})
}

// Unmarshal decodes the {algo, params} form. An unknown tag returns
// ErrUnknownAlgo; absent params return ErrMalformedDrawing.
func Unmarshal(data []byte) (Algo, error) {
	var w wireAlgo
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode algo: %w", err)
	}
	if len(w.Params) == 0 || string(w.Params) == "null" {
		return nil, fmt.Errorf("algo %q without params: %w", w.Algo, ErrMalformedDrawing)
	}

	var (
		a   Algo
		err error
	)
	switch w.Algo {
	case PriceLevel{}.Name():
		var v PriceLevel
		err = json.Unmarshal(w.Params, &v)
		a = v
	case LinearRay{}.Name():
		var v LinearRay
		err = json.Unmarshal(w.Params, &v)
		a = v
	case ParallelChannel{}.Name():
		var v ParallelChannel
		err = json.Unmarshal(w.Params, &v)
		a = v
	case MultiRay{}.Name():
		var v MultiRay
		err = json.Unmarshal(w.Params, &v)
		a = v
	case RectZone{}.Name():
		var v RectZone
		err = json.Unmarshal(w.Params, &v)
		a = v
	default:
		return nil, fmt.Errorf("algo %q: %w", w.Algo, ErrUnknownAlgo)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s params: %w", w.Algo, err)
	}
	return a, nil
}

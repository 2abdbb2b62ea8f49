package revision

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	OpSet     = "set"
	OpDelete  = "delete"
	OpReplace = "replace"
)

// Op is one edit applied to a state document. Paths use sjson syntax
// ("players.0.hand", "pile.-1" to append).
type Op struct {
	Op    string          `json:"op"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Transformation is the body of an append: the revision it was computed
// against, the edits, and optional shadow content to seal with the result.
type Transformation struct {
	Rev    *int            `json:"rev"`
	Ops    []Op            `json:"ops"`
	Shadow json.RawMessage `json:"shadow,omitempty"`
}

// ParseTransformation decodes and validates doc. Unknown fields are rejected.
func ParseTransformation(doc []byte) (Transformation, error) {
	var t Transformation
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return Transformation{}, fmt.Errorf("%w: %v", ErrInvalidTransformation, err)
	}
	if dec.More() {
		return Transformation{}, fmt.Errorf("%w: trailing data", ErrInvalidTransformation)
	}
	if err := t.Validate(); err != nil {
		return Transformation{}, err
	}
	return t, nil
}

func (t Transformation) Validate() error {
	if t.Rev == nil {
		return fmt.Errorf("%w: rev is required", ErrInvalidTransformation)
	}
	for i, op := range t.Ops {
		if err := op.validate(); err != nil {
			return fmt.Errorf("%w: ops[%d]: %v", ErrInvalidTransformation, i, err)
		}
	}
	if t.Shadow != nil && !gjson.ValidBytes(t.Shadow) {
		return fmt.Errorf("%w: shadow is not a JSON document", ErrInvalidTransformation)
	}
	return nil
}

func (op Op) validate() error {
	switch op.Op {
	case OpSet:
		if op.Path == "" {
			return fmt.Errorf("set needs a path")
		}
		if op.Value == nil || !gjson.ValidBytes(op.Value) {
			return fmt.Errorf("set needs a JSON value")
		}
	case OpDelete:
		if op.Path == "" {
			return fmt.Errorf("delete needs a path")
		}
		if op.Value != nil {
			return fmt.Errorf("delete takes no value")
		}
	case OpReplace:
		if op.Path != "" {
			return fmt.Errorf("replace takes no path")
		}
		if op.Value == nil || !gjson.ValidBytes(op.Value) {
			return fmt.Errorf("replace needs a JSON value")
		}
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

// Apply runs the ops in order against state and returns the new document.
// state is never modified.
func (t Transformation) Apply(state json.RawMessage) (json.RawMessage, error) {
	out := bytes.Clone(state)
	var err error
	for i, op := range t.Ops {
		switch op.Op {
		case OpSet:
			out, err = sjson.SetRawBytes(out, op.Path, op.Value)
		case OpDelete:
			out, err = sjson.DeleteBytes(out, op.Path)
		case OpReplace:
			out = bytes.Clone(op.Value)
		default:
			err = fmt.Errorf("unknown op %q", op.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: ops[%d]: %v", ErrInvalidTransformation, i, err)
		}
	}
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("%w: result is not a JSON document", ErrInvalidTransformation)
	}
	return out, nil
}

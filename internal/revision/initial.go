package revision

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// InitialStateFunc builds the revision 0 state for a game created by ownerID.
type InitialStateFunc func(ownerID string) (json.RawMessage, error)

func EmptyState(string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

// StaticState returns a factory that hands every game a copy of doc.
func StaticState(doc json.RawMessage) (InitialStateFunc, error) {
	if !gjson.ValidBytes(doc) {
		return nil, errors.New("initial state is not a JSON document")
	}
	doc = bytes.Clone(doc)
	return func(string) (json.RawMessage, error) {
		return bytes.Clone(doc), nil
	}, nil
}

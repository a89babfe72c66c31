package couchboot

import (
	"encoding/json"
	"fmt"
)

// Converter translates between domain entities and their stored document
// representation. The default converter round-trips through encoding/json.
type Converter interface {
	ToDocument(entity interface{}) (json.RawMessage, error)
	FromDocument(raw json.RawMessage, target interface{}) error
}

// MappingError reports a document that could not be converted to the target
// entity type. Conversion failures are never masked: one bad row fails the
// whole invocation even when sibling rows convert cleanly.
type MappingError struct {
	TargetType string
	Err        error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map document to %s: %v", e.TargetType, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

type JSONConverter struct{}

func (JSONConverter) ToDocument(entity interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, &MappingError{TargetType: "document", Err: err}
	}
	return raw, nil
}

func (JSONConverter) FromDocument(raw json.RawMessage, target interface{}) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return &MappingError{TargetType: fmt.Sprintf("%T", target), Err: err}
	}
	return nil
}

package couchboot

import (
	"errors"
	"fmt"
)

// ErrDocumentNotFound is returned when a lookup by key matches nothing.
var ErrDocumentNotFound = errors.New("document not found")

// UnsupportedFeatureError is raised at repository construction when the
// repository requires a capability the connected store does not offer.
type UnsupportedFeatureError struct {
	Capability string
	Detail     string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("store does not support %s: %s", e.Capability, e.Detail)
}

// IndexProvisioningError is raised when a required index cannot be created.
type IndexProvisioningError struct {
	Index string
	Err   error
}

func (e *IndexProvisioningError) Error() string {
	return fmt.Sprintf("failed to provision index %s: %v", e.Index, e.Err)
}

func (e *IndexProvisioningError) Unwrap() error {
	return e.Err
}

// QueryClassificationError is raised at construction when a declared method
// cannot be resolved to any execution strategy.
type QueryClassificationError struct {
	Method string
	Reason string
}

func (e *QueryClassificationError) Error() string {
	return fmt.Sprintf("cannot classify query method %s: %s", e.Method, e.Reason)
}

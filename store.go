package couchboot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Store is the narrow contract a connected document store must satisfy.
// Implementations are expected to be safe for concurrent use; couchboot adds
// no locking of its own around query execution.
type Store interface {
	// Keyspace is the name used in declarative query FROM clauses.
	Keyspace() string

	Upsert(id string, doc json.RawMessage) error
	Get(id string) (json.RawMessage, error)
	Remove(id string) error

	ExecuteViewQuery(query ViewQuery) ([]ViewRow, error)
	ExecuteN1QLQuery(query N1QLQuery) ([]json.RawMessage, error)
	ExecuteSpatialQuery(query SpatialQuery) ([]ViewRow, error)

	CreateIndex(spec IndexSpec) error
	Capabilities() (FeatureAvailability, error)
}

// FeatureAvailability holds the capability flags of a connected store.
// Resolved once per store handle and read-only afterwards.
type FeatureAvailability struct {
	N1QL    bool
	Views   bool
	Spatial bool
}

// ViewQuery addresses a precomputed secondary-index view.
type ViewQuery struct {
	DesignDocument string
	ViewName       string
	Reduce         bool
	Stale          bool
	Keys           []interface{}
	Limit          int
	Skip           int
}

// ParamString renders the query parameters in canonical order for snapshot
// comparison: reduce first, stale second, booleans lowercase.
func (q ViewQuery) ParamString() string {
	return fmt.Sprintf("reduce=%t&stale=%t", q.Reduce, q.Stale)
}

// ViewRow is one raw row of a view or spatial result. Value carries whatever
// the view emitted; reduced views emit per-node aggregates.
type ViewRow struct {
	ID    string
	Key   interface{}
	Value interface{}
}

// N1QLQuery is a fully-parameterized declarative query. Either Positional or
// Named is set, never both. Built fresh per invocation and discarded after
// execution.
type N1QLQuery struct {
	Statement   string
	Positional  []interface{}
	Named       map[string]interface{}
	Consistency ScanConsistency
}

// BoundingBox delimits a spatial query area in degrees.
type BoundingBox struct {
	MinLongitude float64
	MinLatitude  float64
	MaxLongitude float64
	MaxLatitude  float64
}

// SpatialQuery asks for all documents whose indexed location falls inside Box.
type SpatialQuery struct {
	IndexName string
	Field     string
	Box       BoundingBox
	Limit     int
}

type IndexKind int

const (
	IndexPrimary IndexKind = iota
	IndexSecondary
	IndexView
	IndexSpatial
)

func (k IndexKind) String() string {
	switch k {
	case IndexPrimary:
		return "primary"
	case IndexSecondary:
		return "secondary"
	case IndexView:
		return "view"
	case IndexSpatial:
		return "spatial"
	default:
		return "unknown"
	}
}

// IndexSpec is one index requirement attached to a repository. For IndexView
// specs Name is the design document and Fields holds the view names. Primary
// and secondary indexes are required unless Optional is set; view and spatial
// design documents are provisioned best-effort.
type IndexSpec struct {
	Kind     IndexKind
	Name     string
	Fields   []string
	Optional bool
}

func (s IndexSpec) key() string {
	return fmt.Sprintf("%s|%s|%s", s.Kind, s.Name, strings.Join(s.Fields, ","))
}

func (s IndexSpec) required() bool {
	if s.Optional {
		return false
	}
	return s.Kind == IndexPrimary || s.Kind == IndexSecondary
}

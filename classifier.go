package couchboot

import "fmt"

// ViewMarker binds a query method to a precomputed view. An empty
// DesignDocument defaults to the repository's design document.
type ViewMarker struct {
	DesignDocument string
	ViewName       string
}

// SpatialMarker binds a query method to a spatial index over a location field.
type SpatialMarker struct {
	IndexName string
	Field     string
}

// QueryMarker declares a method as template-backed. Statement holds inline
// query text; Named points into the factory's named-query registry. With both
// empty, the registry is consulted under the method's canonical name
// (<collection>.<method>) before falling through to name derivation.
type QueryMarker struct {
	Statement string
	Named     string
}

// QueryMethod is the declaration of one repository query method: its name,
// ordered parameter names, and the markers that drive classification.
type QueryMethod struct {
	Name        string
	Params      []string
	View        *ViewMarker
	Spatial     *SpatialMarker
	Query       *QueryMarker
	Consistency *ScanConsistency
	Pageable    bool
}

type queryKind int

const (
	kindSpatial queryKind = iota
	kindView
	kindInlineN1QL
	kindNamedN1QL
	kindDerivedN1QL
)

func (k queryKind) String() string {
	switch k {
	case kindSpatial:
		return "SPATIAL"
	case kindView:
		return "VIEW"
	case kindInlineN1QL:
		return "INLINE_N1QL"
	case kindNamedN1QL:
		return "NAMED_N1QL"
	case kindDerivedN1QL:
		return "DERIVED_N1QL"
	default:
		return "UNKNOWN"
	}
}

// methodDescriptor is the immutable classification result for one declared
// method. Exactly one strategy is populated, matching kind.
type methodDescriptor struct {
	name        string
	kind        queryKind
	consistency ScanConsistency
	pageable    bool

	view     *ViewMarker
	spatial  *SpatialMarker
	template *templateQuery
	derived  *derivedQuery
}

// classifyMethod resolves a declared method to exactly one execution strategy.
// Priority order: spatial > view > inline > named > derived; the first
// matching marker wins.
func classifyMethod(m QueryMethod, meta *EntityMetadata, keyspace string, namedQueries map[string]string, defaultConsistency ScanConsistency) (*methodDescriptor, error) {
	d := &methodDescriptor{
		name:        m.Name,
		consistency: defaultConsistency,
		pageable:    m.Pageable,
	}
	if m.Consistency != nil {
		d.consistency = *m.Consistency
	}

	switch {
	case m.Spatial != nil:
		if m.Spatial.IndexName == "" || m.Spatial.Field == "" {
			return nil, &QueryClassificationError{Method: m.Name, Reason: "spatial marker needs an index name and a field"}
		}
		d.kind = kindSpatial
		d.spatial = m.Spatial
		return d, nil

	case m.View != nil:
		if m.View.ViewName == "" {
			return nil, &QueryClassificationError{Method: m.Name, Reason: "view marker needs a view name"}
		}
		view := *m.View
		if view.DesignDocument == "" {
			view.DesignDocument = meta.Collection
		}
		d.kind = kindView
		d.view = &view
		return d, nil

	case m.Query != nil && m.Query.Statement != "":
		template, err := parseTemplateQuery(m.Query.Statement, m.Params)
		if err != nil {
			return nil, &QueryClassificationError{Method: m.Name, Reason: err.Error()}
		}
		d.kind = kindInlineN1QL
		d.template = template
		return d, nil

	case m.Query != nil:
		key := m.Query.Named
		if key == "" {
			key = meta.Collection + "." + m.Name
		}
		if statement, ok := namedQueries[key]; ok {
			template, err := parseTemplateQuery(statement, m.Params)
			if err != nil {
				return nil, &QueryClassificationError{Method: m.Name, Reason: fmt.Sprintf("named query %s: %v", key, err)}
			}
			d.kind = kindNamedN1QL
			d.template = template
			return d, nil
		}
		fallthrough

	default:
		tree, err := parseDerivedMethod(m.Name, meta)
		if err != nil {
			return nil, &QueryClassificationError{Method: m.Name, Reason: err.Error()}
		}
		d.kind = kindDerivedN1QL
		d.derived = newDerivedQuery(tree, meta, keyspace)
		return d, nil
	}
}

// needsAdvancedQueries computes the repository-level capability requirement:
// paging support, any primary or secondary index marker, and any method that
// is query-marked or not view-backed all force the declarative backend.
func needsAdvancedQueries(paging bool, indexes []IndexSpec, methods []QueryMethod) bool {
	if paging {
		return true
	}
	for _, spec := range indexes {
		if spec.Kind == IndexPrimary || spec.Kind == IndexSecondary {
			return true
		}
	}
	for _, m := range methods {
		if m.Query != nil || m.View == nil {
			return true
		}
	}
	return false
}

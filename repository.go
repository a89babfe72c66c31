package couchboot

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Repository is the default repository base bound to a store handle, resolved
// entity metadata, and a per-method dispatch table. All fields are read-only
// after construction; each invocation builds a fresh executable query, so a
// single instance is safe for unlimited concurrent use.
type Repository[T Document] struct {
	store       Store
	converter   Converter
	meta        *EntityMetadata
	features    FeatureAvailability
	consistency ScanConsistency

	// design document and view backing the default operations
	designDocument string
	allView        string

	methods map[string]*methodDescriptor
}

// Save upserts the entity, generating a document key when the id field is
// empty and incrementing the version field when the entity declares one. The
// stored entity is returned.
func (r *Repository[T]) Save(entity T) (T, error) {
	ptr := &entity
	id := r.meta.ID(ptr)
	if id == "" {
		id = uuid.NewString()
		r.meta.SetID(ptr, id)
	}
	r.meta.BumpVersion(ptr)

	raw, err := r.converter.ToDocument(entity)
	if err != nil {
		return entity, err
	}
	if err := r.store.Upsert(id, raw); err != nil {
		return entity, err
	}
	return entity, nil
}

func (r *Repository[T]) SaveAll(entities []T) ([]T, error) {
	saved := make([]T, 0, len(entities))
	for _, entity := range entities {
		s, err := r.Save(entity)
		if err != nil {
			return saved, err
		}
		saved = append(saved, s)
	}
	return saved, nil
}

func (r *Repository[T]) FindById(id string) (T, error) {
	var entity T
	raw, err := r.store.Get(id)
	if err != nil {
		return entity, err
	}
	return r.entityFromDocument(raw, id)
}

func (r *Repository[T]) ExistsById(id string) (bool, error) {
	_, err := r.store.Get(id)
	if err == ErrDocumentNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindAll fetches every entity through the backing view.
func (r *Repository[T]) FindAll() ([]T, error) {
	return r.findByView(r.defaultViewQuery(actionFind, nil))
}

// FindAllById fetches the entities whose keys are in ids, through the backing
// view keyed by document id.
func (r *Repository[T]) FindAllById(ids []string) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.findByView(r.defaultViewQuery(actionFind, args))
}

// FindAllSorted fetches every entity ordered by the given sort, which needs
// the declarative backend.
func (r *Repository[T]) FindAllSorted(sort ...SortField) ([]T, error) {
	if !r.features.N1QL {
		return nil, &UnsupportedFeatureError{Capability: "N1QL", Detail: "sorted queries need the declarative query backend"}
	}
	query, err := r.emptyDerived(actionFind).render(nil, sort, nil, r.consistency)
	if err != nil {
		return nil, err
	}
	return r.findByN1QL(query)
}

// FindAllPaginated returns one page of entities. Paging needs the declarative
// backend; totals come from the backing view.
func (r *Repository[T]) FindAllPaginated(page PageRequest) (PageResponse[T], error) {
	if !r.features.N1QL {
		return PageResponse[T]{}, &UnsupportedFeatureError{Capability: "N1QL", Detail: "paged queries need the declarative query backend"}
	}

	query, err := r.emptyDerived(actionFind).render(nil, page.Sort, &page, r.consistency)
	if err != nil {
		return PageResponse[T]{}, err
	}
	items, err := r.findByN1QL(query)
	if err != nil {
		return PageResponse[T]{}, err
	}

	total, err := r.Count()
	if err != nil {
		return PageResponse[T]{}, err
	}
	return newPageResponse(items, page, total), nil
}

// Count totals the backing view's reduced rows.
func (r *Repository[T]) Count() (int64, error) {
	rows, err := r.store.ExecuteViewQuery(r.defaultViewQuery(actionCount, nil))
	if err != nil {
		return 0, err
	}
	return sumViewCount(rows)
}

func (r *Repository[T]) DeleteById(id string) error {
	return r.store.Remove(id)
}

func (r *Repository[T]) Delete(entity T) error {
	id := r.meta.ID(&entity)
	if id == "" {
		return fmt.Errorf("entity has no id")
	}
	return r.store.Remove(id)
}

// DeleteAll removes every document the backing view knows about.
func (r *Repository[T]) DeleteAll() error {
	rows, err := r.store.ExecuteViewQuery(r.defaultViewQuery(actionDelete, nil))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := r.store.Remove(row.ID); err != nil && err != ErrDocumentNotFound {
			return err
		}
	}
	return nil
}

// Query executes a declared finder method by name and returns the matching
// entities.
func (r *Repository[T]) Query(method string, args ...interface{}) ([]T, error) {
	d, err := r.descriptor(method)
	if err != nil {
		return nil, err
	}

	switch d.kind {
	case kindView:
		if a := viewAction(d.name); a != actionFind {
			return nil, fmt.Errorf("method %s is not a finder", method)
		}
		return r.findByView(buildViewQuery(d.view, actionFind, d.consistency, args))

	case kindSpatial:
		sq, err := buildSpatialQuery(d.spatial, args)
		if err != nil {
			return nil, err
		}
		rows, err := r.store.ExecuteSpatialQuery(sq)
		if err != nil {
			return nil, err
		}
		return r.materializeRows(rows)

	case kindInlineN1QL, kindNamedN1QL:
		query, err := d.template.render(args, nil, nil, r.meta, r.store.Keyspace(), d.consistency)
		if err != nil {
			return nil, err
		}
		return r.findByN1QL(query)

	default:
		if d.derived.tree.action != actionFind {
			return nil, fmt.Errorf("method %s is not a finder", method)
		}
		query, err := d.derived.render(args, nil, nil, d.consistency)
		if err != nil {
			return nil, err
		}
		return r.findByN1QL(query)
	}
}

// QueryOne executes a declared finder and returns the first match, or
// ErrDocumentNotFound when nothing matches.
func (r *Repository[T]) QueryOne(method string, args ...interface{}) (T, error) {
	var zero T
	items, err := r.Query(method, args...)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrDocumentNotFound
	}
	return items[0], nil
}

// QueryPage executes a declared pageable finder, returning one page plus
// totals.
func (r *Repository[T]) QueryPage(method string, page PageRequest, args ...interface{}) (PageResponse[T], error) {
	d, err := r.descriptor(method)
	if err != nil {
		return PageResponse[T]{}, err
	}
	if !d.pageable {
		return PageResponse[T]{}, fmt.Errorf("method %s is not pageable", method)
	}

	var query, countQuery N1QLQuery
	switch d.kind {
	case kindInlineN1QL, kindNamedN1QL:
		if query, err = d.template.render(args, page.Sort, &page, r.meta, r.store.Keyspace(), d.consistency); err != nil {
			return PageResponse[T]{}, err
		}
		if countQuery, err = d.template.renderCount(args, d.consistency); err != nil {
			return PageResponse[T]{}, err
		}
	case kindDerivedN1QL:
		if query, err = d.derived.render(args, page.Sort, &page, d.consistency); err != nil {
			return PageResponse[T]{}, err
		}
		if countQuery, err = d.derived.renderCount(args, d.consistency); err != nil {
			return PageResponse[T]{}, err
		}
	default:
		return PageResponse[T]{}, fmt.Errorf("method %s (%s) cannot page", method, d.kind)
	}

	items, err := r.findByN1QL(query)
	if err != nil {
		return PageResponse[T]{}, err
	}
	total, err := r.scanCount(countQuery)
	if err != nil {
		return PageResponse[T]{}, err
	}
	return newPageResponse(items, page, total), nil
}

// QueryCount executes a declared count method.
func (r *Repository[T]) QueryCount(method string, args ...interface{}) (int64, error) {
	d, err := r.descriptor(method)
	if err != nil {
		return 0, err
	}

	switch d.kind {
	case kindView:
		rows, err := r.store.ExecuteViewQuery(buildViewQuery(d.view, actionCount, d.consistency, args))
		if err != nil {
			return 0, err
		}
		return sumViewCount(rows)
	case kindDerivedN1QL:
		if a := d.derived.tree.action; a != actionCount && a != actionExists {
			return 0, fmt.Errorf("method %s is not a count method", method)
		}
		query, err := d.derived.render(args, nil, nil, d.consistency)
		if err != nil {
			return 0, err
		}
		return r.scanCount(query)
	default:
		return 0, fmt.Errorf("method %s (%s) is not a count method", method, d.kind)
	}
}

// QueryExists executes a declared exists method.
func (r *Repository[T]) QueryExists(method string, args ...interface{}) (bool, error) {
	count, err := r.QueryCount(method, args...)
	return count > 0, err
}

// QueryDelete executes a declared remove method: matches are selected,
// converted, then deleted by key, and the deleted entities are returned.
func (r *Repository[T]) QueryDelete(method string, args ...interface{}) ([]T, error) {
	d, err := r.descriptor(method)
	if err != nil {
		return nil, err
	}
	if d.kind != kindDerivedN1QL || d.derived.tree.action != actionDelete {
		return nil, fmt.Errorf("method %s is not a remove method", method)
	}

	query, err := d.derived.render(args, nil, nil, d.consistency)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.ExecuteN1QLQuery(query)
	if err != nil {
		return nil, err
	}

	deleted := make([]T, 0, len(rows))
	for _, raw := range rows {
		id, err := extractRowID(raw)
		if err != nil {
			return nil, err
		}
		entity, err := r.entityFromDocument(raw, id)
		if err != nil {
			return nil, err
		}
		if err := r.store.Remove(id); err != nil && err != ErrDocumentNotFound {
			return nil, err
		}
		deleted = append(deleted, entity)
	}
	return deleted, nil
}

func (r *Repository[T]) descriptor(method string) (*methodDescriptor, error) {
	d, ok := r.methods[method]
	if !ok {
		return nil, fmt.Errorf("no query method %s declared on repository for %s", method, r.meta.Type.Name())
	}
	return d, nil
}

func (r *Repository[T]) defaultViewQuery(action derivedAction, keys []interface{}) ViewQuery {
	marker := &ViewMarker{DesignDocument: r.designDocument, ViewName: r.allView}
	return buildViewQuery(marker, action, r.consistency, keys)
}

func (r *Repository[T]) emptyDerived(action derivedAction) *derivedQuery {
	return newDerivedQuery(&partTree{action: action}, r.meta, r.store.Keyspace())
}

// findByView runs the view query and materializes each row through a key
// fetch, since views only carry keys and emitted values.
func (r *Repository[T]) findByView(query ViewQuery) ([]T, error) {
	rows, err := r.store.ExecuteViewQuery(query)
	if err != nil {
		return nil, err
	}
	return r.materializeRows(rows)
}

func (r *Repository[T]) materializeRows(rows []ViewRow) ([]T, error) {
	items := make([]T, 0, len(rows))
	for _, row := range rows {
		raw, err := r.store.Get(row.ID)
		if err != nil {
			if err == ErrDocumentNotFound {
				continue // deleted between index read and fetch
			}
			return nil, err
		}
		entity, err := r.entityFromDocument(raw, row.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, entity)
	}
	return items, nil
}

func (r *Repository[T]) findByN1QL(query N1QLQuery) ([]T, error) {
	rows, err := r.store.ExecuteN1QLQuery(query)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(rows))
	for _, raw := range rows {
		id, err := extractRowID(raw)
		if err != nil {
			return nil, err
		}
		entity, err := r.entityFromDocument(raw, id)
		if err != nil {
			return nil, err
		}
		items = append(items, entity)
	}
	return items, nil
}

func (r *Repository[T]) scanCount(query N1QLQuery) (int64, error) {
	rows, err := r.store.ExecuteN1QLQuery(query)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	var row struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(rows[0], &row); err != nil {
		return 0, &MappingError{TargetType: "count", Err: err}
	}
	return row.Count, nil
}

func (r *Repository[T]) entityFromDocument(raw json.RawMessage, id string) (T, error) {
	var entity T
	if err := r.converter.FromDocument(raw, &entity); err != nil {
		return entity, err
	}
	if id != "" {
		r.meta.SetID(&entity, id)
	}
	return entity, nil
}

// extractRowID pulls the projected document key out of a declarative query
// row.
func extractRowID(raw json.RawMessage) (string, error) {
	var row struct {
		ID string `json:"__id"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return "", &MappingError{TargetType: "row id", Err: err}
	}
	return row.ID, nil
}

func newPageResponse[T any](items []T, page PageRequest, total int64) PageResponse[T] {
	totalPages := 0
	if page.Size > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(page.Size)))
	}
	return PageResponse[T]{
		Contents:         items,
		NumberOfElements: len(items),
		Pageable:         page,
		TotalElements:    int(total),
		TotalPages:       totalPages,
	}
}

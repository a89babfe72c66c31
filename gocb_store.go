package couchboot

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchbase/gocb/v2"
	"github.com/couchbase/gocb/v2/search"
)

// ClusterStore implements Store over a Couchbase cluster. KV traffic goes
// through the raw JSON transcoder so document payloads stay opaque to the
// SDK's own serializer.
type ClusterStore struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	collection *gocb.Collection
	keyspace   string
}

func (s *ClusterStore) Keyspace() string {
	return s.keyspace
}

func (s *ClusterStore) Upsert(id string, doc json.RawMessage) error {
	_, err := s.collection.Upsert(id, []byte(doc), &gocb.UpsertOptions{
		Transcoder: gocb.NewRawJSONTranscoder(),
	})
	return err
}

func (s *ClusterStore) Get(id string) (json.RawMessage, error) {
	result, err := s.collection.Get(id, &gocb.GetOptions{
		Transcoder: gocb.NewRawJSONTranscoder(),
	})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := result.Content(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *ClusterStore) Remove(id string) error {
	_, err := s.collection.Remove(id, nil)
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return ErrDocumentNotFound
	}
	return err
}

func (s *ClusterStore) ExecuteN1QLQuery(query N1QLQuery) ([]json.RawMessage, error) {
	opts := &gocb.QueryOptions{
		ScanConsistency: scanConsistencyOf(query.Consistency),
	}
	if len(query.Named) > 0 {
		opts.NamedParameters = query.Named
	} else if len(query.Positional) > 0 {
		opts.PositionalParameters = query.Positional
	}

	result, err := s.cluster.Query(query.Statement, opts)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var rows []json.RawMessage
	for result.Next() {
		var row json.RawMessage
		if err := result.Row(&row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ClusterStore) ExecuteViewQuery(query ViewQuery) ([]ViewRow, error) {
	opts := &gocb.ViewOptions{
		Reduce:          query.Reduce,
		ScanConsistency: viewConsistencyOf(query.Stale),
		Namespace:       gocb.DesignDocumentNamespaceProduction,
	}
	if len(query.Keys) > 0 {
		opts.Keys = query.Keys
	}
	if query.Limit > 0 {
		opts.Limit = uint32(query.Limit)
	}
	if query.Skip > 0 {
		opts.Skip = uint32(query.Skip)
	}

	result, err := s.bucket.ViewQuery(query.DesignDocument, query.ViewName, opts)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var rows []ViewRow
	for result.Next() {
		row := result.Row()

		out := ViewRow{ID: row.ID}
		var key interface{}
		if err := row.Key(&key); err == nil {
			out.Key = key
		}
		var value interface{}
		if err := row.Value(&value); err == nil {
			out.Value = value
		}
		rows = append(rows, out)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ClusterStore) ExecuteSpatialQuery(query SpatialQuery) ([]ViewRow, error) {
	// Top-left is (min longitude, max latitude), bottom-right the opposite.
	geo := search.NewGeoBoundingBoxQuery(
		query.Box.MinLongitude, query.Box.MaxLatitude,
		query.Box.MaxLongitude, query.Box.MinLatitude,
	).Field(query.Field)

	opts := &gocb.SearchOptions{}
	if query.Limit > 0 {
		opts.Limit = uint32(query.Limit)
	}

	result, err := s.cluster.SearchQuery(query.IndexName, geo, opts)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var rows []ViewRow
	for result.Next() {
		row := result.Row()
		rows = append(rows, ViewRow{ID: row.ID})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ClusterStore) CreateIndex(spec IndexSpec) error {
	switch spec.Kind {
	case IndexPrimary:
		return s.cluster.QueryIndexes().CreatePrimaryIndex(s.keyspace, &gocb.CreatePrimaryQueryIndexOptions{
			IgnoreIfExists: true,
			CustomName:     spec.Name,
		})

	case IndexSecondary:
		if spec.Name == "" || len(spec.Fields) == 0 {
			return fmt.Errorf("secondary index needs a name and fields")
		}
		return s.cluster.QueryIndexes().CreateIndex(s.keyspace, spec.Name, spec.Fields, &gocb.CreateQueryIndexOptions{
			IgnoreIfExists: true,
		})

	case IndexView:
		views := make(map[string]gocb.View, len(spec.Fields))
		for _, viewName := range spec.Fields {
			views[viewName] = gocb.View{
				Map:    "function (doc, meta) { emit(meta.id, null); }",
				Reduce: "_count",
			}
		}
		ddoc := gocb.DesignDocument{Name: spec.Name, Views: views}
		return s.bucket.ViewIndexes().UpsertDesignDocument(ddoc, gocb.DesignDocumentNamespaceProduction, nil)

	case IndexSpatial:
		return s.cluster.SearchIndexes().UpsertIndex(gocb.SearchIndex{
			Name:       spec.Name,
			Type:       "fulltext-index",
			SourceName: s.keyspace,
			SourceType: "couchbase",
		}, nil)

	default:
		return fmt.Errorf("unknown index kind %v", spec.Kind)
	}
}

func (s *ClusterStore) Capabilities() (FeatureAvailability, error) {
	result, err := s.cluster.Ping(&gocb.PingOptions{
		ServiceTypes: []gocb.ServiceType{
			gocb.ServiceTypeQuery,
			gocb.ServiceTypeViews,
			gocb.ServiceTypeSearch,
		},
	})
	if err != nil {
		return FeatureAvailability{}, err
	}

	ok := func(service gocb.ServiceType) bool {
		for _, report := range result.Services[service] {
			if report.State == gocb.PingStateOk {
				return true
			}
		}
		return false
	}

	return FeatureAvailability{
		N1QL:    ok(gocb.ServiceTypeQuery),
		Views:   ok(gocb.ServiceTypeViews),
		Spatial: ok(gocb.ServiceTypeSearch),
	}, nil
}

func scanConsistencyOf(c ScanConsistency) gocb.QueryScanConsistency {
	if c == ConsistencyEventual {
		return gocb.QueryScanConsistencyNotBounded
	}
	return gocb.QueryScanConsistencyRequestPlus
}

func viewConsistencyOf(stale bool) gocb.ViewScanConsistency {
	if stale {
		return gocb.ViewScanConsistencyNotBounded
	}
	return gocb.ViewScanConsistencyRequestPlus
}

package couchboot

import "fmt"

// buildSpatialQuery composes the bounding-shape query for one invocation. The
// first argument must be the bounding box; an optional second integer argument
// caps the number of matches.
func buildSpatialQuery(marker *SpatialMarker, args []interface{}) (SpatialQuery, error) {
	if len(args) == 0 {
		return SpatialQuery{}, fmt.Errorf("spatial query needs a BoundingBox argument")
	}

	var box BoundingBox
	switch b := args[0].(type) {
	case BoundingBox:
		box = b
	case *BoundingBox:
		box = *b
	default:
		return SpatialQuery{}, fmt.Errorf("spatial query needs a BoundingBox argument, got %T", args[0])
	}

	q := SpatialQuery{
		IndexName: marker.IndexName,
		Field:     marker.Field,
		Box:       box,
	}
	if len(args) > 1 {
		limit, ok := args[1].(int)
		if !ok {
			return SpatialQuery{}, fmt.Errorf("spatial query limit must be an int, got %T", args[1])
		}
		q.Limit = limit
	}
	return q, nil
}

package couchboot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// viewAction maps a view-backed method name to its semantics: count methods
// reduce, remove methods fetch keys and delete, everything else fetches
// entities.
func viewAction(methodName string) derivedAction {
	switch {
	case strings.HasPrefix(methodName, "Count"):
		return actionCount
	case strings.HasPrefix(methodName, "Exists"):
		return actionExists
	case strings.HasPrefix(methodName, "Remove"), strings.HasPrefix(methodName, "Delete"):
		return actionDelete
	default:
		return actionFind
	}
}

// buildViewQuery composes the view query for one invocation. Count semantics
// set reduce; the configured consistency maps onto the stale parameter.
// Invocation arguments become view keys: a single slice argument is used
// as the key set, otherwise each argument is one key.
func buildViewQuery(marker *ViewMarker, action derivedAction, consistency ScanConsistency, args []interface{}) ViewQuery {
	q := ViewQuery{
		DesignDocument: marker.DesignDocument,
		ViewName:       marker.ViewName,
		Reduce:         action == actionCount || action == actionExists,
		Stale:          consistency.ViewStale(),
	}

	if len(args) == 1 {
		if keys, ok := args[0].([]interface{}); ok {
			q.Keys = keys
			return q
		}
		if keys, ok := args[0].([]string); ok {
			for _, k := range keys {
				q.Keys = append(q.Keys, k)
			}
			return q
		}
	}
	if len(args) > 0 {
		q.Keys = append(q.Keys, args...)
	}
	return q
}

// sumViewCount totals the value of every row of a reduced view. Counts may be
// partitioned across index nodes, one row per node, and arrive as numeric
// text.
func sumViewCount(rows []ViewRow) (int64, error) {
	var total int64
	for _, row := range rows {
		n, err := viewRowValueAsInt64(row.Value)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func viewRowValueAsInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot read count from view row value of type %T", value)
	}
}

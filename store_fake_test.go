package couchboot

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// fakeStore is an in-memory Store for unit tests. It records every executed
// query for snapshot assertions and evaluates the statement shapes the
// renderers produce: equality/comparison/LIKE/IN predicates in AND/OR groups,
// ORDER BY, LIMIT and OFFSET.
type fakeStore struct {
	mu        sync.Mutex
	documents map[string]json.RawMessage

	features FeatureAvailability
	capErr   error
	capCalls int

	viewQueries    []ViewQuery
	n1qlQueries    []N1QLQuery
	spatialQueries []SpatialQuery
	createdIndexes []IndexSpec
	failIndexes    map[string]error

	// reduceRows overrides the rows returned for reduced view queries, to
	// model per-node partial counts.
	reduceRows []ViewRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		documents:   make(map[string]json.RawMessage),
		features:    FeatureAvailability{N1QL: true, Views: true, Spatial: true},
		failIndexes: make(map[string]error),
	}
}

func (s *fakeStore) Keyspace() string { return "parties" }

func (s *fakeStore) Upsert(id string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[id] = append(json.RawMessage(nil), doc...)
	return nil
}

func (s *fakeStore) Get(id string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *fakeStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.documents, id)
	return nil
}

func (s *fakeStore) Capabilities() (FeatureAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capCalls++
	if s.capErr != nil {
		return FeatureAvailability{}, s.capErr
	}
	return s.features, nil
}

func (s *fakeStore) CreateIndex(spec IndexSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failIndexes[spec.Name]; ok {
		return err
	}
	s.createdIndexes = append(s.createdIndexes, spec)
	return nil
}

func (s *fakeStore) lastViewQuery() ViewQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewQueries[len(s.viewQueries)-1]
}

func (s *fakeStore) lastN1QLQuery() N1QLQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n1qlQueries[len(s.n1qlQueries)-1]
}

func (s *fakeStore) ExecuteViewQuery(query ViewQuery) ([]ViewRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewQueries = append(s.viewQueries, query)

	if query.Reduce {
		if s.reduceRows != nil {
			return s.reduceRows, nil
		}
		return []ViewRow{{Value: strconv.Itoa(len(s.documents))}}, nil
	}

	keySet := make(map[string]bool, len(query.Keys))
	for _, k := range query.Keys {
		if id, ok := k.(string); ok {
			keySet[id] = true
		}
	}

	var rows []ViewRow
	for id := range s.documents {
		if len(keySet) > 0 && !keySet[id] {
			continue
		}
		rows = append(rows, ViewRow{ID: id, Key: id})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *fakeStore) ExecuteSpatialQuery(query SpatialQuery) ([]ViewRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spatialQueries = append(s.spatialQueries, query)

	var rows []ViewRow
	for id, raw := range s.documents {
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		loc, ok := doc[query.Field].(map[string]interface{})
		if !ok {
			continue
		}
		lon, _ := loc["lon"].(float64)
		lat, _ := loc["lat"].(float64)
		if lon >= query.Box.MinLongitude && lon <= query.Box.MaxLongitude &&
			lat >= query.Box.MinLatitude && lat <= query.Box.MaxLatitude {
			rows = append(rows, ViewRow{ID: id})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

var (
	fakePredicate = regexp.MustCompile("`(\\w+)` (=|!=|>=|<=|>|<|LIKE|NOT IN|IN) \\$(\\w+)")
	fakeLimit     = regexp.MustCompile(`LIMIT (\d+) OFFSET (\d+)`)
	fakeOrderBy   = regexp.MustCompile(`ORDER BY (.+?)(?: LIMIT |$)`)
	fakeOrderTerm = regexp.MustCompile("(LOWER\\()?(?:META\\(`\\w+`\\)\\.`id`|`(\\w+)`)\\)? (ASC|DESC)")
)

func (s *fakeStore) ExecuteN1QLQuery(query N1QLQuery) ([]json.RawMessage, error) {
	s.mu.Lock()
	s.n1qlQueries = append(s.n1qlQueries, query)
	docs := make(map[string]json.RawMessage, len(s.documents))
	for id, raw := range s.documents {
		docs[id] = raw
	}
	s.mu.Unlock()

	param := func(ref string) interface{} {
		if n, err := strconv.Atoi(ref); err == nil {
			return query.Positional[n-1]
		}
		return query.Named[ref]
	}

	type match struct {
		id  string
		doc map[string]interface{}
	}
	var matches []match
	for id, raw := range docs {
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if evalFakeWhere(query.Statement, doc, param) {
			matches = append(matches, match{id: id, doc: doc})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].id < matches[j].id })
	if m := fakeOrderBy.FindStringSubmatch(query.Statement); m != nil {
		terms := fakeOrderTerm.FindAllStringSubmatch(m[1], -1)
		sort.SliceStable(matches, func(i, j int) bool {
			for _, term := range terms {
				field, desc := term[2], term[3] == "DESC"
				var a, b interface{}
				if field == "" { // META().id tiebreak
					a, b = matches[i].id, matches[j].id
				} else {
					a, b = matches[i].doc[field], matches[j].doc[field]
				}
				if term[1] != "" { // LOWER(
					a = strings.ToLower(fmt.Sprint(a))
					b = strings.ToLower(fmt.Sprint(b))
				}
				c := compareFakeValues(a, b)
				if c == 0 {
					continue
				}
				if desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if m := fakeLimit.FindStringSubmatch(query.Statement); m != nil {
		limit, _ := strconv.Atoi(m[1])
		offset, _ := strconv.Atoi(m[2])
		if offset > len(matches) {
			offset = len(matches)
		}
		matches = matches[offset:]
		if limit < len(matches) {
			matches = matches[:limit]
		}
	}

	if strings.Contains(query.Statement, "SELECT COUNT(*)") {
		row, _ := json.Marshal(map[string]int{"count": len(matches)})
		return []json.RawMessage{row}, nil
	}

	rows := make([]json.RawMessage, 0, len(matches))
	for _, m := range matches {
		projected := make(map[string]interface{}, len(m.doc)+1)
		for k, v := range m.doc {
			projected[k] = v
		}
		projected["__id"] = m.id
		row, err := json.Marshal(projected)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func evalFakeWhere(statement string, doc map[string]interface{}, param func(string) interface{}) bool {
	idx := strings.Index(statement, " WHERE ")
	if idx == -1 {
		return true
	}
	where := statement[idx+len(" WHERE "):]
	if cut := strings.Index(where, " ORDER BY "); cut != -1 {
		where = where[:cut]
	}
	if cut := strings.Index(where, " LIMIT "); cut != -1 {
		where = where[:cut]
	}

	for _, orPart := range strings.Split(where, " OR ") {
		groupMatches := true
		for _, andPart := range strings.Split(orPart, " AND ") {
			m := fakePredicate.FindStringSubmatch(andPart)
			if m == nil {
				groupMatches = false
				break
			}
			if !evalFakePredicate(doc[m[1]], m[2], param(m[3])) {
				groupMatches = false
				break
			}
		}
		if groupMatches {
			return true
		}
	}
	return false
}

func evalFakePredicate(actual interface{}, op string, expected interface{}) bool {
	switch op {
	case "=":
		return compareFakeValues(actual, expected) == 0
	case "!=":
		return compareFakeValues(actual, expected) != 0
	case ">":
		return compareFakeValues(actual, expected) > 0
	case ">=":
		return compareFakeValues(actual, expected) >= 0
	case "<":
		return compareFakeValues(actual, expected) < 0
	case "<=":
		return compareFakeValues(actual, expected) <= 0
	case "LIKE":
		pattern, ok1 := expected.(string)
		value, ok2 := actual.(string)
		return ok1 && ok2 && likeMatch(pattern, value)
	case "IN", "NOT IN":
		found := false
		switch list := expected.(type) {
		case []interface{}:
			for _, item := range list {
				if compareFakeValues(actual, item) == 0 {
					found = true
				}
			}
		case []string:
			for _, item := range list {
				if compareFakeValues(actual, item) == 0 {
					found = true
				}
			}
		}
		if op == "IN" {
			return found
		}
		return !found
	default:
		return false
	}
}

func compareFakeValues(a, b interface{}) int {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// likeMatch interprets a LIKE pattern with backslash escapes against a value.
func likeMatch(pattern, value string) bool {
	var re strings.Builder
	re.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			if i+1 < len(pattern) {
				i++
				re.WriteString(regexp.QuoteMeta(string(pattern[i])))
			}
		case '%':
			re.WriteString(".*")
		case '_':
			re.WriteString(".")
		default:
			re.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	re.WriteString("$")
	matched, err := regexp.MatchString(re.String(), value)
	return err == nil && matched
}

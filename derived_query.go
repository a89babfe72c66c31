package couchboot

import (
	"fmt"
	"strings"
	"unicode"
)

type derivedAction int

const (
	actionFind derivedAction = iota
	actionCount
	actionExists
	actionDelete
)

type derivedOperator int

const (
	opEquals derivedOperator = iota
	opNot
	opGreaterThan
	opGreaterThanEqual
	opLessThan
	opLessThanEqual
	opBetween
	opStartingWith
	opEndingWith
	opContaining
	opIn
	opNotIn
)

// derivedPredicate is one property comparison in a part tree. Field is the
// resolved document field name.
type derivedPredicate struct {
	field    string
	operator derivedOperator
}

func (p derivedPredicate) argCount() int {
	if p.operator == opBetween {
		return 2
	}
	return 1
}

// partTree is the parsed form of a derived method name: OR-joined groups of
// AND-joined predicates, plus the action the prefix implies.
type partTree struct {
	action   derivedAction
	orGroups [][]derivedPredicate
	argCount int
}

var derivedPrefixes = []struct {
	prefix string
	action derivedAction
}{
	{"FindAllBy", actionFind},
	{"FindBy", actionFind},
	{"GetBy", actionFind},
	{"ReadBy", actionFind},
	{"QueryBy", actionFind},
	{"CountBy", actionCount},
	{"ExistsBy", actionExists},
	{"RemoveAllBy", actionDelete},
	{"RemoveBy", actionDelete},
	{"DeleteAllBy", actionDelete},
	{"DeleteBy", actionDelete},
}

var operatorSuffixes = []struct {
	suffix   string
	operator derivedOperator
}{
	{"GreaterThanEqual", opGreaterThanEqual},
	{"GreaterThan", opGreaterThan},
	{"LessThanEqual", opLessThanEqual},
	{"LessThan", opLessThan},
	{"StartingWith", opStartingWith},
	{"EndingWith", opEndingWith},
	{"Containing", opContaining},
	{"Between", opBetween},
	{"NotIn", opNotIn},
	{"In", opIn},
	{"Not", opNot},
}

// parseDerivedMethod parses a method name such as FindByNameAndAge or
// RemoveByDescriptionOrName into a part tree, resolving each property token
// against the entity metadata.
func parseDerivedMethod(name string, meta *EntityMetadata) (*partTree, error) {
	var predicate string
	tree := &partTree{}

	matched := false
	for _, p := range derivedPrefixes {
		if strings.HasPrefix(name, p.prefix) {
			predicate = strings.TrimPrefix(name, p.prefix)
			tree.action = p.action
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("method name %s has no derivable prefix (FindBy, CountBy, ExistsBy, RemoveBy, ...)", name)
	}
	if predicate == "" {
		return nil, fmt.Errorf("method name %s has no predicate after its prefix", name)
	}

	for _, orPart := range splitCamelKeyword(predicate, "Or") {
		var group []derivedPredicate
		for _, andPart := range splitCamelKeyword(orPart, "And") {
			part, err := parsePredicate(andPart, meta)
			if err != nil {
				return nil, fmt.Errorf("method name %s: %w", name, err)
			}
			group = append(group, part)
			tree.argCount += part.argCount()
		}
		tree.orGroups = append(tree.orGroups, group)
	}

	return tree, nil
}

func parsePredicate(token string, meta *EntityMetadata) (derivedPredicate, error) {
	operator := opEquals
	property := token
	for _, s := range operatorSuffixes {
		if strings.HasSuffix(token, s.suffix) && len(token) > len(s.suffix) {
			operator = s.operator
			property = strings.TrimSuffix(token, s.suffix)
			break
		}
	}

	field, ok := meta.DocumentField(property)
	if !ok {
		return derivedPredicate{}, fmt.Errorf("entity %s has no property %s", meta.Type.Name(), property)
	}
	return derivedPredicate{field: field, operator: operator}, nil
}

// splitCamelKeyword splits s on keyword occurrences that sit on camel-case
// boundaries: the keyword must be followed by an uppercase rune and must not
// start the string, so property names like OrderId or Brand stay intact.
func splitCamelKeyword(s, keyword string) []string {
	var parts []string
	start := 0
	for i := 1; i+len(keyword) < len(s); i++ {
		if s[i:i+len(keyword)] == keyword && unicode.IsUpper(rune(s[i+len(keyword)])) {
			parts = append(parts, s[start:i])
			start = i + len(keyword)
			i = start - 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// derivedQuery renders a part tree to declarative query text. The WHERE
// clause and parameter layout are fixed at classification time; ORDER BY,
// LIMIT and OFFSET vary per invocation.
type derivedQuery struct {
	tree     *partTree
	meta     *EntityMetadata
	keyspace string
	where    string
}

func newDerivedQuery(tree *partTree, meta *EntityMetadata, keyspace string) *derivedQuery {
	q := &derivedQuery{tree: tree, meta: meta, keyspace: keyspace}
	q.where = q.renderWhere()
	return q
}

func (q *derivedQuery) renderWhere() string {
	if len(q.tree.orGroups) == 0 {
		return ""
	}
	arg := 1
	groups := make([]string, 0, len(q.tree.orGroups))
	for _, group := range q.tree.orGroups {
		parts := make([]string, 0, len(group))
		for _, p := range group {
			parts = append(parts, renderPredicate(p, &arg))
		}
		groups = append(groups, "("+strings.Join(parts, " AND ")+")")
	}
	return strings.Join(groups, " OR ")
}

func renderPredicate(p derivedPredicate, arg *int) string {
	field := "`" + p.field + "`"
	next := func() string {
		s := fmt.Sprintf("$%d", *arg)
		*arg++
		return s
	}

	switch p.operator {
	case opNot:
		return fmt.Sprintf("%s != %s", field, next())
	case opGreaterThan:
		return fmt.Sprintf("%s > %s", field, next())
	case opGreaterThanEqual:
		return fmt.Sprintf("%s >= %s", field, next())
	case opLessThan:
		return fmt.Sprintf("%s < %s", field, next())
	case opLessThanEqual:
		return fmt.Sprintf("%s <= %s", field, next())
	case opBetween:
		low, high := next(), next()
		return fmt.Sprintf("%s BETWEEN %s AND %s", field, low, high)
	case opStartingWith, opEndingWith, opContaining:
		return fmt.Sprintf("%s LIKE %s", field, next())
	case opIn:
		return fmt.Sprintf("%s IN %s", field, next())
	case opNotIn:
		return fmt.Sprintf("%s NOT IN %s", field, next())
	default:
		return fmt.Sprintf("%s = %s", field, next())
	}
}

// bindArgs prepares the positional parameter list, applying LIKE wildcard
// composition with the user value escaped so metacharacters stay literal.
func (q *derivedQuery) bindArgs(args []interface{}) ([]interface{}, error) {
	if len(args) != q.tree.argCount {
		return nil, fmt.Errorf("expected %d arguments, got %d", q.tree.argCount, len(args))
	}

	bound := make([]interface{}, 0, len(args))
	i := 0
	for _, group := range q.tree.orGroups {
		for _, p := range group {
			switch p.operator {
			case opStartingWith, opEndingWith, opContaining:
				s, ok := args[i].(string)
				if !ok {
					return nil, fmt.Errorf("LIKE predicate on %s needs a string argument", p.field)
				}
				escaped := escapeLikeLiteral(s)
				switch p.operator {
				case opStartingWith:
					bound = append(bound, escaped+"%")
				case opEndingWith:
					bound = append(bound, "%"+escaped)
				default:
					bound = append(bound, "%"+escaped+"%")
				}
				i++
			case opBetween:
				bound = append(bound, args[i], args[i+1])
				i += 2
			default:
				bound = append(bound, args[i])
				i++
			}
		}
	}
	return bound, nil
}

// render builds the executable query for one invocation.
func (q *derivedQuery) render(args []interface{}, sort []SortField, page *PageRequest, consistency ScanConsistency) (N1QLQuery, error) {
	positional, err := q.bindArgs(args)
	if err != nil {
		return N1QLQuery{}, err
	}

	var b strings.Builder
	switch q.tree.action {
	case actionCount, actionExists:
		fmt.Fprintf(&b, "SELECT COUNT(*) AS `count` FROM `%s`", q.keyspace)
	default:
		fmt.Fprintf(&b, "SELECT META(`%s`).`id` AS `__id`, `%s`.* FROM `%s`", q.keyspace, q.keyspace, q.keyspace)
	}
	if q.where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.where)
	}

	if q.tree.action == actionFind || q.tree.action == actionDelete {
		clause, err := renderOrderAndLimit(q.meta, q.keyspace, sort, page)
		if err != nil {
			return N1QLQuery{}, err
		}
		b.WriteString(clause)
	}

	return N1QLQuery{
		Statement:   b.String(),
		Positional:  positional,
		Consistency: consistency,
	}, nil
}

// renderOrderAndLimit renders the shared ORDER BY / LIMIT OFFSET tail. Paging
// without an explicit sort gets a deterministic document-key tiebreak so pages
// never overlap.
func renderOrderAndLimit(meta *EntityMetadata, keyspace string, sort []SortField, page *PageRequest) (string, error) {
	var b strings.Builder

	if page != nil && len(sort) == 0 {
		sort = page.Sort
	}
	if len(sort) > 0 {
		clauses := make([]string, 0, len(sort))
		for _, s := range sort {
			field, ok := meta.DocumentField(s.Field)
			if !ok {
				return "", fmt.Errorf("cannot sort on unknown property %s", s.Field)
			}
			expr := "`" + field + "`"
			if s.IgnoreCase {
				expr = "LOWER(" + expr + ")"
			}
			direction := "ASC"
			if !s.ascending() {
				direction = "DESC"
			}
			clauses = append(clauses, expr+" "+direction)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(clauses, ", "))
	} else if page != nil {
		fmt.Fprintf(&b, " ORDER BY META(`%s`).`id` ASC", keyspace)
	}

	if page != nil {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", page.Size, page.offset())
	}
	return b.String(), nil
}

// renderCount builds the matching count query for page totals.
func (q *derivedQuery) renderCount(args []interface{}, consistency ScanConsistency) (N1QLQuery, error) {
	positional, err := q.bindArgs(args)
	if err != nil {
		return N1QLQuery{}, err
	}
	statement := fmt.Sprintf("SELECT COUNT(*) AS `count` FROM `%s`", q.keyspace)
	if q.where != "" {
		statement += " WHERE " + q.where
	}
	return N1QLQuery{Statement: statement, Positional: positional, Consistency: consistency}, nil
}

// escapeLikeLiteral escapes LIKE wildcards and the escape character itself so
// a bound value matches literally.
func escapeLikeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

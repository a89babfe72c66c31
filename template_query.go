package couchboot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	positionalPlaceholder = regexp.MustCompile(`\$(\d+)`)
	namedPlaceholder      = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// templateQuery is an inline or named query template resolved once at
// classification time. Expression placeholders #{...} are compiled eagerly and
// rewritten to generated named parameters, so evaluated values always travel
// as bound parameters and never as statement text.
type templateQuery struct {
	statement string
	params    []string

	positional bool
	namedRefs  []string

	exprNames    []string
	exprPrograms []*vm.Program
}

func parseTemplateQuery(statement string, params []string) (*templateQuery, error) {
	t := &templateQuery{params: params}

	rewritten, err := t.extractExpressions(statement)
	if err != nil {
		return nil, err
	}
	t.statement = rewritten

	t.positional = positionalPlaceholder.MatchString(rewritten)
	for _, match := range namedPlaceholder.FindAllStringSubmatch(rewritten, -1) {
		name := match[1]
		if strings.HasPrefix(name, "__expr") {
			continue
		}
		t.namedRefs = append(t.namedRefs, name)
	}

	if t.positional && len(t.namedRefs) > 0 {
		return nil, fmt.Errorf("query template mixes positional and named placeholders")
	}
	if t.positional && len(t.exprPrograms) > 0 {
		return nil, fmt.Errorf("query template mixes positional placeholders with expressions; use named parameters")
	}
	for _, ref := range t.namedRefs {
		if !containsString(params, ref) {
			return nil, fmt.Errorf("query template references unknown parameter $%s", ref)
		}
	}
	return t, nil
}

// extractExpressions replaces every #{...} segment with a generated named
// parameter and compiles the expression source.
func (t *templateQuery) extractExpressions(statement string) (string, error) {
	var b strings.Builder
	for {
		start := strings.Index(statement, "#{")
		if start == -1 {
			b.WriteString(statement)
			break
		}
		end := strings.Index(statement[start:], "}")
		if end == -1 {
			return "", fmt.Errorf("unterminated expression placeholder in query template")
		}
		end += start

		source := statement[start+2 : end]
		program, err := expr.Compile(source, expr.AllowUndefinedVariables())
		if err != nil {
			return "", fmt.Errorf("invalid expression %q: %v", source, err)
		}

		name := fmt.Sprintf("__expr%d", len(t.exprPrograms))
		t.exprPrograms = append(t.exprPrograms, program)
		t.exprNames = append(t.exprNames, name)

		b.WriteString(statement[:start])
		b.WriteString("$" + name)
		statement = statement[end+1:]
	}
	return b.String(), nil
}

// render binds invocation arguments and evaluates expression placeholders,
// producing the executable query for this call.
func (t *templateQuery) render(args []interface{}, sort []SortField, page *PageRequest, meta *EntityMetadata, keyspace string, consistency ScanConsistency) (N1QLQuery, error) {
	statement := t.statement
	if page != nil || len(sort) > 0 {
		tail, err := renderOrderAndLimit(meta, keyspace, sort, page)
		if err != nil {
			return N1QLQuery{}, err
		}
		statement += tail
	}

	q := N1QLQuery{Statement: statement, Consistency: consistency}

	if t.positional {
		q.Positional = append([]interface{}(nil), args...)
		return q, nil
	}

	named := make(map[string]interface{}, len(t.namedRefs)+len(t.exprPrograms))
	for _, ref := range t.namedRefs {
		for i, param := range t.params {
			if param == ref {
				if i >= len(args) {
					return N1QLQuery{}, fmt.Errorf("missing argument for parameter $%s", ref)
				}
				named[ref] = args[i]
			}
		}
	}

	if len(t.exprPrograms) > 0 {
		env := t.expressionEnv(args)
		for i, program := range t.exprPrograms {
			value, err := expr.Run(program, env)
			if err != nil {
				return N1QLQuery{}, fmt.Errorf("expression evaluation failed: %v", err)
			}
			named[t.exprNames[i]] = value
		}
	}

	q.Named = named
	return q, nil
}

// expressionEnv exposes invocation arguments to expressions both by declared
// parameter name and positionally as p0..pN.
func (t *templateQuery) expressionEnv(args []interface{}) map[string]interface{} {
	env := make(map[string]interface{}, 2*len(args))
	for i, arg := range args {
		env[fmt.Sprintf("p%d", i)] = arg
		if i < len(t.params) {
			env[t.params[i]] = arg
		}
	}
	return env
}

// renderCount wraps the template in a count projection for page totals.
func (t *templateQuery) renderCount(args []interface{}, consistency ScanConsistency) (N1QLQuery, error) {
	inner, err := t.render(args, nil, nil, nil, "", consistency)
	if err != nil {
		return N1QLQuery{}, err
	}
	inner.Statement = "SELECT COUNT(*) AS `count` FROM (" + inner.Statement + ") AS `__total`"
	return inner, nil
}

func containsString(list []string, s string) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

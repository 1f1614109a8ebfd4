// Package selector filters catalog items with CEL expressions.
//
// Available variables: id, title, vendor, product_type, group (string),
// targets, missing (int). Example:
//
//	vendor == "Acme Tools" && missing > 0
package selector

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"skuforge/internal/domain/assignment"
)

// Filter is a compiled item filter. A nil Filter matches everything.
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile parses and type-checks expr. An empty expression yields nil.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("vendor", cel.StringType),
		cel.Variable("product_type", cel.StringType),
		cel.Variable("group", cel.StringType),
		cel.Variable("targets", cel.IntType),
		cel.Variable("missing", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return "true"
	}
	return f.expr
}

// Match evaluates the filter against item.
func (f *Filter) Match(item *assignment.Item) (bool, error) {
	if f == nil {
		return true, nil
	}

	missing := 0
	for _, t := range item.Targets {
		if !t.HasSKU() {
			missing++
		}
	}

	out, _, err := f.prg.Eval(map[string]any{
		"id":           item.ID,
		"title":        item.Title,
		"vendor":       item.Vendor,
		"product_type": item.ProductType,
		"group":        item.Group().String(),
		"targets":      int64(len(item.Targets)),
		"missing":      int64(missing),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.expr, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T", f.expr, out.Value())
	}
	return matched, nil
}

// Select returns the items matching the filter, in order.
func (f *Filter) Select(items []assignment.Item) ([]assignment.Item, error) {
	if f == nil {
		return items, nil
	}
	out := make([]assignment.Item, 0, len(items))
	for i := range items {
		ok, err := f.Match(&items[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, items[i])
		}
	}
	return out, nil
}

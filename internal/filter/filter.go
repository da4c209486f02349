package filter

import "gopkg.in/yaml.v3"

// Filter is a compiled filter expression. The zero value is not usable;
// use New or Always.
type Filter struct {
	raw string
	ast Expr
}

// New compiles a filter expression. Malformed expressions return a
// *ParseError carrying the offending line and column.
func New(src string) (*Filter, error) {
	ast, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Filter{raw: src, ast: ast}, nil
}

// Always is the filter that matches everything.
func Always() *Filter {
	return &Filter{raw: "true", ast: &LiteralExpr{Value: Bool(true)}}
}

// Matches evaluates the filter against a target under the truthiness
// rules. Evaluation is total; it cannot fail on any target.
func (f *Filter) Matches(target Filterable) bool {
	return f.ast.Eval(target).Truthy()
}

// String returns the raw expression the filter was compiled from.
func (f *Filter) String() string { return f.raw }

// UnmarshalYAML compiles the filter at configuration parse time so
// malformed expressions are config errors, not runtime surprises.
func (f *Filter) UnmarshalYAML(node *yaml.Node) error {
	var src string
	if err := node.Decode(&src); err != nil {
		return err
	}
	parsed, err := New(src)
	if err != nil {
		return err
	}
	*f = *parsed
	return nil
}

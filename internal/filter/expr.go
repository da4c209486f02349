package filter

import "strings"

// Expr is a node of a parsed filter expression.
type Expr interface {
	// Eval computes the value of the node against a target. It is pure
	// and total: it never fails, regardless of the target's contents.
	Eval(target Filterable) Value

	String() string
}

// LiteralExpr yields a constant value.
type LiteralExpr struct {
	Value Value
}

func (e *LiteralExpr) Eval(Filterable) Value { return e.Value }
func (e *LiteralExpr) String() string        { return e.Value.String() }

// PathExpr looks a dotted property path up on the target. A missing
// path yields null.
type PathExpr struct {
	Path string
}

func (e *PathExpr) Eval(target Filterable) Value { return target.Get(e.Path) }
func (e *PathExpr) String() string               { return e.Path }

// UnaryExpr is logical negation over truthiness.
type UnaryExpr struct {
	Expr Expr
}

func (e *UnaryExpr) Eval(target Filterable) Value {
	return Bool(!e.Expr.Eval(target).Truthy())
}

func (e *UnaryExpr) String() string { return "!" + e.Expr.String() }

// BinaryExpr covers comparisons and membership tests. Operands of
// mismatched kinds compare unequal and never order; the operators are
// total and never fail.
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (e *BinaryExpr) Eval(target Filterable) Value {
	left := e.Left.Eval(target)
	right := e.Right.Eval(target)

	switch e.Op {
	case TokenEq:
		return Bool(left.Equal(right))
	case TokenNotEq:
		return Bool(!left.Equal(right))
	case TokenLess:
		c, ok := left.Compare(right)
		return Bool(ok && c < 0)
	case TokenGreater:
		c, ok := left.Compare(right)
		return Bool(ok && c > 0)
	case TokenLessEq:
		c, ok := left.Compare(right)
		return Bool(ok && c <= 0)
	case TokenGreaterEq:
		c, ok := left.Compare(right)
		return Bool(ok && c >= 0)
	case TokenIn:
		return Bool(right.Contains(left))
	case TokenContains:
		return Bool(left.Contains(right))
	case TokenStartsWith:
		return Bool(left.StartsWith(right))
	case TokenEndsWith:
		return Bool(left.EndsWith(right))
	}
	return Null
}

func (e *BinaryExpr) String() string {
	return "(" + Token{Type: e.Op}.String() + " " + e.Left.String() + " " + e.Right.String() + ")"
}

// LogicalExpr is a short-circuiting && or ||. The result keeps the
// type of whichever side decided the outcome; it is not coerced to a
// boolean.
type LogicalExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (e *LogicalExpr) Eval(target Filterable) Value {
	left := e.Left.Eval(target)
	switch e.Op {
	case TokenAnd:
		if !left.Truthy() {
			return left
		}
	case TokenOr:
		if left.Truthy() {
			return left
		}
	}
	return e.Right.Eval(target)
}

func (e *LogicalExpr) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(Token{Type: e.Op}.String())
	b.WriteString(" ")
	b.WriteString(e.Left.String())
	b.WriteString(" ")
	b.WriteString(e.Right.String())
	b.WriteString(")")
	return b.String()
}

/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sql

import (
	"fmt"
	"strings"
)

// Expression is a single tagged expression tree, shared between the parser
// output and the planned form. Column references are resolved into Field
// positions by the planner.
type Expression interface {
	fmt.Stringer
	expr()
}

// Literal is a constant value.
type Literal struct {
	Value Value
}

// ColumnRef is an unresolved [table.]column reference.
type ColumnRef struct {
	Table string
	Name  string
}

// Field is a resolved reference to the i-th column of the source row.
// Table and Name are retained for display only.
type Field struct {
	Index int
	Table string
	Name  string
}

// Function is a function call; only aggregate functions exist, and the
// planner extracts them before expressions are evaluated.
type Function struct {
	Name string
	Args []Expression
	Star bool
}

type PrefixOp int

const (
	OpNot PrefixOp = iota
	OpNeg
	OpPos
)

type PrefixExpr struct {
	Op PrefixOp
	E  Expression
}

type InfixOp int

const (
	OpOr InfixOp = iota
	OpAnd
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLike
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpExponentiate
)

type InfixExpr struct {
	Op InfixOp
	L  Expression
	R  Expression
}

type PostfixOp int

const (
	OpIsNull PostfixOp = iota
	OpIsNotNull
	OpFactorial
)

type PostfixExpr struct {
	Op PostfixOp
	E  Expression
}

func (*Literal) expr()     {}
func (*ColumnRef) expr()   {}
func (*Field) expr()       {}
func (*Function) expr()    {}
func (*PrefixExpr) expr()  {}
func (*InfixExpr) expr()   {}
func (*PostfixExpr) expr() {}

func (e *Literal) String() string {
	if e.Value.Type == TypeString {
		return fmt.Sprintf("%q", e.Value.S)
	}
	return e.Value.String()
}

func (e *ColumnRef) String() string {
	if e.Table != "" {
		return e.Table + "." + e.Name
	}
	return e.Name
}

func (e *Field) String() string {
	switch {
	case e.Table != "":
		return e.Table + "." + e.Name
	case e.Name != "":
		return e.Name
	}
	return fmt.Sprintf("#%d", e.Index)
}

func (e *Function) String() string {
	if e.Star {
		return e.Name + "(*)"
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}

func (e *PrefixExpr) String() string {
	switch e.Op {
	case OpNot:
		return "NOT " + e.E.String()
	case OpNeg:
		return "-" + e.E.String()
	}
	return e.E.String()
}

func (op InfixOp) String() string {
	switch op {
	case OpOr:
		return "OR"
	case OpAnd:
		return "AND"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLike:
		return "LIKE"
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	case OpExponentiate:
		return "^"
	}
	return "?"
}

func (e *InfixExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.L, e.Op, e.R)
}

func (e *PostfixExpr) String() string {
	switch e.Op {
	case OpIsNull:
		return e.E.String() + " IS NULL"
	case OpIsNotNull:
		return e.E.String() + " IS NOT NULL"
	case OpFactorial:
		return e.E.String() + "!"
	}
	return e.E.String()
}

// transformExpr rebuilds the tree applying pre before descending into a node
// and post afterwards. Either may be nil.
func transformExpr(e Expression, pre, post func(Expression) (Expression, error)) (Expression, error) {
	if e == nil {
		return nil, nil
	}

	var err error

	if pre != nil {
		e, err = pre(e)
		if err != nil {
			return nil, err
		}
	}

	switch t := e.(type) {
	case *Literal, *ColumnRef, *Field:
		// leaves
	case *Function:
		args := make([]Expression, len(t.Args))
		for i, a := range t.Args {
			args[i], err = transformExpr(a, pre, post)
			if err != nil {
				return nil, err
			}
		}
		e = &Function{Name: t.Name, Args: args, Star: t.Star}
	case *PrefixExpr:
		inner, err := transformExpr(t.E, pre, post)
		if err != nil {
			return nil, err
		}
		e = &PrefixExpr{Op: t.Op, E: inner}
	case *InfixExpr:
		l, err := transformExpr(t.L, pre, post)
		if err != nil {
			return nil, err
		}
		r, err := transformExpr(t.R, pre, post)
		if err != nil {
			return nil, err
		}
		e = &InfixExpr{Op: t.Op, L: l, R: r}
	case *PostfixExpr:
		inner, err := transformExpr(t.E, pre, post)
		if err != nil {
			return nil, err
		}
		e = &PostfixExpr{Op: t.Op, E: inner}
	}

	if post != nil {
		return post(e)
	}
	return e, nil
}

func containsExpr(e Expression, pred func(Expression) bool) bool {
	if e == nil {
		return false
	}
	if pred(e) {
		return true
	}
	switch t := e.(type) {
	case *Function:
		for _, a := range t.Args {
			if containsExpr(a, pred) {
				return true
			}
		}
	case *PrefixExpr:
		return containsExpr(t.E, pred)
	case *InfixExpr:
		return containsExpr(t.L, pred) || containsExpr(t.R, pred)
	case *PostfixExpr:
		return containsExpr(t.E, pred)
	}
	return false
}

func containsField(e Expression) bool {
	return containsExpr(e, func(e Expression) bool {
		_, isField := e.(*Field)
		_, isRef := e.(*ColumnRef)
		return isField || isRef
	})
}

// splitAnd flattens top-level AND conjuncts into a slice.
func splitAnd(e Expression) []Expression {
	if e == nil {
		return nil
	}
	if and, ok := e.(*InfixExpr); ok && and.Op == OpAnd {
		return append(splitAnd(and.L), splitAnd(and.R)...)
	}
	return []Expression{e}
}

// joinAnd rebuilds a conjunction; nil when the slice is empty.
func joinAnd(exprs []Expression) Expression {
	var out Expression
	for _, e := range exprs {
		if out == nil {
			out = e
		} else {
			out = &InfixExpr{Op: OpAnd, L: out, R: e}
		}
	}
	return out
}

// shiftFields returns a copy of e with every Field index displaced by delta.
func shiftFields(e Expression, delta int) (Expression, error) {
	return transformExpr(e, nil, func(e Expression) (Expression, error) {
		if f, ok := e.(*Field); ok {
			return &Field{Index: f.Index + delta, Table: f.Table, Name: f.Name}, nil
		}
		return e, nil
	})
}

// fieldsSatisfy reports whether every Field in e satisfies pred on its index.
func fieldsSatisfy(e Expression, pred func(int) bool) bool {
	return !containsExpr(e, func(e Expression) bool {
		if f, ok := e.(*Field); ok {
			return !pred(f.Index)
		}
		return false
	})
}

// lookupFieldValues detects equality or an OR-disjunction of equalities
// between the given field position and constants, returning the constant set.
func lookupFieldValues(e Expression, index int) []Value {
	switch t := e.(type) {
	case *InfixExpr:
		switch t.Op {
		case OpEqual:
			if f, ok := t.L.(*Field); ok && f.Index == index {
				if lit, ok := t.R.(*Literal); ok && !lit.Value.IsNull() {
					return []Value{lit.Value}
				}
			}
			if f, ok := t.R.(*Field); ok && f.Index == index {
				if lit, ok := t.L.(*Literal); ok && !lit.Value.IsNull() {
					return []Value{lit.Value}
				}
			}
		case OpOr:
			l := lookupFieldValues(t.L, index)
			if l == nil {
				return nil
			}
			r := lookupFieldValues(t.R, index)
			if r == nil {
				return nil
			}
			return append(l, r...)
		}
	}
	return nil
}

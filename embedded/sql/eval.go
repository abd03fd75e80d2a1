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
	"math"
	"regexp"
	"strings"
)

// evalExpr evaluates an expression against a row context. A nil row is the
// constant context. Comparisons and logic follow SQL tri-valued semantics.
func evalExpr(e Expression, row Row) (Value, error) {
	switch t := e.(type) {
	case *Literal:
		return t.Value, nil

	case *Field:
		if row == nil || t.Index >= len(row) {
			return NullValue(), nil
		}
		return row[t.Index], nil

	case *ColumnRef:
		return NullValue(), fmt.Errorf("%w: unresolved column %s", ErrUnexpected, t)

	case *Function:
		return NullValue(), fmt.Errorf("%w: aggregate function %s in illegal position", ErrParsing, t.Name)

	case *PrefixExpr:
		return evalPrefix(t, row)

	case *InfixExpr:
		return evalInfix(t, row)

	case *PostfixExpr:
		return evalPostfix(t, row)
	}
	return NullValue(), fmt.Errorf("%w: unknown expression", ErrUnexpected)
}

func evalPrefix(e *PrefixExpr, row Row) (Value, error) {
	v, err := evalExpr(e.E, row)
	if err != nil {
		return NullValue(), err
	}

	switch e.Op {
	case OpNot:
		switch v.Type {
		case TypeBool:
			return BoolValue(!v.B), nil
		case TypeNull:
			return NullValue(), nil
		}
		return NullValue(), fmt.Errorf("%w: can't negate %s", ErrUnsupportedOperation, v)

	case OpNeg:
		switch v.Type {
		case TypeInteger:
			if v.I == math.MinInt64 {
				return NullValue(), ErrIntegerOverflow
			}
			return IntegerValue(-v.I), nil
		case TypeFloat:
			return FloatValue(-v.F), nil
		case TypeNull:
			return NullValue(), nil
		}
		return NullValue(), fmt.Errorf("%w: can't negate %s", ErrUnsupportedOperation, v)

	case OpPos:
		switch v.Type {
		case TypeInteger, TypeFloat, TypeNull:
			return v, nil
		}
		return NullValue(), fmt.Errorf("%w: can't take the positive of %s", ErrUnsupportedOperation, v)
	}
	return NullValue(), fmt.Errorf("%w: unknown prefix operator", ErrUnexpected)
}

func evalPostfix(e *PostfixExpr, row Row) (Value, error) {
	v, err := evalExpr(e.E, row)
	if err != nil {
		return NullValue(), err
	}

	switch e.Op {
	case OpIsNull:
		return BoolValue(v.IsNull()), nil
	case OpIsNotNull:
		return BoolValue(!v.IsNull()), nil
	case OpFactorial:
		switch v.Type {
		case TypeNull:
			return NullValue(), nil
		case TypeInteger:
			if v.I < 0 {
				return NullValue(), fmt.Errorf("%w: factorial of a negative number", ErrUnsupportedOperation)
			}
			res := int64(1)
			for i := int64(2); i <= v.I; i++ {
				var ok bool
				res, ok = checkedMul(res, i)
				if !ok {
					return NullValue(), ErrIntegerOverflow
				}
			}
			return IntegerValue(res), nil
		}
		return NullValue(), fmt.Errorf("%w: can't take factorial of %s", ErrUnsupportedOperation, v)
	}
	return NullValue(), fmt.Errorf("%w: unknown postfix operator", ErrUnexpected)
}

func evalInfix(e *InfixExpr, row Row) (Value, error) {
	l, err := evalExpr(e.L, row)
	if err != nil {
		return NullValue(), err
	}
	r, err := evalExpr(e.R, row)
	if err != nil {
		return NullValue(), err
	}

	switch e.Op {
	case OpAnd:
		return evalAnd(l, r)
	case OpOr:
		return evalOr(l, r)
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		return evalComparison(e.Op, l, r)
	case OpLike:
		return evalLike(l, r)
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo, OpExponentiate:
		return evalArithmetic(e.Op, l, r)
	}
	return NullValue(), fmt.Errorf("%w: unknown infix operator", ErrUnexpected)
}

func evalAnd(l, r Value) (Value, error) {
	lb, lerr := asLogic(l)
	rb, rerr := asLogic(r)
	if lerr != nil {
		return NullValue(), lerr
	}
	if rerr != nil {
		return NullValue(), rerr
	}

	// FALSE dominates UNKNOWN
	switch {
	case lb != nil && rb != nil:
		return BoolValue(*lb && *rb), nil
	case lb != nil && !*lb, rb != nil && !*rb:
		return BoolValue(false), nil
	}
	return NullValue(), nil
}

func evalOr(l, r Value) (Value, error) {
	lb, lerr := asLogic(l)
	rb, rerr := asLogic(r)
	if lerr != nil {
		return NullValue(), lerr
	}
	if rerr != nil {
		return NullValue(), rerr
	}

	// TRUE dominates UNKNOWN
	switch {
	case lb != nil && rb != nil:
		return BoolValue(*lb || *rb), nil
	case lb != nil && *lb, rb != nil && *rb:
		return BoolValue(true), nil
	}
	return NullValue(), nil
}

// asLogic maps a value to three-valued logic: nil means UNKNOWN.
func asLogic(v Value) (*bool, error) {
	switch v.Type {
	case TypeBool:
		b := v.B
		return &b, nil
	case TypeNull:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s is not a boolean", ErrUnsupportedOperation, v)
}

func evalComparison(op InfixOp, l, r Value) (Value, error) {
	if l.IsNull() || r.IsNull() {
		return NullValue(), nil
	}

	comparable := l.Type == r.Type || (isNumeric(l) && isNumeric(r))
	if !comparable {
		return NullValue(), fmt.Errorf("%w: can't compare %s and %s", ErrNotComparableValues, l, r)
	}

	cmp := l.Compare(r)

	switch op {
	case OpEqual:
		return BoolValue(cmp == 0), nil
	case OpNotEqual:
		return BoolValue(cmp != 0), nil
	case OpLessThan:
		return BoolValue(cmp < 0), nil
	case OpLessOrEqual:
		return BoolValue(cmp <= 0), nil
	case OpGreaterThan:
		return BoolValue(cmp > 0), nil
	case OpGreaterOrEqual:
		return BoolValue(cmp >= 0), nil
	}
	return NullValue(), fmt.Errorf("%w: unknown comparison", ErrUnexpected)
}

func isNumeric(v Value) bool {
	return v.Type == TypeInteger || v.Type == TypeFloat
}

func evalArithmetic(op InfixOp, l, r Value) (Value, error) {
	if l.IsNull() && (r.IsNull() || isNumeric(r)) {
		return NullValue(), nil
	}
	if r.IsNull() && isNumeric(l) {
		return NullValue(), nil
	}
	if !isNumeric(l) || !isNumeric(r) {
		return NullValue(), fmt.Errorf("%w: can't apply %s to %s and %s", ErrUnsupportedOperation, op, l, r)
	}

	ints := l.Type == TypeInteger && r.Type == TypeInteger

	switch op {
	case OpAdd:
		if ints {
			res, ok := checkedAdd(l.I, r.I)
			if !ok {
				return NullValue(), ErrIntegerOverflow
			}
			return IntegerValue(res), nil
		}
		return FloatValue(l.asFloat() + r.asFloat()), nil

	case OpSubtract:
		if ints {
			res, ok := checkedSub(l.I, r.I)
			if !ok {
				return NullValue(), ErrIntegerOverflow
			}
			return IntegerValue(res), nil
		}
		return FloatValue(l.asFloat() - r.asFloat()), nil

	case OpMultiply:
		if ints {
			res, ok := checkedMul(l.I, r.I)
			if !ok {
				return NullValue(), ErrIntegerOverflow
			}
			return IntegerValue(res), nil
		}
		return FloatValue(l.asFloat() * r.asFloat()), nil

	case OpDivide:
		if ints {
			if r.I == 0 {
				return NullValue(), ErrDivisionByZero
			}
			return IntegerValue(l.I / r.I), nil
		}
		if r.asFloat() == 0 {
			return NullValue(), ErrDivisionByZero
		}
		return FloatValue(l.asFloat() / r.asFloat()), nil

	case OpModulo:
		if ints {
			if r.I == 0 {
				return NullValue(), ErrDivisionByZero
			}
			return IntegerValue(l.I % r.I), nil
		}
		if r.asFloat() == 0 {
			return NullValue(), ErrDivisionByZero
		}
		return FloatValue(math.Mod(l.asFloat(), r.asFloat())), nil

	case OpExponentiate:
		if ints && r.I >= 0 {
			res := int64(1)
			ok := true
			for i := int64(0); i < r.I && ok; i++ {
				res, ok = checkedMul(res, l.I)
			}
			if !ok {
				return NullValue(), ErrIntegerOverflow
			}
			return IntegerValue(res), nil
		}
		return FloatValue(math.Pow(l.asFloat(), r.asFloat())), nil
	}
	return NullValue(), fmt.Errorf("%w: unknown arithmetic operator", ErrUnexpected)
}

func checkedAdd(a, b int64) (int64, bool) {
	res := a + b
	if (a > 0 && b > 0 && res < 0) || (a < 0 && b < 0 && res >= 0) {
		return 0, false
	}
	return res, true
}

func checkedSub(a, b int64) (int64, bool) {
	res := a - b
	if (a >= 0 && b < 0 && res < 0) || (a < 0 && b > 0 && res >= 0) {
		return 0, false
	}
	return res, true
}

func checkedMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	res := a * b
	if res/b != a {
		return 0, false
	}
	return res, true
}

func evalLike(l, r Value) (Value, error) {
	if l.IsNull() || r.IsNull() {
		return NullValue(), nil
	}
	if l.Type != TypeString || r.Type != TypeString {
		return NullValue(), fmt.Errorf("%w: can't LIKE %s and %s", ErrUnsupportedOperation, l, r)
	}

	re, err := likeToRegexp(r.S)
	if err != nil {
		return NullValue(), err
	}
	return BoolValue(re.MatchString(l.S)), nil
}

// likeToRegexp translates a LIKE pattern into an anchored regular
// expression: % matches any sequence, _ a single character, backslash
// escapes the wildcards.
func likeToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?s)^")

	escaped := false
	for _, c := range pattern {
		if escaped {
			sb.WriteString(regexp.QuoteMeta(string(c)))
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	if escaped {
		sb.WriteString(regexp.QuoteMeta("\\"))
	}
	sb.WriteString("$")

	return regexp.Compile(sb.String())
}

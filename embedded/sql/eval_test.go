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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// evalString parses a single expression through a bare SELECT and evaluates
// it in the constant context.
func evalString(t *testing.T, input string) (Value, error) {
	t.Helper()

	stmt, err := ParseStatement("select " + input)
	require.NoError(t, err)

	sel := stmt.(*SelectStmt)
	require.Len(t, sel.Select, 1)

	return evalExpr(sel.Select[0].Expr, nil)
}

func mustEval(t *testing.T, input string) Value {
	t.Helper()

	v, err := evalString(t, input)
	require.NoError(t, err)
	return v
}

func TestEvalArithmetic(t *testing.T) {
	require.Equal(t, FloatValue(2.5), mustEval(t, "(1.0 + 4) / 2"))
	require.Equal(t, IntegerValue(2), mustEval(t, "5 / 2"))
	require.Equal(t, IntegerValue(1), mustEval(t, "7 % 3"))
	require.Equal(t, IntegerValue(8), mustEval(t, "2 ^ 3"))
	require.Equal(t, IntegerValue(512), mustEval(t, "2 ^ 3 ^ 2"))
	require.Equal(t, FloatValue(0.5), mustEval(t, "2 ^ -1"))
	require.Equal(t, IntegerValue(-3), mustEval(t, "-3"))
	require.Equal(t, IntegerValue(7), mustEval(t, "1 + 2 * 3"))
	require.Equal(t, IntegerValue(6), mustEval(t, "3!"))
}

func TestEvalArithmeticErrors(t *testing.T) {
	_, err := evalString(t, "1 / 0")
	require.ErrorIs(t, err, ErrDivisionByZero)

	_, err = evalString(t, "1.0 / 0")
	require.ErrorIs(t, err, ErrDivisionByZero)

	_, err = evalString(t, "9223372036854775807 + 1")
	require.ErrorIs(t, err, ErrIntegerOverflow)

	_, err = evalString(t, "9223372036854775807 * 2")
	require.ErrorIs(t, err, ErrIntegerOverflow)

	_, err = evalString(t, `"a" + 1`)
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	_, err = evalString(t, `"a" + "b"`)
	require.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestEvalComparisons(t *testing.T) {
	require.Equal(t, BoolValue(true), mustEval(t, "1 < 2"))
	require.Equal(t, BoolValue(true), mustEval(t, "1 = 1.0"))
	require.Equal(t, BoolValue(true), mustEval(t, "2.5 >= 2"))
	require.Equal(t, BoolValue(false), mustEval(t, `"a" > "b"`))
	require.Equal(t, BoolValue(true), mustEval(t, "1 != 2"))
	require.Equal(t, BoolValue(true), mustEval(t, "1 <> 2"))

	// comparisons against NULL are unknown
	require.Equal(t, NullValue(), mustEval(t, "1 = null"))
	require.Equal(t, NullValue(), mustEval(t, "null = null"))
}

func TestEvalTriValuedLogic(t *testing.T) {
	require.Equal(t, BoolValue(false), mustEval(t, "false and null"))
	require.Equal(t, NullValue(), mustEval(t, "true and null"))
	require.Equal(t, BoolValue(true), mustEval(t, "true or null"))
	require.Equal(t, NullValue(), mustEval(t, "false or null"))
	require.Equal(t, NullValue(), mustEval(t, "not null"))
	require.Equal(t, BoolValue(false), mustEval(t, "not true"))
}

func TestEvalIsNull(t *testing.T) {
	require.Equal(t, BoolValue(true), mustEval(t, "null is null"))
	require.Equal(t, BoolValue(false), mustEval(t, "1 is null"))
	require.Equal(t, BoolValue(true), mustEval(t, "1 is not null"))
	require.Equal(t, BoolValue(false), mustEval(t, "null is not null"))
}

func TestEvalLike(t *testing.T) {
	require.Equal(t, BoolValue(true), mustEval(t, `"xiaoming" like "xiao%"`))
	require.Equal(t, BoolValue(true), mustEval(t, `"xiaoming" like "_iaoming"`))
	require.Equal(t, BoolValue(false), mustEval(t, `"xiaoming" like "ming%"`))
	require.Equal(t, BoolValue(true), mustEval(t, `"100%" like "100\%"`))
	require.Equal(t, BoolValue(false), mustEval(t, `"1000" like "100\%"`))
	require.Equal(t, NullValue(), mustEval(t, `null like "a%"`))
}

func TestEvalNullPropagation(t *testing.T) {
	require.Equal(t, NullValue(), mustEval(t, "1 + null"))
	require.Equal(t, NullValue(), mustEval(t, "null * 2.5"))
	require.Equal(t, NullValue(), mustEval(t, "-null"))
	require.Equal(t, NullValue(), mustEval(t, "null!"))
}

func TestEvalFloatSpecials(t *testing.T) {
	v := mustEval(t, "infinity")
	require.True(t, math.IsInf(v.F, 1))

	v = mustEval(t, "nan")
	require.True(t, math.IsNaN(v.F))
}

func TestEvalFieldExpr(t *testing.T) {
	row := Row{IntegerValue(7), StringValue("x")}

	v, err := evalExpr(&Field{Index: 0}, row)
	require.NoError(t, err)
	require.Equal(t, IntegerValue(7), v)

	// fields outside the row evaluate to NULL
	v, err = evalExpr(&Field{Index: 5}, row)
	require.NoError(t, err)
	require.Equal(t, NullValue(), v)
}

func TestValueOrdering(t *testing.T) {
	// Null < Bool < numeric < String
	ordered := []Value{
		NullValue(),
		BoolValue(false),
		BoolValue(true),
		IntegerValue(-5),
		FloatValue(-1.5),
		IntegerValue(0),
		FloatValue(2.5),
		IntegerValue(3),
		StringValue(""),
		StringValue("a"),
	}
	for i := 1; i < len(ordered); i++ {
		require.Negative(t, ordered[i-1].Compare(ordered[i]),
			"%s should sort before %s", ordered[i-1], ordered[i])
	}

	require.Zero(t, NullValue().Compare(NullValue()))
	require.Zero(t, IntegerValue(2).Compare(FloatValue(2.0)))
}

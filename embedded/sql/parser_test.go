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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := ParseStatement(`create table student (
		id integer primary key,
		name string not null,
		year int default 2000,
		sex bool index
	);`)
	require.NoError(t, err)

	create, ok := stmt.(*CreateTableStmt)
	require.True(t, ok)
	require.Equal(t, "student", create.Name)
	require.Len(t, create.Columns, 4)

	require.True(t, create.Columns[0].PrimaryKey)
	require.Equal(t, TypeInteger, create.Columns[0].Type)

	require.NotNil(t, create.Columns[1].Nullable)
	require.False(t, *create.Columns[1].Nullable)

	require.NotNil(t, create.Columns[2].Default)
	require.True(t, create.Columns[3].Indexed)
}

func TestParseInsert(t *testing.T) {
	stmt, err := ParseStatement(`insert into student (id, name) values (1, "xiaoming"), (2, "xiaohong")`)
	require.NoError(t, err)

	insert, ok := stmt.(*InsertStmt)
	require.True(t, ok)
	require.Equal(t, []string{"id", "name"}, insert.Columns)
	require.Len(t, insert.Values, 2)
	require.Len(t, insert.Values[0], 2)
}

func TestParseSelectStructure(t *testing.T) {
	stmt, err := ParseStatement(`select id, 2023-year as age from student
		where year >= 2001 and sex
		group by age having count(*) > 1
		order by age desc, id
		limit 10 offset 2`)
	require.NoError(t, err)

	sel, ok := stmt.(*SelectStmt)
	require.True(t, ok)
	require.Len(t, sel.Select, 2)
	require.Equal(t, "age", sel.Select[1].Alias)
	require.Len(t, sel.From, 1)
	require.NotNil(t, sel.Where)
	require.Len(t, sel.GroupBy, 1)
	require.NotNil(t, sel.Having)
	require.Len(t, sel.Order, 2)
	require.True(t, sel.Order[0].Desc)
	require.False(t, sel.Order[1].Desc)
	require.NotNil(t, sel.Limit)
	require.NotNil(t, sel.Offset)
}

func TestParseJoins(t *testing.T) {
	stmt, err := ParseStatement(`select * from a
		inner join b on a.id = b.a_id
		left outer join c on b.id = c.b_id`)
	require.NoError(t, err)

	sel := stmt.(*SelectStmt)
	require.Len(t, sel.From, 1)

	outer, ok := sel.From[0].(*JoinItem)
	require.True(t, ok)
	require.Equal(t, LeftJoin, outer.Type)

	inner, ok := outer.Left.(*JoinItem)
	require.True(t, ok)
	require.Equal(t, InnerJoin, inner.Type)
	require.NotNil(t, inner.Predicate)

	_, ok = inner.Left.(*TableItem)
	require.True(t, ok)
}

func TestParseCommaCrossJoin(t *testing.T) {
	stmt, err := ParseStatement("select * from a, b c")
	require.NoError(t, err)

	sel := stmt.(*SelectStmt)
	require.Len(t, sel.From, 2)

	second := sel.From[1].(*TableItem)
	require.Equal(t, "b", second.Name)
	require.Equal(t, "c", second.Alias)
}

func TestParsePrecedence(t *testing.T) {
	stmt, err := ParseStatement("select 1 + 2 * 3 ^ 2")
	require.NoError(t, err)

	sel := stmt.(*SelectStmt)
	require.Equal(t, "1 + 2 * 3 ^ 2", sel.Select[0].Expr.String())

	// multiplication binds tighter than addition, exponentiation tighter
	// than multiplication
	add, ok := sel.Select[0].Expr.(*InfixExpr)
	require.True(t, ok)
	require.Equal(t, OpAdd, add.Op)

	mul, ok := add.R.(*InfixExpr)
	require.True(t, ok)
	require.Equal(t, OpMultiply, mul.Op)

	exp, ok := mul.R.(*InfixExpr)
	require.True(t, ok)
	require.Equal(t, OpExponentiate, exp.Op)
}

func TestParseRightAssociativeExponent(t *testing.T) {
	stmt, err := ParseStatement("select 2 ^ 3 ^ 2")
	require.NoError(t, err)

	sel := stmt.(*SelectStmt)
	root := sel.Select[0].Expr.(*InfixExpr)
	require.Equal(t, OpExponentiate, root.Op)

	right, ok := root.R.(*InfixExpr)
	require.True(t, ok)
	require.Equal(t, OpExponentiate, right.Op)
}

func TestParsePrefixAndPostfix(t *testing.T) {
	stmt, err := ParseStatement("select not a and b, -2 ^ 2, c is not null, 3!")
	require.NoError(t, err)

	sel := stmt.(*SelectStmt)

	// NOT binds tighter than AND
	and, ok := sel.Select[0].Expr.(*InfixExpr)
	require.True(t, ok)
	require.Equal(t, OpAnd, and.Op)
	_, ok = and.L.(*PrefixExpr)
	require.True(t, ok)

	// prefix minus binds tighter than ^
	exp, ok := sel.Select[1].Expr.(*InfixExpr)
	require.True(t, ok)
	require.Equal(t, OpExponentiate, exp.Op)
	_, ok = exp.L.(*PrefixExpr)
	require.True(t, ok)

	isNotNull, ok := sel.Select[2].Expr.(*PostfixExpr)
	require.True(t, ok)
	require.Equal(t, OpIsNotNull, isNotNull.Op)

	fact, ok := sel.Select[3].Expr.(*PostfixExpr)
	require.True(t, ok)
	require.Equal(t, OpFactorial, fact.Op)
}

func TestParseFunctionCalls(t *testing.T) {
	stmt, err := ParseStatement("select count(*), sum(2023 - year) from student")
	require.NoError(t, err)

	sel := stmt.(*SelectStmt)

	count, ok := sel.Select[0].Expr.(*Function)
	require.True(t, ok)
	require.True(t, count.Star)

	sum, ok := sel.Select[1].Expr.(*Function)
	require.True(t, ok)
	require.Equal(t, "sum", sum.Name)
	require.Len(t, sum.Args, 1)
}

func TestParseUpdateDelete(t *testing.T) {
	stmt, err := ParseStatement(`update grade set grade = 77.0, note = "fixed" where id = 1`)
	require.NoError(t, err)

	update := stmt.(*UpdateStmt)
	require.Equal(t, "grade", update.Table)
	require.Len(t, update.Set, 2)
	require.NotNil(t, update.Where)

	stmt, err = ParseStatement("delete from grade where id = 1")
	require.NoError(t, err)

	del := stmt.(*DeleteStmt)
	require.Equal(t, "grade", del.Table)
	require.NotNil(t, del.Where)
}

func TestParseTransactionStatements(t *testing.T) {
	stmt, err := ParseStatement("begin transaction;")
	require.NoError(t, err)
	require.IsType(t, &BeginStmt{}, stmt)

	stmt, err = ParseStatement("commit")
	require.NoError(t, err)
	require.IsType(t, &CommitStmt{}, stmt)

	stmt, err = ParseStatement("rollback;")
	require.NoError(t, err)
	require.IsType(t, &RollbackStmt{}, stmt)

	stmt, err = ParseStatement("explain select 1")
	require.NoError(t, err)
	explain := stmt.(*ExplainStmt)
	require.IsType(t, &SelectStmt{}, explain.Stmt)
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"select",
		"select 1 from",
		"insert student values (1)",
		"create table t (id integer",
		"update t set = 1",
		"select 1 2 3 extra",
		"explain explain select 1",
	} {
		_, err := ParseStatement(input)
		require.ErrorIs(t, err, ErrParsing, "input: %s", input)
	}
}

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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BingCoke/CokeDB/embedded/kvstore"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := NewEngine(kvstore.NewMemStore())
	require.NoError(t, err)
	return engine
}

func exec(t *testing.T, s *Session, sql string) *ResultSet {
	t.Helper()

	rs, err := s.Execute(sql)
	require.NoError(t, err, "statement: %s", sql)
	return rs
}

func setupSchool(t *testing.T, s *Session) {
	t.Helper()

	exec(t, s, `create table student (
		id integer primary key,
		name string,
		year integer,
		sex bool
	)`)
	exec(t, s, `create table course (id integer primary key, name string)`)
	exec(t, s, `create table grade (
		id integer primary key,
		student_id integer index,
		course_id integer index,
		grade float
	)`)

	exec(t, s, `insert into student values
		(1, "xiaoming", 2001, true),
		(2, "xiaohong", 2002, false),
		(3, "xiaogang", 2002, true),
		(4, "xiaoli", 2003, false)`)

	exec(t, s, `insert into course values (1, "语文"), (2, "数学"), (3, "英语")`)

	exec(t, s, `insert into grade values
		(1, 1, 1, 99.0),
		(2, 2, 1, 99.0),
		(3, 1, 2, 80.0),
		(4, 2, 3, 70.0)`)
}

func TestConstantSelect(t *testing.T) {
	s := newTestEngine(t).NewSession()

	rs := exec(t, s, "select (1.0+4)/2 as res;")
	require.Equal(t, ResultQuery, rs.Type)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, Row{FloatValue(2.5)}, rs.Rows[0])
	require.Equal(t, "res", rs.Columns[0].Name)
}

func TestFilterAndOrderByAlias(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, `select id, name, 2023-year as age from student
		where year >= 2001 and sex order by age asc;`)

	require.Equal(t, []Row{
		{IntegerValue(3), StringValue("xiaogang"), IntegerValue(21)},
		{IntegerValue(1), StringValue("xiaoming"), IntegerValue(22)},
	}, rs.Rows)
}

func TestGroupByWithAggregates(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, `select count(*), average(2023-year), sum(2023-year)
		from student group by student.sex;`)
	require.Len(t, rs.Rows, 2)

	rows := append([]Row{}, rs.Rows...)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i][2].Compare(rows[j][2]) < 0
	})

	require.Equal(t, []Row{
		{IntegerValue(2), IntegerValue(20), IntegerValue(41)},
		{IntegerValue(2), IntegerValue(21), IntegerValue(43)},
	}, rows)
}

func TestThreeWayJoin(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, `select s.name, c.name, g.grade
		from student as s
		join grade as g on s.id = g.student_id
		join course as c on g.course_id = c.id
		order by g.grade asc;`)

	require.Len(t, rs.Rows, 4)
	require.Equal(t, Row{StringValue("xiaohong"), StringValue("英语"), FloatValue(70)}, rs.Rows[0])
	require.Equal(t, Row{StringValue("xiaoming"), StringValue("数学"), FloatValue(80)}, rs.Rows[1])

	// the two 99.0 grades share the sort key; both rows must be present
	last := map[string]bool{}
	for _, row := range rs.Rows[2:] {
		require.Equal(t, FloatValue(99), row[2])
		last[row[0].S] = true
	}
	require.Equal(t, map[string]bool{"xiaoming": true, "xiaohong": true}, last)
}

func TestLeftJoinPadsUnmatchedRows(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, `select s.name, g.grade from student s
		left join grade g on s.id = g.student_id
		order by s.id;`)

	// students 3 and 4 have no grades
	require.Len(t, rs.Rows, 6)
	require.Equal(t, Row{StringValue("xiaogang"), NullValue()}, rs.Rows[4])
	require.Equal(t, Row{StringValue("xiaoli"), NullValue()}, rs.Rows[5])
}

func TestRightJoinRestoresColumnOrder(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, `select g.grade, c.name from grade g
		right join course c on g.course_id = c.id
		order by c.id, g.grade;`)

	// every course appears; course 1 has two grades
	require.Len(t, rs.Rows, 4)
	require.Equal(t, Row{FloatValue(99), StringValue("语文")}, rs.Rows[0])
	require.Equal(t, Row{FloatValue(99), StringValue("语文")}, rs.Rows[1])
	require.Equal(t, Row{FloatValue(80), StringValue("数学")}, rs.Rows[2])
	require.Equal(t, Row{FloatValue(70), StringValue("英语")}, rs.Rows[3])
}

func TestLimitAndOffset(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, "select id from student order by id limit 2 offset 1")
	require.Equal(t, []Row{{IntegerValue(2)}, {IntegerValue(3)}}, rs.Rows)

	rs = exec(t, s, "select id from student order by id offset 3")
	require.Equal(t, []Row{{IntegerValue(4)}}, rs.Rows)

	_, err := s.Execute("select id from student limit -1")
	require.Error(t, err)
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, "update student set year = year + 1 where sex")
	require.Equal(t, uint64(2), rs.Count)

	q := exec(t, s, "select year from student where id = 1")
	require.Equal(t, []Row{{IntegerValue(2002)}}, q.Rows)

	rs = exec(t, s, "delete from student where year = 2002 and not sex")
	require.Equal(t, uint64(1), rs.Count)

	q = exec(t, s, "select count(*) from student")
	require.Equal(t, []Row{{IntegerValue(3)}}, q.Rows)
}

func TestUpdatePrimaryKeyMoves(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	exec(t, s, "update course set id = 10 where id = 1")

	q := exec(t, s, "select name from course where id = 10")
	require.Equal(t, []Row{{StringValue("语文")}}, q.Rows)

	q = exec(t, s, "select count(*) from course")
	require.Equal(t, []Row{{IntegerValue(3)}}, q.Rows)

	// moving onto an occupied key fails
	_, err := s.Execute("update course set id = 2 where id = 10")
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestConstraints(t *testing.T) {
	s := newTestEngine(t).NewSession()

	exec(t, s, `create table users (
		id integer primary key,
		email string unique,
		name string not null
	)`)
	exec(t, s, `insert into users values (1, "a@x.io", "a")`)

	_, err := s.Execute(`insert into users values (1, "b@x.io", "b")`)
	require.ErrorIs(t, err, ErrDuplicateKey)

	_, err = s.Execute(`insert into users values (2, "a@x.io", "b")`)
	require.ErrorIs(t, err, ErrUniqueViolation)

	_, err = s.Execute(`insert into users values (3, "c@x.io", null)`)
	require.ErrorIs(t, err, ErrNotNullViolation)

	// multiple NULLs are allowed in a unique column
	exec(t, s, `insert into users values (4, null, "d")`)
	exec(t, s, `insert into users values (5, null, "e")`)

	_, err = s.Execute(`insert into users values (6, "f@x.io", 7)`)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestInsertWithColumnListAndDefaults(t *testing.T) {
	s := newTestEngine(t).NewSession()

	exec(t, s, `create table items (
		id integer primary key,
		name string default "unnamed",
		price float default 0.0,
		note string null
	)`)
	exec(t, s, `insert into items (id) values (1)`)

	rs := exec(t, s, "select * from items")
	require.Equal(t, []Row{{
		IntegerValue(1),
		StringValue("unnamed"),
		FloatValue(0),
		NullValue(),
	}}, rs.Rows)
}

func TestSchemaErrors(t *testing.T) {
	s := newTestEngine(t).NewSession()

	_, err := s.Execute("create table t (a integer, b string)")
	require.ErrorIs(t, err, ErrNoPrimaryKey)

	_, err = s.Execute("create table t (a integer primary key, b integer primary key)")
	require.ErrorIs(t, err, ErrMultiplePrimaryKeys)

	_, err = s.Execute("create table t (a integer primary key, a string)")
	require.ErrorIs(t, err, ErrDuplicatedColumn)

	_, err = s.Execute(`create table t (a integer primary key, b integer default "x")`)
	require.ErrorIs(t, err, ErrInvalidDefault)

	exec(t, s, "create table t (a integer primary key)")
	_, err = s.Execute("create table t (a integer primary key)")
	require.ErrorIs(t, err, ErrTableAlreadyExists)

	_, err = s.Execute("select * from missing")
	require.ErrorIs(t, err, ErrTableDoesNotExist)

	_, err = s.Execute("select missing from t")
	require.ErrorIs(t, err, ErrColumnDoesNotExist)
}

func TestDropTable(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	exec(t, s, "drop table grade")

	_, err := s.Execute("select * from grade")
	require.ErrorIs(t, err, ErrTableDoesNotExist)

	_, err = s.Execute("drop table grade")
	require.ErrorIs(t, err, ErrTableDoesNotExist)
}

func TestAmbiguousColumn(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	_, err := s.Execute("select name from student, course")
	require.ErrorIs(t, err, ErrAmbiguousColumn)

	// qualifying the column resolves it
	rs := exec(t, s, "select student.name from student, course where student.id = 1")
	require.Len(t, rs.Rows, 3)
}

func TestExplainOptimizations(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, "explain select * from student where id = 1 or id = 3")
	require.Equal(t, ResultExplain, rs.Type)
	require.Contains(t, rs.Explain, "KeyLookup: student (1, 3)")

	rs = exec(t, s, "explain select * from grade where student_id = 1")
	require.Contains(t, rs.Explain, "IndexLookup: grade column student_id (1)")

	rs = exec(t, s, `explain select * from student s
		join grade g on s.id = g.student_id where s.id = 1`)
	require.Contains(t, rs.Explain, "HashJoin")
	require.Contains(t, rs.Explain, "KeyLookup: student as s (1)")
	// the join constant is propagated to the other side
	require.Contains(t, rs.Explain, "IndexLookup: grade as g column student_id (1)")

	rs = exec(t, s, "explain select * from student where year > 2001 and sex")
	require.Contains(t, rs.Explain, "Scan: student")
}

func TestOptimizerPreservesResults(t *testing.T) {
	engine := newTestEngine(t)
	s := engine.NewSession()
	setupSchool(t, s)

	tx, err := engine.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	stmt, err := ParseStatement(`select s.name, g.grade from student s
		join grade g on s.id = g.student_id
		where g.grade >= 80.0 and s.id = 1`)
	require.NoError(t, err)

	plan, err := BuildPlan(stmt, tx)
	require.NoError(t, err)

	raw, err := tx.ExecPlan(plan)
	require.NoError(t, err)

	optimized, err := plan.Optimize(tx)
	require.NoError(t, err)

	opt, err := tx.ExecPlan(optimized)
	require.NoError(t, err)

	sortRows := func(rows []Row) {
		sort.Slice(rows, func(i, j int) bool {
			for k := range rows[i] {
				if cmp := rows[i][k].Compare(rows[j][k]); cmp != 0 {
					return cmp < 0
				}
			}
			return false
		})
	}
	sortRows(raw.Rows)
	sortRows(opt.Rows)
	require.Equal(t, raw.Rows, opt.Rows)
	require.Len(t, opt.Rows, 2)
}

func TestIndexMaintenanceRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	s := engine.NewSession()
	setupSchool(t, s)

	lookupGrades := func(studentID int64) []Row {
		rs := exec(t, s, "select id from grade where student_id = "+IntegerValue(studentID).String()+" order by id")
		return rs.Rows
	}

	require.Equal(t, []Row{{IntegerValue(1)}, {IntegerValue(3)}}, lookupGrades(1))

	// updating the indexed column moves the entry
	exec(t, s, "update grade set student_id = 3 where id = 3")
	require.Equal(t, []Row{{IntegerValue(1)}}, lookupGrades(1))
	require.Equal(t, []Row{{IntegerValue(3)}}, lookupGrades(3))

	// deleting the row removes the entry
	exec(t, s, "delete from grade where id = 3")
	require.Empty(t, lookupGrades(3))
}

func TestAggregatesOverEmptyInput(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, "select count(*), sum(year), min(year) from student where id = 99")
	require.Equal(t, []Row{{IntegerValue(0), NullValue(), NullValue()}}, rs.Rows)

	// with GROUP BY there is no row to group
	rs = exec(t, s, "select count(*) from student where id = 99 group by sex")
	require.Empty(t, rs.Rows)
}

func TestHavingFiltersGroups(t *testing.T) {
	s := newTestEngine(t).NewSession()
	setupSchool(t, s)

	rs := exec(t, s, `select student_id, count(*) as cnt from grade
		group by student_id having cnt > 1 order by student_id`)

	require.Equal(t, []Row{
		{IntegerValue(1), IntegerValue(2)},
		{IntegerValue(2), IntegerValue(2)},
	}, rs.Rows)
}

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

func gradeOf(t *testing.T, s *Session) Value {
	t.Helper()

	rs := exec(t, s, "select grade from grade where id = 1")
	require.Len(t, rs.Rows, 1)
	return rs.Rows[0][0]
}

func TestTransactionStateMachine(t *testing.T) {
	s := newTestEngine(t).NewSession()

	_, err := s.Execute("commit")
	require.ErrorIs(t, err, ErrNoOngoingTx)

	_, err = s.Execute("rollback")
	require.ErrorIs(t, err, ErrNoOngoingTx)

	rs := exec(t, s, "begin")
	require.Equal(t, ResultBegin, rs.Type)
	require.NotZero(t, rs.TxID)

	_, err = s.Execute("begin")
	require.ErrorIs(t, err, ErrOngoingTx)

	id, in := s.InTx()
	require.True(t, in)
	require.Equal(t, rs.TxID, id)

	rs = exec(t, s, "commit")
	require.Equal(t, ResultCommit, rs.Type)

	_, in = s.InTx()
	require.False(t, in)
}

func TestRepeatableReadAcrossSessions(t *testing.T) {
	engine := newTestEngine(t)

	a := engine.NewSession()
	b := engine.NewSession()
	setupSchool(t, a)

	exec(t, a, "begin")
	exec(t, a, "update grade set grade = 77.0 where id = 1")

	// B reads in implicit transactions and must not see A's write
	require.Equal(t, FloatValue(99), gradeOf(t, b))

	exec(t, a, "commit")

	require.Equal(t, FloatValue(77), gradeOf(t, b))
}

func TestReaderSnapshotIsFrozen(t *testing.T) {
	engine := newTestEngine(t)

	a := engine.NewSession()
	b := engine.NewSession()
	setupSchool(t, a)

	exec(t, b, "begin")
	require.Equal(t, FloatValue(99), gradeOf(t, b))

	exec(t, a, "update grade set grade = 77.0 where id = 1")

	// B's snapshot predates A's commit
	require.Equal(t, FloatValue(99), gradeOf(t, b))
	exec(t, b, "commit")

	require.Equal(t, FloatValue(77), gradeOf(t, b))
}

func TestRollbackLeavesNoTrace(t *testing.T) {
	engine := newTestEngine(t)

	a := engine.NewSession()
	b := engine.NewSession()
	setupSchool(t, a)

	exec(t, a, "begin")
	exec(t, a, "update grade set grade = 77.0 where id = 1")

	require.Equal(t, FloatValue(99), gradeOf(t, b))

	exec(t, a, "rollback")

	require.Equal(t, FloatValue(99), gradeOf(t, b))
}

func TestWriteConflictAcrossSessions(t *testing.T) {
	engine := newTestEngine(t)

	a := engine.NewSession()
	b := engine.NewSession()
	setupSchool(t, a)

	exec(t, a, "begin")
	exec(t, b, "begin")

	exec(t, a, "update grade set grade = 1 where id = 1")

	// the losing writer fails before any commit
	_, err := b.Execute("update grade set grade = 2 where id = 1")
	require.ErrorIs(t, err, ErrSerialization)

	// the failed statement leaves B's transaction open
	_, in := b.InTx()
	require.True(t, in)

	exec(t, a, "commit")
	exec(t, b, "rollback")

	c := engine.NewSession()
	require.Equal(t, FloatValue(1), gradeOf(t, c))
}

func TestImplicitTxRollsBackOnError(t *testing.T) {
	engine := newTestEngine(t)
	s := engine.NewSession()

	exec(t, s, "create table t (id integer primary key, v integer)")

	// the second row fails, so the whole statement must leave no trace
	_, err := s.Execute("insert into t values (1, 1), (1, 2)")
	require.ErrorIs(t, err, ErrDuplicateKey)

	rs := exec(t, s, "select count(*) from t")
	require.Equal(t, []Row{{IntegerValue(0)}}, rs.Rows)
}

func TestExplicitTxSpansStatements(t *testing.T) {
	engine := newTestEngine(t)

	a := engine.NewSession()
	b := engine.NewSession()

	exec(t, a, "begin")
	exec(t, a, "create table t (id integer primary key)")
	exec(t, a, "insert into t values (1)")

	// uncommitted DDL is invisible to other sessions
	_, err := b.Execute("select * from t")
	require.ErrorIs(t, err, ErrTableDoesNotExist)

	exec(t, a, "commit")

	rs := exec(t, b, "select * from t")
	require.Len(t, rs.Rows, 1)
}

func TestSessionCloseRollsBack(t *testing.T) {
	engine := newTestEngine(t)

	a := engine.NewSession()
	setupSchool(t, a)

	exec(t, a, "begin")
	exec(t, a, "update grade set grade = 55.0 where id = 1")
	require.NoError(t, a.Close())

	b := engine.NewSession()
	require.Equal(t, FloatValue(99), gradeOf(t, b))

	st, err := engine.Status()
	require.NoError(t, err)
	require.Zero(t, st.ActiveTxns)
}

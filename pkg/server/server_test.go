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

package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BingCoke/CokeDB/embedded/sql"
	"github.com/BingCoke/CokeDB/pkg/api"
	"github.com/BingCoke/CokeDB/pkg/client"
)

func startServer(t *testing.T) *Server {
	t.Helper()

	opts := DefaultOptions().
		WithAddress("127.0.0.1").
		WithPort(0).
		WithMetricsPort(0)

	srv, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	t.Cleanup(func() { srv.Stop() })
	return srv
}

func TestServerExecuteAndCatalog(t *testing.T) {
	srv := startServer(t)

	c, err := client.Dial(srv.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Execute("create table t (id integer primary key, name string)")
	require.NoError(t, err)

	rs, err := c.Execute(`insert into t values (1, "a"), (2, "b")`)
	require.NoError(t, err)
	require.Equal(t, uint64(2), rs.Count)

	rs, err = c.Execute("select * from t order by id desc")
	require.NoError(t, err)
	require.Equal(t, []sql.Row{
		{sql.IntegerValue(2), sql.StringValue("b")},
		{sql.IntegerValue(1), sql.StringValue("a")},
	}, rs.Rows)

	tables, err := c.ListTables()
	require.NoError(t, err)
	require.Equal(t, []string{"t"}, tables)

	schema, err := c.GetTable("t")
	require.NoError(t, err)
	require.Equal(t, "t", schema.Name)
	require.Len(t, schema.Columns, 2)
	require.True(t, schema.Columns[0].PrimaryKey)

	st, err := c.Status()
	require.NoError(t, err)
	require.NotZero(t, st.Txns)
}

func TestServerErrorKinds(t *testing.T) {
	srv := startServer(t)

	c, err := client.Dial(srv.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Execute("select * from missing")
	wireErr, ok := err.(*api.Error)
	require.True(t, ok)
	require.Equal(t, api.ErrorKindSchema, wireErr.Kind)

	_, err = c.Execute("select ^^^")
	wireErr, ok = err.(*api.Error)
	require.True(t, ok)
	require.Equal(t, api.ErrorKindParse, wireErr.Kind)
}

func TestServerTransactionsPerConnection(t *testing.T) {
	srv := startServer(t)

	a, err := client.Dial(srv.Addr())
	require.NoError(t, err)
	defer a.Close()

	b, err := client.Dial(srv.Addr())
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Execute("create table g (id integer primary key, grade float)")
	require.NoError(t, err)
	_, err = a.Execute("insert into g values (1, 99.0)")
	require.NoError(t, err)

	rs, err := a.Execute("begin")
	require.NoError(t, err)
	require.Equal(t, sql.ResultBegin, rs.Type)

	_, inTx := a.TxID()
	require.True(t, inTx)

	_, err = a.Execute("update g set grade = 77.0 where id = 1")
	require.NoError(t, err)

	// the other connection still sees the old committed version
	rs, err = b.Execute("select grade from g where id = 1")
	require.NoError(t, err)
	require.Equal(t, sql.FloatValue(99), rs.Rows[0][0])

	_, err = a.Execute("commit")
	require.NoError(t, err)

	_, inTx = a.TxID()
	require.False(t, inTx)

	rs, err = b.Execute("select grade from g where id = 1")
	require.NoError(t, err)
	require.Equal(t, sql.FloatValue(77), rs.Rows[0][0])
}

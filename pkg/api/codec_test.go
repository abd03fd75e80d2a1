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

package api

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BingCoke/CokeDB/embedded/sql"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	req := &Request{Type: RequestExecute, SQL: "select 1"}
	require.NoError(t, WriteFrame(&buf, req))

	var got Request
	require.NoError(t, ReadFrame(&buf, &got))
	require.Equal(t, *req, got)
}

func TestResultSetRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	resp := &Response{
		Type: ResponseResult,
		Result: &sql.ResultSet{
			Type:    sql.ResultQuery,
			Columns: []sql.ResultColumn{{Table: "t", Name: "a"}, {}},
			Rows: []sql.Row{
				{sql.NullValue(), sql.BoolValue(true)},
				{sql.IntegerValue(-7), sql.FloatValue(2.5)},
				{sql.StringValue("晓明"), sql.StringValue("")},
			},
		},
	}
	require.NoError(t, WriteFrame(&buf, resp))

	var got Response
	require.NoError(t, ReadFrame(&buf, &got))
	require.Equal(t, resp.Result.Rows, got.Result.Rows)
	require.Equal(t, resp.Result.Columns, got.Result.Columns)
}

func TestErrorKinds(t *testing.T) {
	cases := map[string]error{
		ErrorKindLex:           sql.ErrLexing,
		ErrorKindParse:         sql.ErrParsing,
		ErrorKindSchema:        sql.ErrTableDoesNotExist,
		ErrorKindConstraint:    sql.ErrDuplicateKey,
		ErrorKindArithmetic:    sql.ErrDivisionByZero,
		ErrorKindEvaluation:    sql.ErrUnsupportedOperation,
		ErrorKindSerialization: sql.ErrSerialization,
		ErrorKindTransaction:   sql.ErrNoOngoingTx,
	}
	for kind, err := range cases {
		require.Equal(t, kind, ErrorFrom(err).Kind)
	}
}

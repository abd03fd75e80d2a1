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

func TestRowCodecRoundTrip(t *testing.T) {
	row := Row{
		NullValue(),
		BoolValue(true),
		IntegerValue(-42),
		FloatValue(2.5),
		StringValue("héllo\x00world"),
	}

	decoded, err := decodeRow(encodeRow(row))
	require.NoError(t, err)
	require.Equal(t, row, decoded)
}

func TestSchemaCodecRoundTrip(t *testing.T) {
	def := StringValue("n/a")
	table := &Table{
		Name: "t",
		Columns: []Column{
			{Name: "id", Type: TypeInteger, PrimaryKey: true, Unique: true},
			{Name: "name", Type: TypeString, Nullable: true, Default: &def},
			{Name: "score", Type: TypeFloat, Unique: true, Indexed: true},
		},
	}

	decoded, err := decodeTableSchema(encodeTableSchema(table))
	require.NoError(t, err)
	require.Equal(t, table, decoded)
}

func TestCatalogThroughTransaction(t *testing.T) {
	engine := newTestEngine(t)

	tx, err := engine.Begin()
	require.NoError(t, err)

	table := &Table{
		Name: "t",
		Columns: []Column{
			{Name: "id", Type: TypeInteger, PrimaryKey: true, Unique: true},
			{Name: "tag", Type: TypeString, Nullable: true, Indexed: true},
		},
	}
	require.NoError(t, tx.CreateTable(table))

	err = tx.CreateTable(table)
	require.ErrorIs(t, err, ErrTableAlreadyExists)

	got, err := tx.GetTable("t")
	require.NoError(t, err)
	require.Equal(t, table, got)

	tables, err := tx.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 1)

	require.NoError(t, tx.Commit())
}

func TestRowAndIndexStorage(t *testing.T) {
	engine := newTestEngine(t)

	tx, err := engine.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	table := &Table{
		Name: "t",
		Columns: []Column{
			{Name: "id", Type: TypeInteger, PrimaryKey: true, Unique: true},
			{Name: "tag", Type: TypeString, Nullable: true, Indexed: true},
		},
	}
	require.NoError(t, tx.CreateTable(table))

	require.NoError(t, tx.InsertRow(table, Row{IntegerValue(1), StringValue("a")}))
	require.NoError(t, tx.InsertRow(table, Row{IntegerValue(2), StringValue("a")}))
	require.NoError(t, tx.InsertRow(table, Row{IntegerValue(3), StringValue("b")}))

	err = tx.InsertRow(table, Row{IntegerValue(1), StringValue("z")})
	require.ErrorIs(t, err, ErrDuplicateKey)

	pks, err := tx.IndexLookup(table, 1, StringValue("a"))
	require.NoError(t, err)
	require.Equal(t, []Value{IntegerValue(1), IntegerValue(2)}, pks)

	// update moves the index entry
	require.NoError(t, tx.UpdateRow(table, IntegerValue(2), Row{IntegerValue(2), StringValue("b")}))

	pks, err = tx.IndexLookup(table, 1, StringValue("a"))
	require.NoError(t, err)
	require.Equal(t, []Value{IntegerValue(1)}, pks)

	pks, err = tx.IndexLookup(table, 1, StringValue("b"))
	require.NoError(t, err)
	require.Equal(t, []Value{IntegerValue(2), IntegerValue(3)}, pks)

	// delete removes it
	require.NoError(t, tx.DeleteRow(table, IntegerValue(3)))
	pks, err = tx.IndexLookup(table, 1, StringValue("b"))
	require.NoError(t, err)
	require.Equal(t, []Value{IntegerValue(2)}, pks)

	// rows scan in primary key order
	it, err := tx.ScanRows(table)
	require.NoError(t, err)
	defer it.Close()

	var ids []Value
	for {
		row, rerr := it.Next()
		if rerr != nil {
			require.ErrorIs(t, rerr, ErrNoMoreRows)
			break
		}
		ids = append(ids, row[0])
	}
	require.Equal(t, []Value{IntegerValue(1), IntegerValue(2)}, ids)

	_, err = tx.GetRow(table, IntegerValue(3))
	require.ErrorIs(t, err, ErrNoMoreRows)

	// index lookups require an indexed column
	_, err = tx.IndexLookup(table, 0, IntegerValue(1))
	require.ErrorIs(t, err, ErrColumnNotIndexed)
}

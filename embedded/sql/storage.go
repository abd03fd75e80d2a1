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
	"errors"
	"fmt"

	"github.com/BingCoke/CokeDB/embedded/codec"
	"github.com/BingCoke/CokeDB/embedded/mvcc"
)

// SQL keyspace tags within the MVCC user-key space:
//
//	Table(name)                      -> serialized schema
//	Index(table, col, value, pk)     -> empty marker
//	Row(table, pk)                   -> serialized row
const (
	tagTable byte = 0x01
	tagIndex byte = 0x02
	tagRow   byte = 0x03
)

func keyTable(name string) []byte {
	return append([]byte{tagTable}, codec.EncodeString(name)...)
}

func prefixTables() []byte {
	return []byte{tagTable}
}

func keyRow(table string, pk Value) []byte {
	return append(append([]byte{tagRow}, codec.EncodeString(table)...), encodeValueKey(pk)...)
}

func prefixRows(table string) []byte {
	return append([]byte{tagRow}, codec.EncodeString(table)...)
}

func keyIndexEntry(table, column string, value, pk Value) []byte {
	k := prefixIndexEntries(table, column, value)
	return append(k, encodeValueKey(pk)...)
}

func prefixIndexEntries(table, column string, value Value) []byte {
	k := append([]byte{tagIndex}, codec.EncodeString(table)...)
	k = append(k, codec.EncodeString(column)...)
	return append(k, encodeValueKey(value)...)
}

// encodeValueKey is the order-preserving value encoding used inside keys and
// row payloads. The type tag keeps distinct types apart.
func encodeValueKey(v Value) []byte {
	switch v.Type {
	case TypeNull:
		return []byte{0x00}
	case TypeBool:
		return []byte{0x01, codec.EncodeBool(v.B)}
	case TypeFloat:
		return append([]byte{0x02}, codec.EncodeFloat64(v.F)...)
	case TypeInteger:
		return append([]byte{0x03}, codec.EncodeInt64(v.I)...)
	case TypeString:
		return append([]byte{0x04}, codec.EncodeString(v.S)...)
	}
	return nil
}

func takeValueKey(bs *[]byte) (Value, error) {
	tag, err := codec.TakeByte(bs)
	if err != nil {
		return NullValue(), err
	}

	switch tag {
	case 0x00:
		return NullValue(), nil
	case 0x01:
		b, err := codec.TakeBool(bs)
		if err != nil {
			return NullValue(), err
		}
		return BoolValue(b), nil
	case 0x02:
		f, err := codec.TakeFloat64(bs)
		if err != nil {
			return NullValue(), err
		}
		return FloatValue(f), nil
	case 0x03:
		i, err := codec.TakeInt64(bs)
		if err != nil {
			return NullValue(), err
		}
		return IntegerValue(i), nil
	case 0x04:
		s, err := codec.TakeString(bs)
		if err != nil {
			return NullValue(), err
		}
		return StringValue(s), nil
	}
	return NullValue(), fmt.Errorf("%w: invalid value tag %x", ErrCorruptedData, tag)
}

func encodeRow(row Row) []byte {
	enc := codec.EncodeUint64(uint64(len(row)))
	for _, v := range row {
		enc = append(enc, encodeValueKey(v)...)
	}
	return enc
}

func decodeRow(raw []byte) (Row, error) {
	bs := raw

	n, err := codec.TakeUint64(&bs)
	if err != nil {
		return nil, err
	}

	row := make(Row, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := takeValueKey(&bs)
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}
	return row, nil
}

const (
	colFlagPrimaryKey = 1 << iota
	colFlagNullable
	colFlagUnique
	colFlagIndexed
	colFlagHasDefault
)

func encodeTableSchema(t *Table) []byte {
	enc := codec.EncodeString(t.Name)
	enc = append(enc, codec.EncodeUint64(uint64(len(t.Columns)))...)

	for _, c := range t.Columns {
		enc = append(enc, codec.EncodeString(c.Name)...)
		enc = append(enc, byte(c.Type))

		flags := byte(0)
		if c.PrimaryKey {
			flags |= colFlagPrimaryKey
		}
		if c.Nullable {
			flags |= colFlagNullable
		}
		if c.Unique {
			flags |= colFlagUnique
		}
		if c.Indexed {
			flags |= colFlagIndexed
		}
		if c.Default != nil {
			flags |= colFlagHasDefault
		}
		enc = append(enc, flags)

		if c.Default != nil {
			enc = append(enc, encodeValueKey(*c.Default)...)
		}
	}
	return enc
}

func decodeTableSchema(raw []byte) (*Table, error) {
	bs := raw

	name, err := codec.TakeString(&bs)
	if err != nil {
		return nil, err
	}

	n, err := codec.TakeUint64(&bs)
	if err != nil {
		return nil, err
	}

	t := &Table{Name: name}
	for i := uint64(0); i < n; i++ {
		colName, err := codec.TakeString(&bs)
		if err != nil {
			return nil, err
		}
		typ, err := codec.TakeByte(&bs)
		if err != nil {
			return nil, err
		}
		flags, err := codec.TakeByte(&bs)
		if err != nil {
			return nil, err
		}

		col := Column{
			Name:       colName,
			Type:       DataType(typ),
			PrimaryKey: flags&colFlagPrimaryKey != 0,
			Nullable:   flags&colFlagNullable != 0,
			Unique:     flags&colFlagUnique != 0,
			Indexed:    flags&colFlagIndexed != 0,
		}

		if flags&colFlagHasDefault != 0 {
			def, err := takeValueKey(&bs)
			if err != nil {
				return nil, err
			}
			col.Default = &def
		}

		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

// CreateTable validates and stores a schema. The schema write participates
// in the transaction like any row write.
func (tx *Tx) CreateTable(t *Table) error {
	err := t.Validate()
	if err != nil {
		return err
	}

	_, err = tx.GetTable(t.Name)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrTableAlreadyExists, t.Name)
	}
	if !errors.Is(err, ErrTableDoesNotExist) {
		return err
	}

	return tx.tx.Set(keyTable(t.Name), encodeTableSchema(t))
}

// DropTable removes the schema along with every row and index entry.
func (tx *Tx) DropTable(name string) error {
	t, err := tx.GetTable(name)
	if err != nil {
		return err
	}

	pks, err := tx.collectPrimaryKeys(t)
	if err != nil {
		return err
	}
	for _, pk := range pks {
		err = tx.DeleteRow(t, pk)
		if err != nil {
			return err
		}
	}

	return tx.tx.Delete(keyTable(name))
}

func (tx *Tx) collectPrimaryKeys(t *Table) ([]Value, error) {
	it, err := tx.ScanRows(t)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var pks []Value
	for {
		row, err := it.Next()
		if errors.Is(err, ErrNoMoreRows) {
			return pks, nil
		}
		if err != nil {
			return nil, err
		}
		pk, err := t.PrimaryKeyOf(row)
		if err != nil {
			return nil, err
		}
		pks = append(pks, pk)
	}
}

func (tx *Tx) GetTable(name string) (*Table, error) {
	raw, err := tx.tx.Get(keyTable(name))
	if errors.Is(err, mvcc.ErrNoMoreEntries) {
		return nil, fmt.Errorf("%w: %s", ErrTableDoesNotExist, name)
	}
	if err != nil {
		return nil, err
	}
	return decodeTableSchema(raw)
}

func (tx *Tx) ListTables() ([]*Table, error) {
	scan, err := tx.tx.ScanPrefix(prefixTables())
	if err != nil {
		return nil, err
	}
	defer scan.Close()

	var tables []*Table
	for {
		_, raw, err := scan.Next()
		if errors.Is(err, mvcc.ErrNoMoreEntries) {
			return tables, nil
		}
		if err != nil {
			return nil, err
		}

		t, err := decodeTableSchema(raw)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
}

// InsertRow validates the row, checks key and unique constraints and writes
// the row together with all its index entries in one atomic step.
func (tx *Tx) InsertRow(t *Table, row Row) error {
	row, err := t.NormalizeRow(row)
	if err != nil {
		return err
	}

	pk, err := t.PrimaryKeyOf(row)
	if err != nil {
		return err
	}

	_, err = tx.GetRow(t, pk)
	if err == nil {
		return fmt.Errorf("%w: %s=%s", ErrDuplicateKey, t.Columns[mustPK(t)].Name, pk)
	}
	if !errors.Is(err, ErrNoMoreRows) {
		return err
	}

	err = tx.checkUnique(t, row, pk)
	if err != nil {
		return err
	}

	batch := mvcc.NewWriteBatch()
	batch.Set(keyRow(t.Name, pk), encodeRow(row))
	for _, i := range t.IndexedColumns() {
		batch.Set(keyIndexEntry(t.Name, t.Columns[i].Name, row[i], pk), []byte{})
	}
	return tx.tx.Write(batch)
}

func mustPK(t *Table) int {
	pk, _ := t.PrimaryKeyIndex()
	return pk
}

// checkUnique point-probes the index of every unique column. Multiple NULLs
// are allowed.
func (tx *Tx) checkUnique(t *Table, row Row, pk Value) error {
	for i, c := range t.Columns {
		if !c.Unique || c.PrimaryKey || row[i].IsNull() {
			continue
		}

		pks, err := tx.IndexLookup(t, i, row[i])
		if err != nil {
			return err
		}
		for _, other := range pks {
			if other != pk {
				return fmt.Errorf("%w: column %s.%s value %s", ErrUniqueViolation, t.Name, c.Name, row[i])
			}
		}
	}
	return nil
}

// UpdateRow replaces the row stored under pk. A changed primary key turns
// into a delete plus insert.
func (tx *Tx) UpdateRow(t *Table, pk Value, row Row) error {
	row, err := t.NormalizeRow(row)
	if err != nil {
		return err
	}

	newPk, err := t.PrimaryKeyOf(row)
	if err != nil {
		return err
	}

	if newPk != pk {
		err = tx.DeleteRow(t, pk)
		if err != nil {
			return err
		}
		return tx.InsertRow(t, row)
	}

	old, err := tx.GetRow(t, pk)
	if err != nil {
		return err
	}

	err = tx.checkUnique(t, row, pk)
	if err != nil {
		return err
	}

	batch := mvcc.NewWriteBatch()
	batch.Set(keyRow(t.Name, pk), encodeRow(row))
	for _, i := range t.IndexedColumns() {
		if old[i] == row[i] {
			continue
		}
		batch.Delete(keyIndexEntry(t.Name, t.Columns[i].Name, old[i], pk))
		batch.Set(keyIndexEntry(t.Name, t.Columns[i].Name, row[i], pk), []byte{})
	}
	return tx.tx.Write(batch)
}

// DeleteRow removes the row and its index entries. Deleting an absent row is
// not an error.
func (tx *Tx) DeleteRow(t *Table, pk Value) error {
	row, err := tx.GetRow(t, pk)
	if errors.Is(err, ErrNoMoreRows) {
		return nil
	}
	if err != nil {
		return err
	}

	batch := mvcc.NewWriteBatch()
	batch.Delete(keyRow(t.Name, pk))
	for _, i := range t.IndexedColumns() {
		batch.Delete(keyIndexEntry(t.Name, t.Columns[i].Name, row[i], pk))
	}
	return tx.tx.Write(batch)
}

// GetRow returns the row stored under pk, or ErrNoMoreRows.
func (tx *Tx) GetRow(t *Table, pk Value) (Row, error) {
	raw, err := tx.tx.Get(keyRow(t.Name, pk))
	if errors.Is(err, mvcc.ErrNoMoreEntries) {
		return nil, ErrNoMoreRows
	}
	if err != nil {
		return nil, err
	}
	return decodeRow(raw)
}

// RowIterator yields table rows until ErrNoMoreRows.
type RowIterator struct {
	scan *mvcc.Scan
}

func (it *RowIterator) Next() (Row, error) {
	_, raw, err := it.scan.Next()
	if errors.Is(err, mvcc.ErrNoMoreEntries) {
		return nil, ErrNoMoreRows
	}
	if err != nil {
		return nil, err
	}
	return decodeRow(raw)
}

func (it *RowIterator) Close() error {
	return it.scan.Close()
}

// ScanRows iterates the visible rows of a table in primary key order.
func (tx *Tx) ScanRows(t *Table) (*RowIterator, error) {
	scan, err := tx.tx.ScanPrefix(prefixRows(t.Name))
	if err != nil {
		return nil, err
	}
	return &RowIterator{scan: scan}, nil
}

// IndexLookup returns the primary keys of rows whose indexed column holds
// the given value.
func (tx *Tx) IndexLookup(t *Table, colIdx int, value Value) ([]Value, error) {
	if colIdx >= len(t.Columns) {
		return nil, ErrIllegalArguments
	}
	col := t.Columns[colIdx]
	if !col.Indexed || col.PrimaryKey {
		return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotIndexed, t.Name, col.Name)
	}

	prefix := prefixIndexEntries(t.Name, col.Name, value)

	scan, err := tx.tx.ScanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	defer scan.Close()

	var pks []Value
	for {
		k, _, err := scan.Next()
		if errors.Is(err, mvcc.ErrNoMoreEntries) {
			return pks, nil
		}
		if err != nil {
			return nil, err
		}

		bs := k[len(prefix):]
		pk, err := takeValueKey(&bs)
		if err != nil {
			return nil, err
		}
		pks = append(pks, pk)
	}
}

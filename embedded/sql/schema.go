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

import "fmt"

type Column struct {
	Name       string
	Type       DataType
	PrimaryKey bool
	Nullable   bool
	Unique     bool
	Indexed    bool
	Default    *Value
}

type Table struct {
	Name    string
	Columns []Column
}

// Catalog resolves table schemas. It is implemented by transactions so DDL
// participates in MVCC.
type Catalog interface {
	GetTable(name string) (*Table, error)
}

// Validate enforces the schema invariants: exactly one primary key, which is
// NOT NULL and unique but not additionally indexed (the primary key is the
// table's keying), unique implying indexed, and defaults matching the
// declared column type.
func (t *Table) Validate() error {
	if t.Name == "" || len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %q must have at least one column", ErrIllegalArguments, t.Name)
	}

	pks := 0
	names := make(map[string]struct{}, len(t.Columns))

	for _, c := range t.Columns {
		if _, exists := names[c.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicatedColumn, c.Name)
		}
		names[c.Name] = struct{}{}

		if c.PrimaryKey {
			pks++
			if c.Nullable {
				return fmt.Errorf("%w: primary key %s can not be nullable", ErrIllegalArguments, c.Name)
			}
			if !c.Unique {
				return fmt.Errorf("%w: primary key %s must be unique", ErrIllegalArguments, c.Name)
			}
			if c.Indexed {
				return fmt.Errorf("%w: primary key %s must not carry a secondary index", ErrIllegalArguments, c.Name)
			}
		}

		if c.Unique && !c.PrimaryKey && !c.Indexed {
			return fmt.Errorf("%w: unique column %s must be indexed", ErrIllegalArguments, c.Name)
		}

		if c.Default != nil && !c.Default.IsNull() && dynamicType(*c.Default) != c.Type {
			return fmt.Errorf("%w: default for column %s has type %s, expected %s",
				ErrInvalidDefault, c.Name, c.Default.Type, c.Type)
		}
		if c.Default != nil && c.Default.IsNull() && !c.Nullable {
			return fmt.Errorf("%w: NULL default on not nullable column %s", ErrInvalidDefault, c.Name)
		}
	}

	if pks == 0 {
		return fmt.Errorf("%w: table %s", ErrNoPrimaryKey, t.Name)
	}
	if pks > 1 {
		return fmt.Errorf("%w: table %s", ErrMultiplePrimaryKeys, t.Name)
	}
	return nil
}

func dynamicType(v Value) DataType {
	return v.Type
}

func (t *Table) PrimaryKeyIndex() (int, error) {
	for i, c := range t.Columns {
		if c.PrimaryKey {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: table %s", ErrNoPrimaryKey, t.Name)
}

func (t *Table) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s.%s", ErrColumnDoesNotExist, t.Name, name)
}

// IndexedColumns returns the positions of columns carrying a secondary index.
func (t *Table) IndexedColumns() []int {
	var idxs []int
	for i, c := range t.Columns {
		if c.Indexed && !c.PrimaryKey {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// PrimaryKeyOf extracts the primary key value from a full row.
func (t *Table) PrimaryKeyOf(row Row) (Value, error) {
	pk, err := t.PrimaryKeyIndex()
	if err != nil {
		return NullValue(), err
	}
	if pk >= len(row) {
		return NullValue(), fmt.Errorf("%w: row is shorter than schema of %s", ErrCorruptedData, t.Name)
	}
	return row[pk], nil
}

// NormalizeRow validates a row against the schema and returns it with
// integer values coerced into float columns.
func (t *Table) NormalizeRow(row Row) (Row, error) {
	if len(row) != len(t.Columns) {
		return nil, fmt.Errorf("%w: table %s expects %d values, got %d",
			ErrIllegalArguments, t.Name, len(t.Columns), len(row))
	}

	out := make(Row, len(row))
	copy(out, row)

	for i, c := range t.Columns {
		v := out[i]

		if v.IsNull() {
			if !c.Nullable {
				return nil, fmt.Errorf("%w: column %s.%s", ErrNotNullViolation, t.Name, c.Name)
			}
			continue
		}

		if c.Type == TypeFloat && v.Type == TypeInteger {
			out[i] = FloatValue(float64(v.I))
			continue
		}

		if v.Type != c.Type {
			return nil, fmt.Errorf("%w: column %s.%s expects %s, got %s",
				ErrTypeMismatch, t.Name, c.Name, c.Type, v.Type)
		}
	}
	return out, nil
}

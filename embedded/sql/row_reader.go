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
	"sort"
)

// ResultColumn describes one output column. Name may be empty for unnamed
// expression columns.
type ResultColumn struct {
	Table string `json:"table,omitempty"`
	Name  string `json:"name,omitempty"`
}

// RowReader is a pull-based operator: Read yields one row at a time until
// ErrNoMoreRows. A reader borrows its transaction's snapshot and must be
// drained or closed before the transaction ends.
type RowReader interface {
	Columns() []ResultColumn
	Read() (Row, error)
	Close() error
}

// queryReader builds the reader pipeline for a query plan node.
func (tx *Tx) queryReader(n Node) (RowReader, error) {
	switch t := n.(type) {
	case *ScanNode:
		return tx.newRawRowReader(t)
	case *KeyLookupNode:
		return tx.newKeyLookupRowReader(t)
	case *IndexLookupNode:
		return tx.newIndexLookupRowReader(t)
	case *FilterNode:
		src, err := tx.queryReader(t.Source)
		if err != nil {
			return nil, err
		}
		return newCondRowReader(src, t.Predicate), nil
	case *ProjectionNode:
		src, err := tx.queryReader(t.Source)
		if err != nil {
			return nil, err
		}
		return newProjRowReader(src, t.Exprs), nil
	case *NestedLoopJoinNode:
		left, err := tx.queryReader(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := tx.queryReader(t.Right)
		if err != nil {
			left.Close()
			return nil, err
		}
		return newJointRowReader(left, right, t.Predicate, t.Outer), nil
	case *HashJoinNode:
		left, err := tx.queryReader(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := tx.queryReader(t.Right)
		if err != nil {
			left.Close()
			return nil, err
		}
		return newHashJoinRowReader(left, right, t.LeftField, t.RightField, t.Outer), nil
	case *AggregationNode:
		src, err := tx.queryReader(t.Source)
		if err != nil {
			return nil, err
		}
		return newGroupedRowReader(src, t.Aggregates), nil
	case *OrderNode:
		src, err := tx.queryReader(t.Source)
		if err != nil {
			return nil, err
		}
		return newSortRowReader(src, t.Orders), nil
	case *LimitNode:
		src, err := tx.queryReader(t.Source)
		if err != nil {
			return nil, err
		}
		return newLimitRowReader(src, t.Limit)
	case *OffsetNode:
		src, err := tx.queryReader(t.Source)
		if err != nil {
			return nil, err
		}
		return newOffsetRowReader(src, t.Offset)
	case *NothingNode:
		return newValuesRowReader(nil, []Row{{}}), nil
	}
	return nil, fmt.Errorf("%w: node is not a row source", ErrUnexpected)
}

// rawRowReader streams a table scan, evaluating a fused filter if present.
type rawRowReader struct {
	table   *Table
	alias   string
	filter  Expression
	it      *RowIterator
	columns []ResultColumn
}

func (tx *Tx) newRawRowReader(n *ScanNode) (*rawRowReader, error) {
	table, err := tx.GetTable(n.Table)
	if err != nil {
		return nil, err
	}

	it, err := tx.ScanRows(table)
	if err != nil {
		return nil, err
	}

	return &rawRowReader{
		table:   table,
		alias:   n.Alias,
		filter:  n.Filter,
		it:      it,
		columns: tableColumns(table, n.Alias),
	}, nil
}

func tableColumns(t *Table, alias string) []ResultColumn {
	name := t.Name
	if alias != "" {
		name = alias
	}
	cols := make([]ResultColumn, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ResultColumn{Table: name, Name: c.Name}
	}
	return cols
}

func (r *rawRowReader) Columns() []ResultColumn {
	return r.columns
}

func (r *rawRowReader) Read() (Row, error) {
	for {
		row, err := r.it.Next()
		if err != nil {
			return nil, err
		}

		if r.filter == nil {
			return row, nil
		}

		keep, err := predicateHolds(r.filter, row)
		if err != nil {
			return nil, err
		}
		if keep {
			return row, nil
		}
	}
}

func (r *rawRowReader) Close() error {
	return r.it.Close()
}

// predicateHolds evaluates a filter with tri-valued logic: only TRUE keeps
// the row.
func predicateHolds(predicate Expression, row Row) (bool, error) {
	v, err := evalExpr(predicate, row)
	if err != nil {
		return false, err
	}

	switch v.Type {
	case TypeBool:
		return v.B, nil
	case TypeNull:
		return false, nil
	}
	return false, fmt.Errorf("%w: filter must evaluate to a boolean, got %s", ErrUnsupportedOperation, v)
}

// keyLookupRowReader fetches rows by primary key.
type keyLookupRowReader struct {
	tx      *Tx
	table   *Table
	keys    []Value
	pos     int
	columns []ResultColumn
}

func (tx *Tx) newKeyLookupRowReader(n *KeyLookupNode) (*keyLookupRowReader, error) {
	table, err := tx.GetTable(n.Table)
	if err != nil {
		return nil, err
	}

	return &keyLookupRowReader{
		tx:      tx,
		table:   table,
		keys:    n.Keys,
		columns: tableColumns(table, n.Alias),
	}, nil
}

func (r *keyLookupRowReader) Columns() []ResultColumn {
	return r.columns
}

func (r *keyLookupRowReader) Read() (Row, error) {
	for r.pos < len(r.keys) {
		pk := r.keys[r.pos]
		r.pos++

		row, err := r.tx.GetRow(r.table, pk)
		if errors.Is(err, ErrNoMoreRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return row, nil
	}
	return nil, ErrNoMoreRows
}

func (r *keyLookupRowReader) Close() error {
	return nil
}

// indexLookupRowReader resolves secondary index values into primary keys,
// then fetches the rows in key order.
type indexLookupRowReader struct {
	inner *keyLookupRowReader
}

func (tx *Tx) newIndexLookupRowReader(n *IndexLookupNode) (*indexLookupRowReader, error) {
	table, err := tx.GetTable(n.Table)
	if err != nil {
		return nil, err
	}

	colIdx, err := table.ColumnIndex(n.Column)
	if err != nil {
		return nil, err
	}

	seen := map[Value]struct{}{}
	var keys []Value

	for _, v := range n.Values {
		pks, err := tx.IndexLookup(table, colIdx, v)
		if err != nil {
			return nil, err
		}
		for _, pk := range pks {
			if _, dup := seen[pk]; dup {
				continue
			}
			seen[pk] = struct{}{}
			keys = append(keys, pk)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Compare(keys[j]) < 0
	})

	return &indexLookupRowReader{
		inner: &keyLookupRowReader{
			tx:      tx,
			table:   table,
			keys:    keys,
			columns: tableColumns(table, n.Alias),
		},
	}, nil
}

func (r *indexLookupRowReader) Columns() []ResultColumn {
	return r.inner.Columns()
}

func (r *indexLookupRowReader) Read() (Row, error) {
	return r.inner.Read()
}

func (r *indexLookupRowReader) Close() error {
	return r.inner.Close()
}

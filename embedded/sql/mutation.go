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
)

// execInsert evaluates the row expressions, fills omitted columns with
// defaults and writes through the storage layer.
func (tx *Tx) execInsert(n *InsertNode) (*ResultSet, error) {
	table, err := tx.GetTable(n.Table)
	if err != nil {
		return nil, err
	}

	colIdx := make([]int, len(n.Columns))
	for i, name := range n.Columns {
		colIdx[i], err = table.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
	}

	count := uint64(0)
	for _, exprs := range n.Rows {
		row := make(Row, len(table.Columns))
		for i, col := range table.Columns {
			if col.Default != nil {
				row[i] = *col.Default
			} else {
				row[i] = NullValue()
			}
		}

		for i, e := range exprs {
			v, err := evalExpr(e, nil)
			if err != nil {
				return nil, err
			}
			row[colIdx[i]] = v
		}

		err = tx.InsertRow(table, row)
		if err != nil {
			return nil, err
		}
		count++
	}

	return &ResultSet{Type: ResultInsert, Table: n.Table, Count: count}, nil
}

// execUpdate drives the source plan to collect the affected rows first,
// then applies the assignments row by row.
func (tx *Tx) execUpdate(n *UpdateNode) (*ResultSet, error) {
	table, err := tx.GetTable(n.Table)
	if err != nil {
		return nil, err
	}

	rows, err := tx.collectRows(n.Source)
	if err != nil {
		return nil, err
	}

	count := uint64(0)
	for _, row := range rows {
		pk, err := table.PrimaryKeyOf(row)
		if err != nil {
			return nil, err
		}

		updated := append(Row{}, row...)
		for _, sc := range n.Set {
			updated[sc.Index], err = evalExpr(sc.Expr, row)
			if err != nil {
				return nil, err
			}
		}

		err = tx.UpdateRow(table, pk, updated)
		if err != nil {
			return nil, err
		}
		count++
	}

	return &ResultSet{Type: ResultUpdate, Table: n.Table, Count: count}, nil
}

func (tx *Tx) execDelete(n *DeleteNode) (*ResultSet, error) {
	table, err := tx.GetTable(n.Table)
	if err != nil {
		return nil, err
	}

	rows, err := tx.collectRows(n.Source)
	if err != nil {
		return nil, err
	}

	count := uint64(0)
	for _, row := range rows {
		pk, err := table.PrimaryKeyOf(row)
		if err != nil {
			return nil, err
		}

		err = tx.DeleteRow(table, pk)
		if err != nil {
			return nil, err
		}
		count++
	}

	return &ResultSet{Type: ResultDelete, Table: n.Table, Count: count}, nil
}

func (tx *Tx) collectRows(source Node) ([]Row, error) {
	reader, err := tx.queryReader(source)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var rows []Row
	for {
		row, err := reader.Read()
		if errors.Is(err, ErrNoMoreRows) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// execCreateTable folds the default expressions into constants and stores
// the schema.
func (tx *Tx) execCreateTable(n *CreateTableNode) (*ResultSet, error) {
	table := n.Table

	for i, d := range n.Defaults {
		if d == nil {
			continue
		}

		v, err := evalExpr(d, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefault, err)
		}
		if table.Columns[i].Type == TypeFloat && v.Type == TypeInteger {
			v = FloatValue(float64(v.I))
		}
		table.Columns[i].Default = &v
	}

	err := tx.CreateTable(&table)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Type: ResultCreateTable, Table: table.Name}, nil
}

func (tx *Tx) execDropTable(n *DropTableNode) (*ResultSet, error) {
	err := tx.DropTable(n.Table)
	if err != nil {
		return nil, err
	}
	return &ResultSet{Type: ResultDropTable, Table: n.Table}, nil
}

// ExecPlan executes an optimized plan within this transaction.
func (tx *Tx) ExecPlan(p *Plan) (*ResultSet, error) {
	switch t := p.Root.(type) {
	case *InsertNode:
		return tx.execInsert(t)
	case *UpdateNode:
		return tx.execUpdate(t)
	case *DeleteNode:
		return tx.execDelete(t)
	case *CreateTableNode:
		return tx.execCreateTable(t)
	case *DropTableNode:
		return tx.execDropTable(t)
	}

	reader, err := tx.queryReader(p.Root)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	rs := &ResultSet{Type: ResultQuery, Columns: reader.Columns()}
	for {
		row, err := reader.Read()
		if errors.Is(err, ErrNoMoreRows) {
			return rs, nil
		}
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, row)
	}
}

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
	"sort"
)

// sortRowReader buffers its whole input and emits it stably sorted by the
// order keys.
type sortRowReader struct {
	source RowReader
	orders []OrderClause

	rows   []Row
	pos    int
	sorted bool
}

func newSortRowReader(source RowReader, orders []OrderClause) *sortRowReader {
	return &sortRowReader{source: source, orders: orders}
}

func (r *sortRowReader) Columns() []ResultColumn {
	return r.source.Columns()
}

func (r *sortRowReader) sortAll() error {
	if r.sorted {
		return nil
	}
	r.sorted = true

	type item struct {
		row  Row
		keys Row
	}
	var items []item

	for {
		row, err := r.source.Read()
		if errors.Is(err, ErrNoMoreRows) {
			break
		}
		if err != nil {
			return err
		}

		keys := make(Row, len(r.orders))
		for i, o := range r.orders {
			keys[i], err = evalExpr(o.Expr, row)
			if err != nil {
				return err
			}
		}
		items = append(items, item{row: row, keys: keys})
	}

	sort.SliceStable(items, func(a, b int) bool {
		for i, o := range r.orders {
			cmp := items[a].keys[i].Compare(items[b].keys[i])
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	r.rows = make([]Row, len(items))
	for i, it := range items {
		r.rows[i] = it.row
	}
	return nil
}

func (r *sortRowReader) Read() (Row, error) {
	err := r.sortAll()
	if err != nil {
		return nil, err
	}

	if r.pos >= len(r.rows) {
		return nil, ErrNoMoreRows
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *sortRowReader) Close() error {
	return r.source.Close()
}

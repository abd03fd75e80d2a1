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

import "errors"

// groupedRowReader consumes its source entirely, accumulating one set of
// aggregators per distinct group key. Source rows carry the aggregate
// inputs first, the group-by values after them.
type groupedRowReader struct {
	source     RowReader
	aggregates []AggregateFn

	rows []Row
	pos  int
	done bool
}

func newGroupedRowReader(source RowReader, aggregates []AggregateFn) *groupedRowReader {
	return &groupedRowReader{source: source, aggregates: aggregates}
}

func (r *groupedRowReader) Columns() []ResultColumn {
	cols := append([]ResultColumn{}, r.source.Columns()...)
	for i, agg := range r.aggregates {
		if i < len(cols) {
			cols[i] = ResultColumn{Name: agg.String()}
		}
	}
	return cols
}

func (r *groupedRowReader) group() error {
	if r.done {
		return nil
	}
	r.done = true

	naggs := len(r.aggregates)
	hasGroupBy := len(r.source.Columns()) > naggs

	accsByGroup := map[string][]accumulator{}
	groupsByKey := map[string]Row{}
	var order []string

	for {
		row, err := r.source.Read()
		if errors.Is(err, ErrNoMoreRows) {
			break
		}
		if err != nil {
			return err
		}
		if len(row) < naggs {
			return ErrIllegalArguments
		}

		groupVals := row[naggs:]
		key := groupKey(groupVals)

		accs, ok := accsByGroup[key]
		if !ok {
			accs = make([]accumulator, naggs)
			for i, agg := range r.aggregates {
				accs[i] = newAccumulator(agg)
			}
			accsByGroup[key] = accs
			groupsByKey[key] = append(Row{}, groupVals...)
			order = append(order, key)
		}

		for i := range accs {
			err = accs[i].accumulate(row[i])
			if err != nil {
				return err
			}
		}
	}

	// with no GROUP BY and an empty input, aggregates still produce one row
	if len(order) == 0 && !hasGroupBy {
		accs := make([]accumulator, naggs)
		for i, agg := range r.aggregates {
			accs[i] = newAccumulator(agg)
		}
		key := groupKey(nil)
		accsByGroup[key] = accs
		groupsByKey[key] = Row{}
		order = append(order, key)
	}

	for _, key := range order {
		row := make(Row, 0, naggs+len(groupsByKey[key]))
		for _, acc := range accsByGroup[key] {
			row = append(row, acc.result())
		}
		row = append(row, groupsByKey[key]...)
		r.rows = append(r.rows, row)
	}
	return nil
}

func groupKey(vals Row) string {
	key := []byte{}
	for _, v := range vals {
		key = append(key, encodeValueKey(v)...)
	}
	return string(key)
}

func (r *groupedRowReader) Read() (Row, error) {
	err := r.group()
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

func (r *groupedRowReader) Close() error {
	return r.source.Close()
}

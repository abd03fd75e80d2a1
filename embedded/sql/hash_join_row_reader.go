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

// hashJoinRowReader materializes the right side into a multi-map keyed by
// the equi-join column and probes it with left rows. NULL never matches
// NULL here.
type hashJoinRowReader struct {
	left       RowReader
	right      RowReader
	leftField  int
	rightField int
	outer      bool

	columns []ResultColumn
	build   map[Value][]Row
	loaded  bool

	leftRow Row
	matches []Row
	pos     int
}

func newHashJoinRowReader(left, right RowReader, leftField, rightField int, outer bool) *hashJoinRowReader {
	return &hashJoinRowReader{
		left:       left,
		right:      right,
		leftField:  leftField,
		rightField: rightField,
		outer:      outer,
		columns:    append(append([]ResultColumn{}, left.Columns()...), right.Columns()...),
	}
}

func (r *hashJoinRowReader) Columns() []ResultColumn {
	return r.columns
}

func (r *hashJoinRowReader) load() error {
	if r.loaded {
		return nil
	}
	r.build = map[Value][]Row{}

	for {
		row, err := r.right.Read()
		if errors.Is(err, ErrNoMoreRows) {
			r.loaded = true
			return nil
		}
		if err != nil {
			return err
		}
		if r.rightField >= len(row) {
			return ErrIllegalArguments
		}

		key := row[r.rightField]
		if key.IsNull() {
			continue
		}
		r.build[key] = append(r.build[key], row)
	}
}

func (r *hashJoinRowReader) Read() (Row, error) {
	err := r.load()
	if err != nil {
		return nil, err
	}

	for {
		if r.leftRow != nil && r.pos < len(r.matches) {
			combined := append(append(Row{}, r.leftRow...), r.matches[r.pos]...)
			r.pos++
			return combined, nil
		}

		row, err := r.left.Read()
		if err != nil {
			return nil, err
		}
		if r.leftField >= len(row) {
			return nil, ErrIllegalArguments
		}

		r.leftRow = row
		r.pos = 0
		r.matches = nil

		key := row[r.leftField]
		if !key.IsNull() {
			// numeric keys match across integer and float representations
			r.matches = r.build[key]
			if r.matches == nil && key.Type == TypeInteger {
				r.matches = r.build[FloatValue(float64(key.I))]
			}
		}

		if len(r.matches) == 0 && r.outer {
			padded := append(Row{}, row...)
			for range r.right.Columns() {
				padded = append(padded, NullValue())
			}
			r.leftRow = nil
			return padded, nil
		}
	}
}

func (r *hashJoinRowReader) Close() error {
	lerr := r.left.Close()
	rerr := r.right.Close()
	if lerr != nil {
		return lerr
	}
	return rerr
}

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

// jointRowReader is the nested-loop join. The right side is materialized
// once; the left side streams. With outer set, an unmatched left row is
// emitted padded with NULLs.
type jointRowReader struct {
	left      RowReader
	right     RowReader
	predicate Expression
	outer     bool

	columns   []ResultColumn
	rightRows []Row
	loaded    bool

	leftRow  Row
	rightPos int
	matched  bool
}

func newJointRowReader(left, right RowReader, predicate Expression, outer bool) *jointRowReader {
	return &jointRowReader{
		left:      left,
		right:     right,
		predicate: predicate,
		outer:     outer,
		columns:   append(append([]ResultColumn{}, left.Columns()...), right.Columns()...),
	}
}

func (r *jointRowReader) Columns() []ResultColumn {
	return r.columns
}

func (r *jointRowReader) load() error {
	if r.loaded {
		return nil
	}
	for {
		row, err := r.right.Read()
		if errors.Is(err, ErrNoMoreRows) {
			r.loaded = true
			return nil
		}
		if err != nil {
			return err
		}
		r.rightRows = append(r.rightRows, row)
	}
}

func (r *jointRowReader) Read() (Row, error) {
	err := r.load()
	if err != nil {
		return nil, err
	}

	for {
		if r.leftRow == nil {
			row, err := r.left.Read()
			if err != nil {
				return nil, err
			}
			r.leftRow = row
			r.rightPos = 0
			r.matched = false
		}

		for r.rightPos < len(r.rightRows) {
			rightRow := r.rightRows[r.rightPos]
			r.rightPos++

			combined := append(append(Row{}, r.leftRow...), rightRow...)

			if r.predicate != nil {
				keep, err := predicateHolds(r.predicate, combined)
				if err != nil {
					return nil, err
				}
				if !keep {
					continue
				}
			}

			r.matched = true
			return combined, nil
		}

		leftRow := r.leftRow
		r.leftRow = nil

		if r.outer && !r.matched {
			padded := append(Row{}, leftRow...)
			for range r.right.Columns() {
				padded = append(padded, NullValue())
			}
			return padded, nil
		}
	}
}

func (r *jointRowReader) Close() error {
	lerr := r.left.Close()
	rerr := r.right.Close()
	if lerr != nil {
		return lerr
	}
	return rerr
}

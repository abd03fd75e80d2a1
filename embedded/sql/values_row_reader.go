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

// valuesRowReader serves a fixed set of in-memory rows; a constant SELECT
// uses it with a single empty row.
type valuesRowReader struct {
	columns []ResultColumn
	rows    []Row
	pos     int
}

func newValuesRowReader(columns []ResultColumn, rows []Row) *valuesRowReader {
	return &valuesRowReader{columns: columns, rows: rows}
}

func (r *valuesRowReader) Columns() []ResultColumn {
	return r.columns
}

func (r *valuesRowReader) Read() (Row, error) {
	if r.pos >= len(r.rows) {
		return nil, ErrNoMoreRows
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

func (r *valuesRowReader) Close() error {
	return nil
}

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

type limitRowReader struct {
	source RowReader
	limit  int64
	read   int64
}

func newLimitRowReader(source RowReader, limit Expression) (*limitRowReader, error) {
	n, err := constCount(limit, "LIMIT")
	if err != nil {
		return nil, err
	}
	return &limitRowReader{source: source, limit: n}, nil
}

// constCount folds a LIMIT/OFFSET expression into a non-negative integer.
func constCount(e Expression, clause string) (int64, error) {
	v, err := evalExpr(e, nil)
	if err != nil {
		return 0, err
	}
	if v.Type != TypeInteger || v.I < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %s", ErrIllegalArguments, clause, v)
	}
	return v.I, nil
}

func (r *limitRowReader) Columns() []ResultColumn {
	return r.source.Columns()
}

func (r *limitRowReader) Read() (Row, error) {
	if r.read >= r.limit {
		return nil, ErrNoMoreRows
	}
	row, err := r.source.Read()
	if err != nil {
		return nil, err
	}
	r.read++
	return row, nil
}

func (r *limitRowReader) Close() error {
	return r.source.Close()
}

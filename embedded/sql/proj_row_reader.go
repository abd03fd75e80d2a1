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

// projRowReader evaluates projection expressions over each source row.
// Column names come from the alias, or from the projected column itself.
type projRowReader struct {
	source  RowReader
	exprs   []ProjExpr
	columns []ResultColumn
}

func newProjRowReader(source RowReader, exprs []ProjExpr) *projRowReader {
	srcCols := source.Columns()
	columns := make([]ResultColumn, len(exprs))

	for i, pe := range exprs {
		switch {
		case pe.Alias != "":
			columns[i] = ResultColumn{Name: pe.Alias}
		default:
			if f, ok := pe.Expr.(*Field); ok && f.Index < len(srcCols) {
				columns[i] = srcCols[f.Index]
			}
		}
	}

	return &projRowReader{source: source, exprs: exprs, columns: columns}
}

func (r *projRowReader) Columns() []ResultColumn {
	return r.columns
}

func (r *projRowReader) Read() (Row, error) {
	row, err := r.source.Read()
	if err != nil {
		return nil, err
	}

	out := make(Row, len(r.exprs))
	for i, pe := range r.exprs {
		out[i], err = evalExpr(pe.Expr, row)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *projRowReader) Close() error {
	return r.source.Close()
}

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

// condRowReader drops rows whose predicate does not evaluate to TRUE.
type condRowReader struct {
	source    RowReader
	predicate Expression
}

func newCondRowReader(source RowReader, predicate Expression) *condRowReader {
	return &condRowReader{source: source, predicate: predicate}
}

func (r *condRowReader) Columns() []ResultColumn {
	return r.source.Columns()
}

func (r *condRowReader) Read() (Row, error) {
	for {
		row, err := r.source.Read()
		if err != nil {
			return nil, err
		}

		keep, err := predicateHolds(r.predicate, row)
		if err != nil {
			return nil, err
		}
		if keep {
			return row, nil
		}
	}
}

func (r *condRowReader) Close() error {
	return r.source.Close()
}

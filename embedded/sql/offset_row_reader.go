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

type offsetRowReader struct {
	source  RowReader
	offset  int64
	skipped int64
}

func newOffsetRowReader(source RowReader, offset Expression) (*offsetRowReader, error) {
	n, err := constCount(offset, "OFFSET")
	if err != nil {
		return nil, err
	}
	return &offsetRowReader{source: source, offset: n}, nil
}

func (r *offsetRowReader) Columns() []ResultColumn {
	return r.source.Columns()
}

func (r *offsetRowReader) Read() (Row, error) {
	for r.skipped < r.offset {
		_, err := r.source.Read()
		if err != nil {
			return nil, err
		}
		r.skipped++
	}
	return r.source.Read()
}

func (r *offsetRowReader) Close() error {
	return r.source.Close()
}

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
	"github.com/BingCoke/CokeDB/embedded/kvstore"
	"github.com/BingCoke/CokeDB/embedded/mvcc"
)

// Engine maps SQL onto an MVCC-wrapped ordered store. The store is the only
// process-wide state; pass it in explicitly.
type Engine struct {
	mv *mvcc.MVCC
}

func NewEngine(store kvstore.Store) (*Engine, error) {
	mv, err := mvcc.New(store)
	if err != nil {
		return nil, err
	}
	return &Engine{mv: mv}, nil
}

// Begin opens a new SQL transaction.
func (e *Engine) Begin() (*Tx, error) {
	tx, err := e.mv.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// NewSession creates an independent session. Sessions are not safe for
// concurrent use; open one per client connection.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e}
}

func (e *Engine) Status() (*mvcc.Status, error) {
	return e.mv.Status()
}

// ListTables reads the catalog in a throwaway transaction.
func (e *Engine) ListTables() ([]*Table, error) {
	tx, err := e.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	return tx.ListTables()
}

// CatalogTable reads one schema in a throwaway transaction.
func (e *Engine) CatalogTable(name string) (*Table, error) {
	tx, err := e.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	return tx.GetTable(name)
}

// Tx is a SQL transaction over an MVCC transaction. It implements Catalog,
// so planning and optimization see schemas through the same snapshot.
type Tx struct {
	tx *mvcc.Tx
}

func (tx *Tx) ID() uint64 {
	return tx.tx.ID()
}

func (tx *Tx) Closed() bool {
	return tx.tx.Closed()
}

func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

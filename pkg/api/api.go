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

// Package api defines the transport-agnostic request/response surface the
// server exposes and the client consumes. Frames on the wire are
// length-prefixed JSON encodings of these types.
package api

import (
	"errors"

	"github.com/BingCoke/CokeDB/embedded/kvstore"
	"github.com/BingCoke/CokeDB/embedded/mvcc"
	"github.com/BingCoke/CokeDB/embedded/sql"
)

type RequestType string

const (
	RequestExecute    RequestType = "execute"
	RequestListTables RequestType = "list_tables"
	RequestGetTable   RequestType = "get_table"
	RequestStatus     RequestType = "status"
)

type Request struct {
	Type  RequestType `json:"type"`
	SQL   string      `json:"sql,omitempty"`
	Table string      `json:"table,omitempty"`
}

type ResponseType string

const (
	ResponseResult    ResponseType = "result"
	ResponseTableList ResponseType = "table_list"
	ResponseSchema    ResponseType = "schema"
	ResponseStatus    ResponseType = "status"
	ResponseError     ResponseType = "error"
)

type TableColumn struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	Nullable   bool   `json:"nullable,omitempty"`
	Unique     bool   `json:"unique,omitempty"`
	Indexed    bool   `json:"indexed,omitempty"`
	Default    string `json:"default,omitempty"`
}

type TableSchema struct {
	Name    string        `json:"name"`
	Columns []TableColumn `json:"columns"`
}

type Status struct {
	Txns       uint64 `json:"txns"`
	ActiveTxns uint64 `json:"active_txns"`
}

type Response struct {
	Type   ResponseType   `json:"type"`
	Result *sql.ResultSet `json:"result,omitempty"`
	Tables []string       `json:"tables,omitempty"`
	Schema *TableSchema   `json:"schema,omitempty"`
	Status *Status        `json:"status,omitempty"`
	Error  *Error         `json:"error,omitempty"`
}

// Error kinds, mirroring the engine's error taxonomy.
const (
	ErrorKindLex           = "lex"
	ErrorKindParse         = "parse"
	ErrorKindSchema        = "schema"
	ErrorKindConstraint    = "constraint"
	ErrorKindArithmetic    = "arithmetic"
	ErrorKindEvaluation    = "evaluation"
	ErrorKindTransaction   = "transaction"
	ErrorKindSerialization = "serialization"
	ErrorKindStorage       = "storage"
	ErrorKindInternal      = "internal"
)

type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorFrom classifies an engine error into a wire error.
func ErrorFrom(err error) *Error {
	kind := ErrorKindInternal

	switch {
	case errors.Is(err, sql.ErrLexing):
		kind = ErrorKindLex
	case errors.Is(err, sql.ErrParsing),
		errors.Is(err, sql.ErrExpectingDQLStmt):
		kind = ErrorKindParse
	case errors.Is(err, sql.ErrTableAlreadyExists),
		errors.Is(err, sql.ErrTableDoesNotExist),
		errors.Is(err, sql.ErrColumnDoesNotExist),
		errors.Is(err, sql.ErrDuplicatedColumn),
		errors.Is(err, sql.ErrAmbiguousColumn),
		errors.Is(err, sql.ErrNoPrimaryKey),
		errors.Is(err, sql.ErrMultiplePrimaryKeys),
		errors.Is(err, sql.ErrInvalidDefault),
		errors.Is(err, sql.ErrTypeMismatch),
		errors.Is(err, sql.ErrColumnNotIndexed):
		kind = ErrorKindSchema
	case errors.Is(err, sql.ErrNotNullViolation),
		errors.Is(err, sql.ErrUniqueViolation),
		errors.Is(err, sql.ErrDuplicateKey):
		kind = ErrorKindConstraint
	case errors.Is(err, sql.ErrDivisionByZero),
		errors.Is(err, sql.ErrIntegerOverflow):
		kind = ErrorKindArithmetic
	case errors.Is(err, sql.ErrUnsupportedOperation),
		errors.Is(err, sql.ErrNotComparableValues):
		kind = ErrorKindEvaluation
	case errors.Is(err, sql.ErrSerialization):
		kind = ErrorKindSerialization
	case errors.Is(err, sql.ErrOngoingTx),
		errors.Is(err, sql.ErrNoOngoingTx),
		errors.Is(err, sql.ErrTxAlreadyEnded):
		kind = ErrorKindTransaction
	case errors.Is(err, kvstore.ErrAlreadyClosed),
		errors.Is(err, mvcc.ErrCorruptedKeyspace),
		errors.Is(err, sql.ErrCorruptedData):
		kind = ErrorKindStorage
	}

	return &Error{Kind: kind, Message: err.Error()}
}

// SchemaFrom converts an engine table schema into its wire form.
func SchemaFrom(t *sql.Table) *TableSchema {
	schema := &TableSchema{Name: t.Name}
	for _, c := range t.Columns {
		col := TableColumn{
			Name:       c.Name,
			Type:       c.Type.String(),
			PrimaryKey: c.PrimaryKey,
			Nullable:   c.Nullable,
			Unique:     c.Unique,
			Indexed:    c.Indexed,
		}
		if c.Default != nil {
			col.Default = c.Default.String()
		}
		schema.Columns = append(schema.Columns, col)
	}
	return schema
}

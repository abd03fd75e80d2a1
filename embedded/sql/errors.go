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
	"errors"

	"github.com/BingCoke/CokeDB/embedded/mvcc"
)

var (
	ErrIllegalArguments = mvcc.ErrIllegalArguments

	// lexing and parsing
	ErrLexing  = errors.New("lexing error")
	ErrParsing = errors.New("parsing error")

	// schema
	ErrTableAlreadyExists  = errors.New("table already exists")
	ErrTableDoesNotExist   = errors.New("table does not exist")
	ErrColumnDoesNotExist  = errors.New("column does not exist")
	ErrDuplicatedColumn    = errors.New("duplicated column")
	ErrAmbiguousColumn     = errors.New("ambiguous column")
	ErrNoPrimaryKey        = errors.New("no primary key specified")
	ErrMultiplePrimaryKeys = errors.New("multiple primary keys are not allowed")
	ErrInvalidDefault      = errors.New("invalid default value")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrColumnNotIndexed    = errors.New("column is not indexed")

	// constraints
	ErrNotNullViolation = errors.New("not nullable column can not be null")
	ErrUniqueViolation  = errors.New("unique constraint violation")
	ErrDuplicateKey     = errors.New("duplicate primary key")

	// arithmetic and evaluation
	ErrDivisionByZero       = errors.New("division by zero")
	ErrIntegerOverflow      = errors.New("integer overflow")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrNotComparableValues  = errors.New("values are not comparable")

	// transactions
	ErrOngoingTx      = errors.New("transaction already in progress")
	ErrNoOngoingTx    = errors.New("no ongoing transaction")
	ErrSerialization  = mvcc.ErrSerialization
	ErrTxAlreadyEnded = mvcc.ErrTxClosed

	// execution
	ErrNoMoreRows       = errors.New("no more rows")
	ErrExpectingDQLStmt = errors.New("illegal statement. DQL statement expected")
	ErrUnexpected       = errors.New("unexpected error")

	ErrCorruptedData = errors.New("corrupted data")
)

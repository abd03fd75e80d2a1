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

type ResultType string

const (
	ResultBegin       ResultType = "begin"
	ResultCommit      ResultType = "commit"
	ResultRollback    ResultType = "rollback"
	ResultCreateTable ResultType = "create_table"
	ResultDropTable   ResultType = "drop_table"
	ResultInsert      ResultType = "insert"
	ResultUpdate      ResultType = "update"
	ResultDelete      ResultType = "delete"
	ResultQuery       ResultType = "query"
	ResultExplain     ResultType = "explain"
)

// ResultSet is the outcome of one executed statement.
type ResultSet struct {
	Type    ResultType     `json:"type"`
	TxID    uint64         `json:"tx_id,omitempty"`
	Table   string         `json:"table,omitempty"`
	Count   uint64         `json:"count,omitempty"`
	Columns []ResultColumn `json:"columns,omitempty"`
	Rows    []Row          `json:"rows,omitempty"`
	Explain string         `json:"explain,omitempty"`
}

// Session maps client statements onto transactions: it is either idle or
// holds one open transaction. Statements outside an explicit transaction
// run in an implicit one that auto-commits, or auto-rolls-back on error.
type Session struct {
	engine *Engine
	tx     *Tx
}

// InTx reports the open transaction id, if any.
func (s *Session) InTx() (uint64, bool) {
	if s.tx == nil {
		return 0, false
	}
	return s.tx.ID(), true
}

// Close rolls back any transaction still open; an abandoned session must
// not leave an active transaction behind.
func (s *Session) Close() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback()
}

// Execute parses, plans, optimizes and executes a single SQL statement.
func (s *Session) Execute(text string) (*ResultSet, error) {
	stmt, err := ParseStatement(text)
	if err != nil {
		return nil, err
	}

	switch t := stmt.(type) {
	case *BeginStmt:
		if s.tx != nil {
			return nil, ErrOngoingTx
		}
		tx, err := s.engine.Begin()
		if err != nil {
			return nil, err
		}
		s.tx = tx
		return &ResultSet{Type: ResultBegin, TxID: tx.ID()}, nil

	case *CommitStmt:
		if s.tx == nil {
			return nil, ErrNoOngoingTx
		}
		tx := s.tx
		s.tx = nil
		id := tx.ID()
		err := tx.Commit()
		if err != nil {
			return nil, err
		}
		return &ResultSet{Type: ResultCommit, TxID: id}, nil

	case *RollbackStmt:
		if s.tx == nil {
			return nil, ErrNoOngoingTx
		}
		tx := s.tx
		s.tx = nil
		id := tx.ID()
		err := tx.Rollback()
		if err != nil {
			return nil, err
		}
		return &ResultSet{Type: ResultRollback, TxID: id}, nil

	case *ExplainStmt:
		return s.withTx(func(tx *Tx) (*ResultSet, error) {
			plan, err := planAndOptimize(t.Stmt, tx)
			if err != nil {
				return nil, err
			}
			return &ResultSet{Type: ResultExplain, Explain: plan.String()}, nil
		})
	}

	return s.withTx(func(tx *Tx) (*ResultSet, error) {
		plan, err := planAndOptimize(stmt, tx)
		if err != nil {
			return nil, err
		}
		return tx.ExecPlan(plan)
	})
}

func planAndOptimize(stmt Statement, tx *Tx) (*Plan, error) {
	plan, err := BuildPlan(stmt, tx)
	if err != nil {
		return nil, err
	}
	return plan.Optimize(tx)
}

// withTx runs fn inside the session's open transaction, or in an implicit
// single-statement one. Errors in an explicit transaction leave it open;
// the client decides whether to roll back.
func (s *Session) withTx(fn func(*Tx) (*ResultSet, error)) (*ResultSet, error) {
	if s.tx != nil {
		return fn(s.tx)
	}

	tx, err := s.engine.Begin()
	if err != nil {
		return nil, err
	}

	rs, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.Commit()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return rs, nil
}

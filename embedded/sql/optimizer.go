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

// Optimize runs the rule-based passes in order: constant folding, predicate
// pushdown with join-constant propagation, equi-join discovery, and
// index/key lookup rewriting. Each pass builds a fresh tree.
func (p *Plan) Optimize(catalog Catalog) (*Plan, error) {
	root := p.Root

	for _, o := range []optimizer{
		constantFolder{},
		filterPushdown{},
		joinTypeOptimizer{},
		indexLookupOptimizer{catalog: catalog},
	} {
		var err error
		root, err = o.optimize(root)
		if err != nil {
			return nil, err
		}
	}

	return &Plan{Root: root}, nil
}

type optimizer interface {
	optimize(Node) (Node, error)
}

// constantFolder evaluates pure expression subtrees at plan time.
type constantFolder struct{}

func (constantFolder) optimize(node Node) (Node, error) {
	return transformNode(node, nil, func(n Node) (Node, error) {
		return transformNodeExprs(n, func(e Expression) (Expression, error) {
			return transformExpr(e, nil, func(e Expression) (Expression, error) {
				if _, isLit := e.(*Literal); isLit {
					return e, nil
				}
				if _, isFn := e.(*Function); isFn {
					return e, nil
				}
				if containsField(e) || containsExpr(e, func(e Expression) bool {
					_, ok := e.(*Function)
					return ok
				}) {
					return e, nil
				}
				v, err := evalExpr(e, nil)
				if err != nil {
					return nil, err
				}
				return &Literal{Value: v}, nil
			})
		})
	})
}

// filterPushdown moves filters into scans and splits join predicates on AND
// conjuncts, migrating single-side conjuncts below the join.
type filterPushdown struct{}

func (filterPushdown) optimize(node Node) (Node, error) {
	return transformNode(node, func(n Node) (Node, error) {
		switch t := n.(type) {
		case *FilterNode:
			switch src := t.Source.(type) {
			case *ScanNode:
				return &ScanNode{
					Table:  src.Table,
					Alias:  src.Alias,
					Filter: andExprs(src.Filter, t.Predicate),
				}, nil
			case *NestedLoopJoinNode:
				return pushDownJoin(&NestedLoopJoinNode{
					Left:      src.Left,
					Right:     src.Right,
					LeftSize:  src.LeftSize,
					Predicate: andExprs(src.Predicate, t.Predicate),
					Outer:     src.Outer,
				})
			}
			return t, nil
		case *NestedLoopJoinNode:
			return pushDownJoin(t)
		}
		return n, nil
	}, nil)
}

func andExprs(a, b Expression) Expression {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return &InfixExpr{Op: OpAnd, L: a, R: b}
}

func pushDownJoin(join *NestedLoopJoinNode) (Node, error) {
	if join.Predicate == nil {
		return join, nil
	}

	leftSize := join.LeftSize
	cnf := splitAnd(join.Predicate)

	var leftOnly, rightOnly, rest []Expression
	for _, conjunct := range cnf {
		switch {
		case fieldsSatisfy(conjunct, func(i int) bool { return i < leftSize }):
			leftOnly = append(leftOnly, conjunct)
		case fieldsSatisfy(conjunct, func(i int) bool { return i >= leftSize }):
			rightOnly = append(rightOnly, conjunct)
		default:
			rest = append(rest, conjunct)
		}
	}

	leftOnly, rightOnly = propagateJoinConstants(rest, leftOnly, rightOnly, leftSize)

	shifted := make([]Expression, len(rightOnly))
	for i, e := range rightOnly {
		var err error
		shifted[i], err = shiftFields(e, -leftSize)
		if err != nil {
			return nil, err
		}
	}

	left, err := pushInto(join.Left, joinAnd(leftOnly))
	if err != nil {
		return nil, err
	}
	right, err := pushInto(join.Right, joinAnd(shifted))
	if err != nil {
		return nil, err
	}

	return &NestedLoopJoinNode{
		Left:      left,
		Right:     right,
		LeftSize:  leftSize,
		Predicate: joinAnd(rest),
		Outer:     join.Outer,
	}, nil
}

// propagateJoinConstants turns a join conjunct a = b together with a pushed
// a = const into b = const on the opposite side, enabling further pushdown
// and index rewrites there.
func propagateJoinConstants(rest, leftOnly, rightOnly []Expression, leftSize int) (left, right []Expression) {
	consts := map[int]Value{}

	record := func(conjuncts []Expression) {
		for _, e := range conjuncts {
			in, ok := e.(*InfixExpr)
			if !ok || in.Op != OpEqual {
				continue
			}
			if f, ok := in.L.(*Field); ok {
				if lit, ok := in.R.(*Literal); ok && !lit.Value.IsNull() {
					consts[f.Index] = lit.Value
				}
			}
			if f, ok := in.R.(*Field); ok {
				if lit, ok := in.L.(*Literal); ok && !lit.Value.IsNull() {
					consts[f.Index] = lit.Value
				}
			}
		}
	}
	record(leftOnly)
	record(rightOnly)

	for _, e := range rest {
		in, ok := e.(*InfixExpr)
		if !ok || in.Op != OpEqual {
			continue
		}
		lf, lok := in.L.(*Field)
		rf, rok := in.R.(*Field)
		if !lok || !rok {
			continue
		}

		a, b := lf, rf
		if a.Index > b.Index {
			a, b = b, a
		}
		if a.Index >= leftSize || b.Index < leftSize {
			continue
		}

		if v, ok := consts[a.Index]; ok {
			if _, done := consts[b.Index]; !done {
				consts[b.Index] = v
				rightOnly = append(rightOnly, &InfixExpr{Op: OpEqual, L: b, R: &Literal{Value: v}})
			}
		} else if v, ok := consts[b.Index]; ok {
			if _, done := consts[a.Index]; !done {
				consts[a.Index] = v
				leftOnly = append(leftOnly, &InfixExpr{Op: OpEqual, L: a, R: &Literal{Value: v}})
			}
		}
	}

	return leftOnly, rightOnly
}

func pushInto(node Node, predicate Expression) (Node, error) {
	if predicate == nil {
		return node, nil
	}

	switch t := node.(type) {
	case *ScanNode:
		return &ScanNode{Table: t.Table, Alias: t.Alias, Filter: andExprs(t.Filter, predicate)}, nil
	case *NestedLoopJoinNode:
		return &NestedLoopJoinNode{
			Left:      t.Left,
			Right:     t.Right,
			LeftSize:  t.LeftSize,
			Predicate: andExprs(t.Predicate, predicate),
			Outer:     t.Outer,
		}, nil
	}
	return &FilterNode{Source: node, Predicate: predicate}, nil
}

// joinTypeOptimizer promotes a nested-loop join whose predicate contains an
// equality of two column references, one per side, into a hash join.
type joinTypeOptimizer struct{}

func (joinTypeOptimizer) optimize(node Node) (Node, error) {
	return transformNode(node, func(n Node) (Node, error) {
		join, ok := n.(*NestedLoopJoinNode)
		if !ok || join.Predicate == nil {
			return n, nil
		}

		cnf := splitAnd(join.Predicate)

		for i, conjunct := range cnf {
			in, ok := conjunct.(*InfixExpr)
			if !ok || in.Op != OpEqual {
				continue
			}
			lf, lok := in.L.(*Field)
			rf, rok := in.R.(*Field)
			if !lok || !rok {
				continue
			}

			a, b := lf.Index, rf.Index
			if a > b {
				a, b = b, a
			}
			if a >= join.LeftSize || b < join.LeftSize {
				continue
			}

			var hj Node = &HashJoinNode{
				Left:       join.Left,
				Right:      join.Right,
				LeftSize:   join.LeftSize,
				LeftField:  a,
				RightField: b - join.LeftSize,
				Outer:      join.Outer,
			}

			residual := joinAnd(append(append([]Expression{}, cnf[:i]...), cnf[i+1:]...))
			if residual != nil {
				hj = &FilterNode{Source: hj, Predicate: residual}
			}
			return hj, nil
		}
		return n, nil
	}, nil)
}

// indexLookupOptimizer rewrites a filtered scan whose predicate pins the
// primary key or an indexed column to a targeted lookup.
type indexLookupOptimizer struct {
	catalog Catalog
}

func (o indexLookupOptimizer) optimize(node Node) (Node, error) {
	return transformNode(node, func(n Node) (Node, error) {
		scan, ok := n.(*ScanNode)
		if !ok || scan.Filter == nil {
			return n, nil
		}

		table, err := o.catalog.GetTable(scan.Table)
		if err != nil {
			return nil, err
		}

		pkIdx, err := table.PrimaryKeyIndex()
		if err != nil {
			return nil, err
		}

		cnf := splitAnd(scan.Filter)

		for i, conjunct := range cnf {
			residualOf := func() Expression {
				return joinAnd(append(append([]Expression{}, cnf[:i]...), cnf[i+1:]...))
			}

			if vals := lookupFieldValues(conjunct, pkIdx); vals != nil {
				var node Node = &KeyLookupNode{Table: scan.Table, Alias: scan.Alias, Keys: dedupeValues(vals)}
				if residual := residualOf(); residual != nil {
					node = &FilterNode{Source: node, Predicate: residual}
				}
				return node, nil
			}

			for _, colIdx := range table.IndexedColumns() {
				vals := lookupFieldValues(conjunct, colIdx)
				if vals == nil {
					continue
				}
				var node Node = &IndexLookupNode{
					Table:  scan.Table,
					Alias:  scan.Alias,
					Column: table.Columns[colIdx].Name,
					Values: dedupeValues(vals),
				}
				if residual := residualOf(); residual != nil {
					node = &FilterNode{Source: node, Predicate: residual}
				}
				return node, nil
			}
		}
		return n, nil
	}, nil)
}

func dedupeValues(vals []Value) []Value {
	out := make([]Value, 0, len(vals))
	seen := make(map[Value]struct{}, len(vals))
	for _, v := range vals {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

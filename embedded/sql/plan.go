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
	"fmt"
	"strings"
)

// Node is a logical plan operator. Plan trees are immutable after
// optimization; rewrites build fresh nodes.
type Node interface {
	node()
}

type ScanNode struct {
	Table  string
	Alias  string
	Filter Expression
}

type KeyLookupNode struct {
	Table string
	Alias string
	Keys  []Value
}

type IndexLookupNode struct {
	Table  string
	Alias  string
	Column string
	Values []Value
}

type FilterNode struct {
	Source    Node
	Predicate Expression
}

type ProjExpr struct {
	Expr  Expression
	Alias string
}

type ProjectionNode struct {
	Source Node
	Exprs  []ProjExpr
}

type NestedLoopJoinNode struct {
	Left      Node
	Right     Node
	LeftSize  int
	Predicate Expression
	Outer     bool
}

type HashJoinNode struct {
	Left       Node
	Right      Node
	LeftSize   int
	LeftField  int
	RightField int
	Outer      bool
}

type AggregateFn int

const (
	AggCount AggregateFn = iota
	AggSum
	AggAverage
	AggMin
	AggMax
)

func (a AggregateFn) String() string {
	switch a {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAverage:
		return "average"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	}
	return "?"
}

func aggregateFromName(name string) (AggregateFn, bool) {
	switch strings.ToLower(name) {
	case "count":
		return AggCount, true
	case "sum":
		return AggSum, true
	case "avg", "average":
		return AggAverage, true
	case "min":
		return AggMin, true
	case "max":
		return AggMax, true
	}
	return 0, false
}

type AggregationNode struct {
	Source     Node
	Aggregates []AggregateFn
}

type OrderClause struct {
	Expr Expression
	Desc bool
}

type OrderNode struct {
	Source Node
	Orders []OrderClause
}

type LimitNode struct {
	Source Node
	Limit  Expression
}

type OffsetNode struct {
	Source Node
	Offset Expression
}

type InsertNode struct {
	Table   string
	Columns []string
	Rows    [][]Expression
}

type SetClause struct {
	Index int
	Expr  Expression
}

type UpdateNode struct {
	Table  string
	Source Node
	Set    []SetClause
}

type DeleteNode struct {
	Table  string
	Source Node
}

type CreateTableNode struct {
	Table    Table
	Defaults []Expression
}

type DropTableNode struct {
	Table string
}

type NothingNode struct{}

func (*ScanNode) node()           {}
func (*KeyLookupNode) node()      {}
func (*IndexLookupNode) node()    {}
func (*FilterNode) node()         {}
func (*ProjectionNode) node()     {}
func (*NestedLoopJoinNode) node() {}
func (*HashJoinNode) node()       {}
func (*AggregationNode) node()    {}
func (*OrderNode) node()          {}
func (*LimitNode) node()          {}
func (*OffsetNode) node()         {}
func (*InsertNode) node()         {}
func (*UpdateNode) node()         {}
func (*DeleteNode) node()         {}
func (*CreateTableNode) node()    {}
func (*DropTableNode) node()      {}
func (*NothingNode) node()        {}

// Plan is a planned statement rooted at a single node.
type Plan struct {
	Root Node
}

func (p *Plan) String() string {
	return strings.TrimRight(formatNode(p.Root, "", true, true), "\n")
}

// formatNode renders the tree with box-drawing connectors, one node per line.
func formatNode(n Node, indent string, root, last bool) string {
	s := indent
	if !last {
		s += "├─ "
		indent += "│  "
	} else if !root {
		s += "└─ "
		indent += "   "
	}

	one := func(label string, source Node) string {
		return s + label + "\n" + formatNode(source, indent, false, true)
	}

	switch t := n.(type) {
	case *ScanNode:
		s += "Scan: " + t.Table
		if t.Alias != "" {
			s += " as " + t.Alias
		}
		if t.Filter != nil {
			s += " (" + t.Filter.String() + ")"
		}
		return s + "\n"

	case *KeyLookupNode:
		s += "KeyLookup: " + t.Table
		if t.Alias != "" {
			s += " as " + t.Alias
		}
		return s + " (" + formatValues(t.Keys) + ")\n"

	case *IndexLookupNode:
		s += "IndexLookup: " + t.Table
		if t.Alias != "" {
			s += " as " + t.Alias
		}
		return s + " column " + t.Column + " (" + formatValues(t.Values) + ")\n"

	case *FilterNode:
		return one("Filter: "+t.Predicate.String(), t.Source)

	case *ProjectionNode:
		exprs := make([]string, len(t.Exprs))
		for i, pe := range t.Exprs {
			exprs[i] = pe.Expr.String()
		}
		return one("Projection: "+strings.Join(exprs, ", "), t.Source)

	case *NestedLoopJoinNode:
		kind := "inner"
		if t.Outer {
			kind = "outer"
		}
		s += "NestedLoopJoin: " + kind
		if t.Predicate != nil {
			s += " on " + t.Predicate.String()
		}
		s += "\n"
		s += formatNode(t.Left, indent, false, false)
		s += formatNode(t.Right, indent, false, true)
		return s

	case *HashJoinNode:
		kind := "inner"
		if t.Outer {
			kind = "outer"
		}
		s += fmt.Sprintf("HashJoin: %s on left #%d = right #%d\n", kind, t.LeftField, t.RightField)
		s += formatNode(t.Left, indent, false, false)
		s += formatNode(t.Right, indent, false, true)
		return s

	case *AggregationNode:
		aggs := make([]string, len(t.Aggregates))
		for i, a := range t.Aggregates {
			aggs[i] = a.String()
		}
		return one("Aggregation: "+strings.Join(aggs, ", "), t.Source)

	case *OrderNode:
		orders := make([]string, len(t.Orders))
		for i, o := range t.Orders {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			orders[i] = o.Expr.String() + " " + dir
		}
		return one("Order: "+strings.Join(orders, ", "), t.Source)

	case *LimitNode:
		return one("Limit: "+t.Limit.String(), t.Source)

	case *OffsetNode:
		return one("Offset: "+t.Offset.String(), t.Source)

	case *InsertNode:
		return s + fmt.Sprintf("Insert: %s (%d rows)\n", t.Table, len(t.Rows))

	case *UpdateNode:
		sets := make([]string, len(t.Set))
		for i, sc := range t.Set {
			sets[i] = fmt.Sprintf("#%d=%s", sc.Index, sc.Expr)
		}
		return one(fmt.Sprintf("Update: %s (%s)", t.Table, strings.Join(sets, ", ")), t.Source)

	case *DeleteNode:
		return one("Delete: "+t.Table, t.Source)

	case *CreateTableNode:
		return s + "CreateTable: " + t.Table.Name + "\n"

	case *DropTableNode:
		return s + "DropTable: " + t.Table + "\n"

	case *NothingNode:
		return s + "Nothing\n"
	}
	return s + "?\n"
}

func formatValues(vals []Value) string {
	if len(vals) >= 10 {
		return fmt.Sprintf("%d values", len(vals))
	}
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = v.String()
	}
	return strings.Join(strs, ", ")
}

// transformNode rebuilds the tree applying pre before descending into the
// sources of a node and post afterwards.
func transformNode(n Node, pre, post func(Node) (Node, error)) (Node, error) {
	var err error

	if pre != nil {
		n, err = pre(n)
		if err != nil {
			return nil, err
		}
	}

	rec := func(child Node) (Node, error) {
		return transformNode(child, pre, post)
	}

	switch t := n.(type) {
	case *FilterNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &FilterNode{Source: src, Predicate: t.Predicate}
	case *ProjectionNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &ProjectionNode{Source: src, Exprs: t.Exprs}
	case *NestedLoopJoinNode:
		l, err := rec(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := rec(t.Right)
		if err != nil {
			return nil, err
		}
		n = &NestedLoopJoinNode{Left: l, Right: r, LeftSize: t.LeftSize, Predicate: t.Predicate, Outer: t.Outer}
	case *HashJoinNode:
		l, err := rec(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := rec(t.Right)
		if err != nil {
			return nil, err
		}
		n = &HashJoinNode{Left: l, Right: r, LeftSize: t.LeftSize, LeftField: t.LeftField, RightField: t.RightField, Outer: t.Outer}
	case *AggregationNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &AggregationNode{Source: src, Aggregates: t.Aggregates}
	case *OrderNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &OrderNode{Source: src, Orders: t.Orders}
	case *LimitNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &LimitNode{Source: src, Limit: t.Limit}
	case *OffsetNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &OffsetNode{Source: src, Offset: t.Offset}
	case *UpdateNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &UpdateNode{Table: t.Table, Source: src, Set: t.Set}
	case *DeleteNode:
		src, err := rec(t.Source)
		if err != nil {
			return nil, err
		}
		n = &DeleteNode{Table: t.Table, Source: src}
	}

	if post != nil {
		return post(n)
	}
	return n, nil
}

// transformNodeExprs rewrites every expression carried by a single node.
func transformNodeExprs(n Node, fn func(Expression) (Expression, error)) (Node, error) {
	switch t := n.(type) {
	case *ScanNode:
		if t.Filter == nil {
			return n, nil
		}
		filter, err := fn(t.Filter)
		if err != nil {
			return nil, err
		}
		return &ScanNode{Table: t.Table, Alias: t.Alias, Filter: filter}, nil

	case *FilterNode:
		pred, err := fn(t.Predicate)
		if err != nil {
			return nil, err
		}
		return &FilterNode{Source: t.Source, Predicate: pred}, nil

	case *ProjectionNode:
		exprs := make([]ProjExpr, len(t.Exprs))
		for i, pe := range t.Exprs {
			e, err := fn(pe.Expr)
			if err != nil {
				return nil, err
			}
			exprs[i] = ProjExpr{Expr: e, Alias: pe.Alias}
		}
		return &ProjectionNode{Source: t.Source, Exprs: exprs}, nil

	case *NestedLoopJoinNode:
		if t.Predicate == nil {
			return n, nil
		}
		pred, err := fn(t.Predicate)
		if err != nil {
			return nil, err
		}
		return &NestedLoopJoinNode{Left: t.Left, Right: t.Right, LeftSize: t.LeftSize, Predicate: pred, Outer: t.Outer}, nil

	case *OrderNode:
		orders := make([]OrderClause, len(t.Orders))
		for i, o := range t.Orders {
			e, err := fn(o.Expr)
			if err != nil {
				return nil, err
			}
			orders[i] = OrderClause{Expr: e, Desc: o.Desc}
		}
		return &OrderNode{Source: t.Source, Orders: orders}, nil

	case *InsertNode:
		rows := make([][]Expression, len(t.Rows))
		for i, row := range t.Rows {
			rows[i] = make([]Expression, len(row))
			for j, e := range row {
				ne, err := fn(e)
				if err != nil {
					return nil, err
				}
				rows[i][j] = ne
			}
		}
		return &InsertNode{Table: t.Table, Columns: t.Columns, Rows: rows}, nil

	case *UpdateNode:
		set := make([]SetClause, len(t.Set))
		for i, sc := range t.Set {
			e, err := fn(sc.Expr)
			if err != nil {
				return nil, err
			}
			set[i] = SetClause{Index: sc.Index, Expr: e}
		}
		return &UpdateNode{Table: t.Table, Source: t.Source, Set: set}, nil
	}
	return n, nil
}

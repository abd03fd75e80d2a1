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
	"reflect"
)

// BuildPlan lowers a parsed statement into an initial logical plan against
// the given catalog.
func BuildPlan(stmt Statement, catalog Catalog) (*Plan, error) {
	p := &planner{catalog: catalog}

	node, err := p.buildStatement(stmt)
	if err != nil {
		return nil, err
	}
	return &Plan{Root: node}, nil
}

type planner struct {
	catalog Catalog
}

func (p *planner) buildStatement(stmt Statement) (Node, error) {
	switch t := stmt.(type) {
	case *CreateTableStmt:
		return p.buildCreateTable(t)
	case *DropTableStmt:
		return &DropTableNode{Table: t.Name}, nil
	case *InsertStmt:
		return p.buildInsert(t)
	case *UpdateStmt:
		return p.buildUpdate(t)
	case *DeleteStmt:
		return p.buildDelete(t)
	case *SelectStmt:
		return p.buildSelect(t)
	}
	return nil, fmt.Errorf("%w: statement is not plannable", ErrUnexpected)
}

func (p *planner) buildCreateTable(stmt *CreateTableStmt) (Node, error) {
	table := Table{Name: stmt.Name}
	defaults := make([]Expression, len(stmt.Columns))

	for i, spec := range stmt.Columns {
		col := Column{
			Name:       spec.Name,
			Type:       spec.Type,
			PrimaryKey: spec.PrimaryKey,
			Unique:     spec.Unique,
			Indexed:    spec.Indexed,
		}

		if spec.Nullable != nil {
			col.Nullable = *spec.Nullable
		} else {
			col.Nullable = !spec.PrimaryKey
		}

		// the primary key is the table's keying and needs no extra index
		if col.PrimaryKey {
			col.Unique = true
			col.Nullable = false
			col.Indexed = false
		} else if col.Unique {
			col.Indexed = true
		}

		if spec.Default != nil {
			expr, err := p.buildExpression(constantScope(), spec.Default)
			if err != nil {
				return nil, err
			}
			defaults[i] = expr
		}

		table.Columns = append(table.Columns, col)
	}

	return &CreateTableNode{Table: table, Defaults: defaults}, nil
}

func (p *planner) buildInsert(stmt *InsertStmt) (Node, error) {
	table, err := p.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	columns := stmt.Columns
	if len(columns) == 0 {
		columns = make([]string, len(table.Columns))
		for i, c := range table.Columns {
			columns[i] = c.Name
		}
	}

	seen := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		_, err := table.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatedColumn, name)
		}
		seen[name] = struct{}{}
	}

	rows := make([][]Expression, len(stmt.Values))
	for i, exprs := range stmt.Values {
		if len(exprs) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d",
				ErrIllegalArguments, i+1, len(exprs), len(columns))
		}
		row := make([]Expression, len(exprs))
		for j, e := range exprs {
			row[j], err = p.buildExpression(constantScope(), e)
			if err != nil {
				return nil, err
			}
		}
		rows[i] = row
	}

	return &InsertNode{Table: stmt.Table, Columns: columns, Rows: rows}, nil
}

func (p *planner) buildUpdate(stmt *UpdateStmt) (Node, error) {
	table, err := p.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	sc := newScope()
	err = sc.registerTable(stmt.Table, table)
	if err != nil {
		return nil, err
	}

	var filter Expression
	if stmt.Where != nil {
		filter, err = p.buildExpression(sc, stmt.Where)
		if err != nil {
			return nil, err
		}
	}

	set := make([]SetClause, len(stmt.Set))
	for i, a := range stmt.Set {
		idx, err := table.ColumnIndex(a.Column)
		if err != nil {
			return nil, err
		}
		expr, err := p.buildExpression(sc, a.Expr)
		if err != nil {
			return nil, err
		}
		set[i] = SetClause{Index: idx, Expr: expr}
	}

	return &UpdateNode{
		Table:  stmt.Table,
		Source: &ScanNode{Table: stmt.Table, Filter: filter},
		Set:    set,
	}, nil
}

func (p *planner) buildDelete(stmt *DeleteStmt) (Node, error) {
	table, err := p.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	sc := newScope()
	err = sc.registerTable(stmt.Table, table)
	if err != nil {
		return nil, err
	}

	var filter Expression
	if stmt.Where != nil {
		filter, err = p.buildExpression(sc, stmt.Where)
		if err != nil {
			return nil, err
		}
	}

	return &DeleteNode{
		Table:  stmt.Table,
		Source: &ScanNode{Table: stmt.Table, Filter: filter},
	}, nil
}

func (p *planner) buildSelect(stmt *SelectStmt) (Node, error) {
	sc := newScope()

	var node Node
	var err error

	switch {
	case len(stmt.From) > 0:
		for _, item := range stmt.From {
			right, err := p.buildFromItem(sc, item, &node)
			if err != nil {
				return nil, err
			}
			node = right
		}
	case len(stmt.Select) > 0:
		node = &NothingNode{}
	default:
		return nil, fmt.Errorf("%w: empty select and from clauses", ErrParsing)
	}

	if stmt.Where != nil {
		predicate, err := p.buildExpression(sc, stmt.Where)
		if err != nil {
			return nil, err
		}
		node = &FilterNode{Source: node, Predicate: predicate}
	}

	if len(stmt.Select) == 0 && len(stmt.GroupBy) > 0 {
		return nil, fmt.Errorf("%w: SELECT * can not be combined with GROUP BY", ErrParsing)
	}

	sel := make([]SelectItem, len(stmt.Select))
	copy(sel, stmt.Select)

	having := stmt.Having
	order := make([]OrderItem, len(stmt.Order))
	copy(order, stmt.Order)

	hidden := 0

	if len(sel) > 0 {
		// HAVING and ORDER BY run above the projection and may reference
		// select aliases or expressions not present in the output; those
		// become hidden trailing columns stripped at the very end.
		if having != nil {
			having, hidden, err = p.injectHidden(having, &sel, hidden)
			if err != nil {
				return nil, err
			}
		}
		for i := range order {
			order[i].Expr, hidden, err = p.injectHidden(order[i].Expr, &sel, hidden)
			if err != nil {
				return nil, err
			}
		}

		aggregates, aggArgs, err := p.extractAggregates(sel)
		if err != nil {
			return nil, err
		}

		groups, err := p.extractGroupBy(sel, stmt.GroupBy, len(aggregates))
		if err != nil {
			return nil, err
		}

		if len(aggregates) > 0 || len(groups) > 0 {
			node, err = p.buildAggregation(sc, node, aggregates, aggArgs, groups)
			if err != nil {
				return nil, err
			}
		}

		exprs := make([]ProjExpr, len(sel))
		for i, item := range sel {
			e, err := p.buildExpression(sc, item.Expr)
			if err != nil {
				return nil, err
			}
			exprs[i] = ProjExpr{Expr: e, Alias: item.Alias}
		}

		err = sc.project(exprs)
		if err != nil {
			return nil, err
		}
		node = &ProjectionNode{Source: node, Exprs: exprs}
	}

	if having != nil {
		predicate, err := p.buildExpression(sc, having)
		if err != nil {
			return nil, err
		}
		node = &FilterNode{Source: node, Predicate: predicate}
	}

	if len(order) > 0 {
		orders := make([]OrderClause, len(order))
		for i, o := range order {
			e, err := p.buildExpression(sc, o.Expr)
			if err != nil {
				return nil, err
			}
			orders[i] = OrderClause{Expr: e, Desc: o.Desc}
		}
		node = &OrderNode{Source: node, Orders: orders}
	}

	if stmt.Offset != nil {
		e, err := p.buildExpression(constantScope(), stmt.Offset)
		if err != nil {
			return nil, err
		}
		node = &OffsetNode{Source: node, Offset: e}
	}

	if stmt.Limit != nil {
		e, err := p.buildExpression(constantScope(), stmt.Limit)
		if err != nil {
			return nil, err
		}
		node = &LimitNode{Source: node, Limit: e}
	}

	if hidden > 0 {
		keep := sc.size() - hidden
		exprs := make([]ProjExpr, keep)
		for i := 0; i < keep; i++ {
			exprs[i] = ProjExpr{Expr: &Field{Index: i}}
		}
		node = &ProjectionNode{Source: node, Exprs: exprs}
	}

	return node, nil
}

// buildFromItem builds the node for one FROM entry. When left is non-nil the
// entry is chained to it with a cross join (comma joins).
func (p *planner) buildFromItem(sc *scope, item FromItem, left *Node) (Node, error) {
	if *left == nil {
		return p.buildFromNode(sc, item)
	}

	leftSize := sc.size()
	right, err := p.buildFromNode(sc, item)
	if err != nil {
		return nil, err
	}

	return &NestedLoopJoinNode{
		Left:     *left,
		Right:    right,
		LeftSize: leftSize,
	}, nil
}

func (p *planner) buildFromNode(sc *scope, item FromItem) (Node, error) {
	switch t := item.(type) {
	case *TableItem:
		table, err := p.catalog.GetTable(t.Name)
		if err != nil {
			return nil, err
		}

		name := t.Name
		if t.Alias != "" {
			name = t.Alias
		}

		err = sc.registerTable(name, table)
		if err != nil {
			return nil, err
		}
		return &ScanNode{Table: t.Name, Alias: t.Alias}, nil

	case *JoinItem:
		left, right := t.Left, t.Right

		// right joins swap operands and execute as left-outer; a restoring
		// projection puts the columns back in declaration order
		if t.Type == RightJoin {
			left, right = right, left
		}

		leftNode, err := p.buildFromNode(sc, left)
		if err != nil {
			return nil, err
		}
		leftSize := sc.size()

		rightNode, err := p.buildFromNode(sc, right)
		if err != nil {
			return nil, err
		}

		var predicate Expression
		if t.Predicate != nil {
			predicate, err = p.buildExpression(sc, t.Predicate)
			if err != nil {
				return nil, err
			}
		}

		outer := t.Type == LeftJoin || t.Type == RightJoin

		var node Node = &NestedLoopJoinNode{
			Left:      leftNode,
			Right:     rightNode,
			LeftSize:  leftSize,
			Predicate: predicate,
			Outer:     outer,
		}

		if t.Type == RightJoin {
			size := sc.size()
			exprs := make([]ProjExpr, 0, size)
			for _, i := range permute(leftSize, size) {
				col := sc.columns[i]
				exprs = append(exprs, ProjExpr{Expr: &Field{Index: i, Table: col.table, Name: col.name}})
			}

			err = sc.project(exprs)
			if err != nil {
				return nil, err
			}
			node = &ProjectionNode{Source: node, Exprs: exprs}
		}

		return node, nil
	}
	return nil, fmt.Errorf("%w: unknown from item", ErrUnexpected)
}

// permute yields indexes leftSize..size-1 first, then 0..leftSize-1.
func permute(leftSize, size int) []int {
	out := make([]int, 0, size)
	for i := leftSize; i < size; i++ {
		out = append(out, i)
	}
	for i := 0; i < leftSize; i++ {
		out = append(out, i)
	}
	return out
}

// injectHidden rewrites a HAVING or ORDER BY expression in terms of the
// select list, appending hidden select items for anything the output does
// not already carry.
func (p *planner) injectHidden(expr Expression, sel *[]SelectItem, hidden int) (Expression, int, error) {
	var err error

	for i, item := range *sel {
		if reflect.DeepEqual(expr, item.Expr) {
			expr = &Field{Index: i}
			continue
		}

		if item.Alias == "" {
			continue
		}
		alias := item.Alias
		idx := i
		expr, err = transformExpr(expr, func(e Expression) (Expression, error) {
			if cr, ok := e.(*ColumnRef); ok && cr.Table == "" && cr.Name == alias {
				return &Field{Index: idx}, nil
			}
			return e, nil
		}, nil)
		if err != nil {
			return nil, hidden, err
		}
	}

	// aggregates evaluate before the projection exists, so field references
	// that crept into their arguments are restored to the select expressions
	expr, err = transformExpr(expr, nil, func(e Expression) (Expression, error) {
		fn, ok := e.(*Function)
		if !ok {
			return e, nil
		}
		args := make([]Expression, len(fn.Args))
		for i, a := range fn.Args {
			na, err := transformExpr(a, nil, func(e Expression) (Expression, error) {
				if f, ok := e.(*Field); ok && f.Table == "" && f.Name == "" && f.Index < len(*sel) {
					return (*sel)[f.Index].Expr, nil
				}
				return e, nil
			})
			if err != nil {
				return nil, err
			}
			args[i] = na
		}
		return &Function{Name: fn.Name, Args: args, Star: fn.Star}, nil
	})
	if err != nil {
		return nil, hidden, err
	}

	expr, err = transformExpr(expr, func(e Expression) (Expression, error) {
		switch t := e.(type) {
		case *ColumnRef:
			*sel = append(*sel, SelectItem{Expr: t})
			hidden++
			return &Field{Index: len(*sel) - 1}, nil
		case *Function:
			_, ok := aggregateFromName(t.Name)
			if !ok {
				return nil, fmt.Errorf("%w: unknown function %s", ErrParsing, t.Name)
			}
			*sel = append(*sel, SelectItem{Expr: t})
			hidden++
			return &Field{Index: len(*sel) - 1}, nil
		}
		return e, nil
	}, nil)
	if err != nil {
		return nil, hidden, err
	}

	return expr, hidden, nil
}

// extractAggregates pulls aggregate calls out of the select list, replacing
// each with a reference to its position in the aggregation output.
func (p *planner) extractAggregates(sel []SelectItem) ([]AggregateFn, []Expression, error) {
	var fns []AggregateFn
	var args []Expression

	for i := range sel {
		e, err := transformExpr(sel[i].Expr, func(e Expression) (Expression, error) {
			fn, ok := e.(*Function)
			if !ok {
				return e, nil
			}

			agg, known := aggregateFromName(fn.Name)
			if !known {
				return nil, fmt.Errorf("%w: unknown function %s", ErrParsing, fn.Name)
			}

			var arg Expression
			switch {
			case fn.Star:
				if agg != AggCount {
					return nil, fmt.Errorf("%w: %s(*) is not supported", ErrParsing, fn.Name)
				}
				arg = &Literal{Value: BoolValue(true)}
			case len(fn.Args) == 1:
				arg = fn.Args[0]
			default:
				return nil, fmt.Errorf("%w: %s expects exactly one argument", ErrParsing, fn.Name)
			}

			fns = append(fns, agg)
			args = append(args, arg)
			return &Field{Index: len(fns) - 1}, nil
		}, nil)
		if err != nil {
			return nil, nil, err
		}
		sel[i].Expr = e
	}

	for _, arg := range args {
		if containsExpr(arg, func(e Expression) bool { _, ok := e.(*Function); return ok }) {
			return nil, nil, fmt.Errorf("%w: aggregate functions can not be nested", ErrParsing)
		}
	}
	return fns, args, nil
}

// extractGroupBy matches GROUP BY expressions against the select list; a
// matched item is moved into the aggregation and replaced by a positional
// reference to the group column.
func (p *planner) extractGroupBy(sel []SelectItem, groupBy []Expression, offset int) ([]SelectItem, error) {
	var groups []SelectItem

	for _, group := range groupBy {
		matched := -1

		if cr, ok := group.(*ColumnRef); ok && cr.Table == "" {
			for i, item := range sel {
				if item.Alias == cr.Name {
					matched = i
					break
				}
			}
		}

		if matched < 0 {
			for i, item := range sel {
				if reflect.DeepEqual(item.Expr, group) {
					matched = i
					break
				}
			}
		}

		if matched >= 0 {
			item := sel[matched]
			sel[matched] = SelectItem{Expr: &Field{Index: offset + len(groups)}, Alias: item.Alias}
			groups = append(groups, item)
			continue
		}

		groups = append(groups, SelectItem{Expr: group})
	}

	for _, g := range groups {
		if containsExpr(g.Expr, func(e Expression) bool { _, ok := e.(*Function); return ok }) {
			return nil, fmt.Errorf("%w: GROUP BY can not contain aggregates", ErrParsing)
		}
	}
	return groups, nil
}

// buildAggregation projects the aggregate inputs followed by the group
// expressions, then aggregates over them. The scope is reshaped so upper
// nodes resolve only the group columns by name.
func (p *planner) buildAggregation(sc *scope, source Node, aggregates []AggregateFn, aggArgs []Expression, groups []SelectItem) (Node, error) {
	exprs := make([]ProjExpr, 0, len(aggArgs)+len(groups))

	for _, arg := range aggArgs {
		e, err := p.buildExpression(sc, arg)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, ProjExpr{Expr: e})
	}

	for _, g := range groups {
		e, err := p.buildExpression(sc, g.Expr)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, ProjExpr{Expr: e, Alias: g.Alias})
	}

	scoped := make([]ProjExpr, len(exprs))
	copy(scoped, exprs)
	for i := range aggregates {
		// aggregate outputs are reachable by position only
		scoped[i] = ProjExpr{Expr: &Literal{Value: NullValue()}}
	}

	err := sc.project(scoped)
	if err != nil {
		return nil, err
	}

	return &AggregationNode{
		Source:     &ProjectionNode{Source: source, Exprs: exprs},
		Aggregates: aggregates,
	}, nil
}

// buildExpression resolves column references against the scope.
func (p *planner) buildExpression(sc *scope, e Expression) (Expression, error) {
	return transformExpr(e, func(e Expression) (Expression, error) {
		switch t := e.(type) {
		case *ColumnRef:
			idx, err := sc.columnIndex(t.Table, t.Name)
			if err != nil {
				return nil, err
			}
			return &Field{Index: idx, Table: t.Table, Name: t.Name}, nil
		case *Function:
			return nil, fmt.Errorf("%w: aggregate function %s in illegal position", ErrParsing, t.Name)
		}
		return e, nil
	}, nil)
}

// scope tracks which columns the current node produces, so column references
// resolve to row positions.
type scopeColumn struct {
	table string
	name  string
}

type scope struct {
	constant    bool
	tables      map[string]*Table
	columns     []scopeColumn
	qualified   map[scopeColumn]int
	unqualified map[string]int
	ambiguous   map[string]struct{}
}

func newScope() *scope {
	return &scope{
		tables:      map[string]*Table{},
		qualified:   map[scopeColumn]int{},
		unqualified: map[string]int{},
		ambiguous:   map[string]struct{}{},
	}
}

func constantScope() *scope {
	sc := newScope()
	sc.constant = true
	return sc
}

func (sc *scope) size() int {
	return len(sc.columns)
}

func (sc *scope) addColumn(table, name string) {
	if name != "" {
		if table != "" {
			sc.qualified[scopeColumn{table, name}] = len(sc.columns)
		}
		if _, exists := sc.unqualified[name]; exists {
			delete(sc.unqualified, name)
			sc.ambiguous[name] = struct{}{}
		} else if _, amb := sc.ambiguous[name]; !amb {
			sc.unqualified[name] = len(sc.columns)
		}
	}
	sc.columns = append(sc.columns, scopeColumn{table, name})
}

func (sc *scope) registerTable(name string, table *Table) error {
	if sc.constant {
		return fmt.Errorf("%w: can not register a table in a constant scope", ErrUnexpected)
	}
	if _, exists := sc.tables[name]; exists {
		return fmt.Errorf("%w: duplicated table name or alias %s", ErrParsing, name)
	}

	for _, col := range table.Columns {
		sc.addColumn(name, col.Name)
	}
	sc.tables[name] = table
	return nil
}

// project reshapes the scope to the output of a projection.
func (sc *scope) project(exprs []ProjExpr) error {
	if sc.constant {
		return fmt.Errorf("%w: can not project a constant scope", ErrUnexpected)
	}

	next := newScope()
	next.tables = sc.tables

	for _, pe := range exprs {
		if pe.Alias != "" {
			next.addColumn("", pe.Alias)
			continue
		}
		if f, ok := pe.Expr.(*Field); ok && f.Index < len(sc.columns) {
			col := sc.columns[f.Index]
			next.addColumn(col.table, col.name)
			continue
		}
		next.addColumn("", "")
	}

	*sc = *next
	return nil
}

func (sc *scope) columnIndex(table, name string) (int, error) {
	if sc.constant {
		return 0, fmt.Errorf("%w: %s", ErrColumnDoesNotExist, name)
	}

	if table != "" {
		if _, ok := sc.tables[table]; !ok {
			return 0, fmt.Errorf("%w: unknown table %s", ErrTableDoesNotExist, table)
		}
		idx, ok := sc.qualified[scopeColumn{table, name}]
		if !ok {
			return 0, fmt.Errorf("%w: %s.%s", ErrColumnDoesNotExist, table, name)
		}
		return idx, nil
	}

	if _, amb := sc.ambiguous[name]; amb {
		return 0, fmt.Errorf("%w: %s", ErrAmbiguousColumn, name)
	}
	idx, ok := sc.unqualified[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnDoesNotExist, name)
	}
	return idx, nil
}

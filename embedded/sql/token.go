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

import "strings"

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenKeyword
	TokenIdent
	TokenNumber
	TokenString

	TokenPeriod
	TokenComma
	TokenSemicolon
	TokenOpenParen
	TokenCloseParen

	TokenEqual
	TokenNotEqual
	TokenLessThan
	TokenLessOrEqual
	TokenGreaterThan
	TokenGreaterOrEqual
	TokenLessGreater

	TokenPlus
	TokenMinus
	TokenAsterisk
	TokenSlash
	TokenPercent
	TokenCaret
	TokenExclamation
)

type Keyword string

const (
	KwAnd         Keyword = "AND"
	KwAs          Keyword = "AS"
	KwAsc         Keyword = "ASC"
	KwBegin       Keyword = "BEGIN"
	KwBool        Keyword = "BOOL"
	KwBoolean     Keyword = "BOOLEAN"
	KwBy          Keyword = "BY"
	KwChar        Keyword = "CHAR"
	KwCommit      Keyword = "COMMIT"
	KwCreate      Keyword = "CREATE"
	KwCross       Keyword = "CROSS"
	KwDefault     Keyword = "DEFAULT"
	KwDelete      Keyword = "DELETE"
	KwDesc        Keyword = "DESC"
	KwDouble      Keyword = "DOUBLE"
	KwDrop        Keyword = "DROP"
	KwExplain     Keyword = "EXPLAIN"
	KwFalse       Keyword = "FALSE"
	KwFloat       Keyword = "FLOAT"
	KwFrom        Keyword = "FROM"
	KwGroup       Keyword = "GROUP"
	KwHaving      Keyword = "HAVING"
	KwIndex       Keyword = "INDEX"
	KwInfinity    Keyword = "INFINITY"
	KwInner       Keyword = "INNER"
	KwInsert      Keyword = "INSERT"
	KwInt         Keyword = "INT"
	KwInteger     Keyword = "INTEGER"
	KwInto        Keyword = "INTO"
	KwIs          Keyword = "IS"
	KwJoin        Keyword = "JOIN"
	KwKey         Keyword = "KEY"
	KwLeft        Keyword = "LEFT"
	KwLike        Keyword = "LIKE"
	KwLimit       Keyword = "LIMIT"
	KwNaN         Keyword = "NAN"
	KwNot         Keyword = "NOT"
	KwNull        Keyword = "NULL"
	KwOffset      Keyword = "OFFSET"
	KwOn          Keyword = "ON"
	KwOr          Keyword = "OR"
	KwOrder       Keyword = "ORDER"
	KwOuter       Keyword = "OUTER"
	KwPrimary     Keyword = "PRIMARY"
	KwRight       Keyword = "RIGHT"
	KwRollback    Keyword = "ROLLBACK"
	KwSelect      Keyword = "SELECT"
	KwSet         Keyword = "SET"
	KwString      Keyword = "STRING"
	KwTable       Keyword = "TABLE"
	KwText        Keyword = "TEXT"
	KwTransaction Keyword = "TRANSACTION"
	KwTrue        Keyword = "TRUE"
	KwUnique      Keyword = "UNIQUE"
	KwUpdate      Keyword = "UPDATE"
	KwValues      Keyword = "VALUES"
	KwVarchar     Keyword = "VARCHAR"
	KwWhere       Keyword = "WHERE"
)

var keywords = map[string]Keyword{}

func init() {
	for _, kw := range []Keyword{
		KwAnd, KwAs, KwAsc, KwBegin, KwBool, KwBoolean, KwBy, KwChar, KwCommit,
		KwCreate, KwCross, KwDefault, KwDelete, KwDesc, KwDouble, KwDrop,
		KwExplain, KwFalse, KwFloat, KwFrom, KwGroup, KwHaving, KwIndex,
		KwInfinity, KwInner, KwInsert, KwInt, KwInteger, KwInto, KwIs, KwJoin,
		KwKey, KwLeft, KwLike, KwLimit, KwNaN, KwNot, KwNull, KwOffset, KwOn,
		KwOr, KwOrder, KwOuter, KwPrimary, KwRight, KwRollback, KwSelect,
		KwSet, KwString, KwTable, KwText, KwTransaction, KwTrue, KwUnique,
		KwUpdate, KwValues, KwVarchar, KwWhere,
	} {
		keywords[string(kw)] = kw
	}
}

func keywordFrom(s string) (Keyword, bool) {
	kw, ok := keywords[strings.ToUpper(s)]
	return kw, ok
}

type Token struct {
	Type    TokenType
	Keyword Keyword
	Str     string
	Offset  int
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenKeyword:
		return string(t.Keyword)
	case TokenIdent, TokenNumber, TokenString:
		return t.Str
	case TokenPeriod:
		return "."
	case TokenComma:
		return ","
	case TokenSemicolon:
		return ";"
	case TokenOpenParen:
		return "("
	case TokenCloseParen:
		return ")"
	case TokenEqual:
		return "="
	case TokenNotEqual:
		return "!="
	case TokenLessThan:
		return "<"
	case TokenLessOrEqual:
		return "<="
	case TokenGreaterThan:
		return ">"
	case TokenGreaterOrEqual:
		return ">="
	case TokenLessGreater:
		return "<>"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenAsterisk:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenCaret:
		return "^"
	case TokenExclamation:
		return "!"
	}
	return "?"
}

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
	"testing"

	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, input string) []Token {
	t.Helper()

	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Type == TokenEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

func TestLexerKeywordsAndIdents(t *testing.T) {
	tokens := lexAll(t, "Select * from Number != 123.125 and who is null AS")

	require.Equal(t, TokenKeyword, tokens[0].Type)
	require.Equal(t, KwSelect, tokens[0].Keyword)
	require.Equal(t, TokenAsterisk, tokens[1].Type)
	require.Equal(t, KwFrom, tokens[2].Keyword)

	// identifiers are lowercased, keywords matched case-insensitively
	require.Equal(t, TokenIdent, tokens[3].Type)
	require.Equal(t, "number", tokens[3].Str)

	require.Equal(t, TokenNotEqual, tokens[4].Type)
	require.Equal(t, TokenNumber, tokens[5].Type)
	require.Equal(t, "123.125", tokens[5].Str)
	require.Equal(t, KwAnd, tokens[6].Keyword)
	require.Equal(t, "who", tokens[7].Str)
	require.Equal(t, KwIs, tokens[8].Keyword)
	require.Equal(t, KwNull, tokens[9].Keyword)
	require.Equal(t, KwAs, tokens[10].Keyword)
}

func TestLexerSymbols(t *testing.T) {
	tokens := lexAll(t, ". , ; ( ) = != <> < <= > >= + - * / % ^ !")

	types := []TokenType{
		TokenPeriod, TokenComma, TokenSemicolon, TokenOpenParen, TokenCloseParen,
		TokenEqual, TokenNotEqual, TokenLessGreater, TokenLessThan, TokenLessOrEqual,
		TokenGreaterThan, TokenGreaterOrEqual, TokenPlus, TokenMinus, TokenAsterisk,
		TokenSlash, TokenPercent, TokenCaret, TokenExclamation,
	}
	require.Len(t, tokens, len(types))
	for i, typ := range types {
		require.Equal(t, typ, tokens[i].Type)
	}
}

func TestLexerStrings(t *testing.T) {
	tokens := lexAll(t, `"hello \"world\"\n"`)
	require.Len(t, tokens, 1)
	require.Equal(t, TokenString, tokens[0].Type)
	require.Equal(t, "hello \"world\"\n", tokens[0].Str)
}

func TestLexerBacktickIdent(t *testing.T) {
	tokens := lexAll(t, "`Select`")
	require.Len(t, tokens, 1)
	require.Equal(t, TokenIdent, tokens[0].Type)
	require.Equal(t, "select", tokens[0].Str)
}

func TestLexerOffsets(t *testing.T) {
	tokens := lexAll(t, "a  bb ccc")
	require.Equal(t, 0, tokens[0].Offset)
	require.Equal(t, 3, tokens[1].Offset)
	require.Equal(t, 6, tokens[2].Offset)
}

func TestLexerErrors(t *testing.T) {
	l := NewLexer("select @")
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, KwSelect, tok.Keyword)

	_, err = l.Next()
	require.ErrorIs(t, err, ErrLexing)
	require.Contains(t, err.Error(), "offset 7")

	l = NewLexer(`"unterminated`)
	_, err = l.Next()
	require.ErrorIs(t, err, ErrLexing)
}

package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Token types for the LYA lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenCharacter  // 'a'
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenArrow     // ->

	// Assignment
	TokenAssign      // = or :=
	TokenPlusAssign  // +=
	TokenMinusAssign // -=
	TokenStarAssign  // *=
	TokenSlashAssign // /=
	TokenPercAssign  // %=

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEq      // ==
	TokenNotEq   // !=
	TokenLess    // <
	TokenLessEq  // <=
	TokenGreater // >
	TokenGreatEq // >=
	TokenAnd     // &&
	TokenOr      // ||
	TokenNot     // !

	// Reserved words
	TokenDcl
	TokenSyn
	TokenType_
	TokenProc
	TokenReturns
	TokenEnd
	TokenLoc
	TokenRef
	TokenChars
	TokenArray
	TokenIf
	TokenThen
	TokenElsif
	TokenElse
	TokenFi
	TokenDo
	TokenOd
	TokenFor
	TokenBy
	TokenDown
	TokenTo
	TokenWhile
	TokenReturn
	TokenResult
	TokenTrue
	TokenFalse
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenInteger:     "INTEGER",
	TokenCharacter:   "CHARACTER",
	TokenString:      "STRING",
	TokenIdentifier:  "IDENTIFIER",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenComma:       ",",
	TokenSemicolon:   ";",
	TokenColon:       ":",
	TokenArrow:       "->",
	TokenAssign:      "=",
	TokenPlusAssign:  "+=",
	TokenMinusAssign: "-=",
	TokenStarAssign:  "*=",
	TokenSlashAssign: "/=",
	TokenPercAssign:  "%=",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenEq:          "==",
	TokenNotEq:       "!=",
	TokenLess:        "<",
	TokenLessEq:      "<=",
	TokenGreater:     ">",
	TokenGreatEq:     ">=",
	TokenAnd:         "&&",
	TokenOr:          "||",
	TokenNot:         "!",
	TokenDcl:         "dcl",
	TokenSyn:         "syn",
	TokenType_:       "type",
	TokenProc:        "proc",
	TokenReturns:     "returns",
	TokenEnd:         "end",
	TokenLoc:         "loc",
	TokenRef:         "ref",
	TokenChars:       "chars",
	TokenArray:       "array",
	TokenIf:          "if",
	TokenThen:        "then",
	TokenElsif:       "elsif",
	TokenElse:        "else",
	TokenFi:          "fi",
	TokenDo:          "do",
	TokenOd:          "od",
	TokenFor:         "for",
	TokenBy:          "by",
	TokenDown:        "down",
	TokenTo:          "to",
	TokenWhile:       "while",
	TokenReturn:      "return",
	TokenResult:      "result",
	TokenTrue:        "true",
	TokenFalse:       "false",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types. Keywords are matched
// case-insensitively.
var reservedWords = map[string]TokenType{
	"dcl":     TokenDcl,
	"syn":     TokenSyn,
	"type":    TokenType_,
	"proc":    TokenProc,
	"returns": TokenReturns,
	"end":     TokenEnd,
	"loc":     TokenLoc,
	"ref":     TokenRef,
	"chars":   TokenChars,
	"array":   TokenArray,
	"if":      TokenIf,
	"then":    TokenThen,
	"elsif":   TokenElsif,
	"else":    TokenElse,
	"fi":      TokenFi,
	"do":      TokenDo,
	"od":      TokenOd,
	"for":     TokenFor,
	"by":      TokenBy,
	"down":    TokenDown,
	"to":      TokenTo,
	"while":   TokenWhile,
	"return":  TokenReturn,
	"result":  TokenResult,
	"true":    TokenTrue,
	"false":   TokenFalse,
}

// LookupIdent returns the keyword token type for ident, or TokenIdentifier.
func LookupIdent(ident string) TokenType {
	if tt, ok := reservedWords[strings.ToLower(ident)]; ok {
		return tt
	}
	return TokenIdentifier
}

// IsAssignOp returns true for = and the compound assignment tokens.
func (t TokenType) IsAssignOp() bool {
	return t >= TokenAssign && t <= TokenPercAssign
}

// Keywords returns the reserved words in alphabetical order.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

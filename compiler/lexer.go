package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for LYA source
// ---------------------------------------------------------------------------

// Lexer tokenizes LYA source code.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	col       int  // current column (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if errTok, ok := l.skipWhitespaceAndComments(); !ok {
		return errTok
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		return l.single(TokenLParen, pos)
	case l.ch == ')':
		return l.single(TokenRParen, pos)
	case l.ch == '[':
		return l.single(TokenLBracket, pos)
	case l.ch == ']':
		return l.single(TokenRBracket, pos)
	case l.ch == ',':
		return l.single(TokenComma, pos)
	case l.ch == ';':
		return l.single(TokenSemicolon, pos)

	case l.ch == ':':
		return l.either('=', TokenAssign, TokenColon, pos)
	case l.ch == '=':
		return l.either('=', TokenEq, TokenAssign, pos)
	case l.ch == '+':
		return l.either('=', TokenPlusAssign, TokenPlus, pos)
	case l.ch == '*':
		return l.either('=', TokenStarAssign, TokenStar, pos)
	case l.ch == '/':
		return l.either('=', TokenSlashAssign, TokenSlash, pos)
	case l.ch == '%':
		return l.either('=', TokenPercAssign, TokenPercent, pos)
	case l.ch == '!':
		return l.either('=', TokenNotEq, TokenNot, pos)
	case l.ch == '<':
		return l.either('=', TokenLessEq, TokenLess, pos)
	case l.ch == '>':
		return l.either('=', TokenGreatEq, TokenGreater, pos)

	case l.ch == '-':
		l.readChar()
		switch l.ch {
		case '>':
			l.readChar()
			return Token{Type: TokenArrow, Literal: "->", Pos: pos}
		case '=':
			l.readChar()
			return Token{Type: TokenMinusAssign, Literal: "-=", Pos: pos}
		}
		return Token{Type: TokenMinus, Literal: "-", Pos: pos}

	case l.ch == '&' && l.peekChar() == '&':
		l.readChar()
		l.readChar()
		return Token{Type: TokenAnd, Literal: "&&", Pos: pos}

	case l.ch == '|' && l.peekChar() == '|':
		l.readChar()
		l.readChar()
		return Token{Type: TokenOr, Literal: "||", Pos: pos}

	case l.ch == '"':
		return l.readString(pos)

	case l.ch == '\'':
		return l.readCharacter(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifierOrKeyword(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("illegal character %q", ch), Pos: pos}
	}
}

// single consumes one character and returns a token of type tt.
func (l *Lexer) single(tt TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: tt, Literal: lit, Pos: pos}
}

// either returns two if the current character is followed by next,
// otherwise one.
func (l *Lexer) either(next rune, two, one TokenType, pos Position) Token {
	first := l.ch
	l.readChar()
	if l.ch == next {
		l.readChar()
		return Token{Type: two, Literal: string(first) + string(next), Pos: pos}
	}
	return Token{Type: one, Literal: string(first), Pos: pos}
}

// skipWhitespaceAndComments skips whitespace, // line comments and
// /* block */ comments. It reports an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return Token{Type: TokenError, Literal: "unterminated comment", Pos: pos}, false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue
		}

		return Token{}, true
	}
}

// readString reads a "..." string literal. Escapes: \n \t \\ \".
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case 0, '\n':
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		case '\\':
			l.readChar()
			r, ok := unescape(l.ch)
			if !ok {
				return Token{Type: TokenError, Literal: fmt.Sprintf("bad escape code \\%c", l.ch), Pos: pos}
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
	l.readChar() // consume closing "

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readCharacter reads a 'c' character literal.
func (l *Lexer) readCharacter(pos Position) Token {
	l.readChar() // consume opening '

	ch := l.ch
	switch ch {
	case 0, '\n':
		return Token{Type: TokenError, Literal: "unterminated character literal", Pos: pos}
	case '\\':
		l.readChar()
		r, ok := unescape(l.ch)
		if !ok {
			return Token{Type: TokenError, Literal: fmt.Sprintf("bad escape code \\%c", l.ch), Pos: pos}
		}
		ch = r
	}
	l.readChar()

	if l.ch != '\'' {
		return Token{Type: TokenError, Literal: "unterminated character literal", Pos: pos}
	}
	l.readChar()

	return Token{Type: TokenCharacter, Literal: string(ch), Pos: pos}
}

func unescape(r rune) (rune, bool) {
	switch r {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case '\\', '"', '\'':
		return r, true
	case '0':
		return 0, true
	}
	return 0, false
}

// readNumber reads an integer literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier or keyword.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	literal := l.input[start:l.pos]
	return Token{Type: LookupIdent(literal), Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}

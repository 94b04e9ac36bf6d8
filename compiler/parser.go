package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for LYA
// ---------------------------------------------------------------------------

// Parser parses LYA source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []string
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token. Lexical errors are recorded and
// skipped.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.peekToken.Type == TokenError {
		p.errors = append(p.errors, fmt.Sprintf("line %d: %s", p.peekToken.Pos.Line, p.peekToken.Literal))
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, describe(p.curToken))
	return false
}

// errorf records a parse error.
func (p *Parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf("line %d: %s", p.curToken.Pos.Line, fmt.Sprintf(format, args...))
	p.errors = append(p.errors, msg)
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string {
	return p.errors
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenInteger:
		return fmt.Sprintf("%q", tok.Literal)
	}
	return tok.Type.String()
}

// span returns a span from start to the current token.
func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.curToken.Pos}
}

// synchronize skips tokens until just past the next semicolon.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses a whole compilation unit.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Pos
	prog := &Program{}
	prog.Stmts = p.parseStatements(TokenEOF)
	prog.SpanVal = p.span(start)
	return prog
}

// Parse parses src and returns the program together with any parse errors.
func Parse(src string) (*Program, []string) {
	p := NewParser(src)
	prog := p.ParseProgram()
	return prog, p.Errors()
}

// parseStatements parses statements until one of the terminators.
func (p *Parser) parseStatements(terminators ...TokenType) []Stmt {
	var stmts []Stmt
	for {
		for _, t := range terminators {
			if p.curTokenIs(t) {
				return stmts
			}
		}
		if p.curTokenIs(TokenEOF) {
			p.errorf("unexpected end of input")
			return stmts
		}
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			continue
		}

		errs := len(p.errors)
		stmt := p.ParseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		} else if len(p.errors) > errs {
			p.synchronize()
		}
	}
}

// ParseStatement parses a single statement including its terminating
// semicolon. The semicolon is optional after fi, od and end.
func (p *Parser) ParseStatement() Stmt {
	var stmt Stmt
	blockEnded := false

	switch {
	case p.curTokenIs(TokenDcl):
		if d := p.parseDeclStmt(); d != nil {
			stmt = d
		}
	case p.curTokenIs(TokenSyn):
		if s := p.parseSynStmt(); s != nil {
			stmt = s
		}
	case p.curTokenIs(TokenType_):
		if t := p.parseTypeStmt(); t != nil {
			stmt = t
		}
	case p.curTokenIs(TokenIdentifier) && p.peekTokenIs(TokenColon):
		if proc := p.parseProcStmt(); proc != nil {
			stmt = proc
		}
		blockEnded = true
	default:
		stmt = p.parseAction()
		switch stmt.(type) {
		case *IfAction, *DoAction:
			blockEnded = true
		}
	}
	if stmt == nil {
		return nil
	}

	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	} else if !blockEnded {
		p.errorf("expected ;, got %s", describe(p.curToken))
	}
	return stmt
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// parseIdentList parses `a {, b}`.
func (p *Parser) parseIdentList() []*Ident {
	var ids []*Ident
	for {
		id := p.parseIdent()
		if id == nil {
			return ids
		}
		ids = append(ids, id)
		if !p.curTokenIs(TokenComma) || !p.peekTokenIs(TokenIdentifier) {
			return ids
		}
		p.nextToken()
	}
}

func (p *Parser) parseIdent() *Ident {
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected identifier, got %s", describe(p.curToken))
		return nil
	}
	id := &Ident{
		SpanVal: Span{Start: p.curToken.Pos, End: p.peekToken.Pos},
		Name:    p.curToken.Literal,
	}
	p.nextToken()
	return id
}

func (p *Parser) parseDeclStmt() *DeclStmt {
	start := p.curToken.Pos
	p.nextToken() // consume dcl

	stmt := &DeclStmt{}
	for {
		d := p.parseDeclaration()
		if d == nil {
			return nil
		}
		stmt.Decls = append(stmt.Decls, d)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	stmt.SpanVal = p.span(start)
	return stmt
}

func (p *Parser) parseDeclaration() *Declaration {
	start := p.curToken.Pos
	names := p.parseIdentList()
	if len(names) == 0 {
		return nil
	}
	mode := p.parseMode()
	if mode == nil {
		return nil
	}
	d := &Declaration{Names: names, Mode: mode}
	if p.curTokenIs(TokenLoc) {
		d.Loc = true
		p.nextToken()
	}
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		d.Init = p.ParseExpression()
		if d.Init == nil {
			return nil
		}
	}
	d.SpanVal = p.span(start)
	return d
}

func (p *Parser) parseSynStmt() *SynStmt {
	start := p.curToken.Pos
	p.nextToken() // consume syn

	stmt := &SynStmt{}
	for {
		s := p.parseSynonymDef()
		if s == nil {
			return nil
		}
		stmt.Syns = append(stmt.Syns, s)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	stmt.SpanVal = p.span(start)
	return stmt
}

func (p *Parser) parseSynonymDef() *SynonymDef {
	start := p.curToken.Pos
	names := p.parseIdentList()
	if len(names) == 0 {
		return nil
	}
	s := &SynonymDef{Names: names}
	if !p.curTokenIs(TokenAssign) {
		s.Mode = p.parseMode()
		if s.Mode == nil {
			return nil
		}
	}
	if !p.expect(TokenAssign) {
		return nil
	}
	s.Value = p.ParseExpression()
	if s.Value == nil {
		return nil
	}
	s.SpanVal = p.span(start)
	return s
}

func (p *Parser) parseTypeStmt() *TypeStmt {
	start := p.curToken.Pos
	p.nextToken() // consume type

	stmt := &TypeStmt{}
	for {
		defStart := p.curToken.Pos
		names := p.parseIdentList()
		if len(names) == 0 || !p.expect(TokenAssign) {
			return nil
		}
		mode := p.parseMode()
		if mode == nil {
			return nil
		}
		stmt.Defs = append(stmt.Defs, &ModeDef{SpanVal: p.span(defStart), Names: names, Mode: mode})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	stmt.SpanVal = p.span(start)
	return stmt
}

// parseProcStmt parses `name: proc(params) [returns(mode [loc])]; body end`.
func (p *Parser) parseProcStmt() *ProcStmt {
	start := p.curToken.Pos
	proc := &ProcStmt{Name: p.parseIdent()}
	p.nextToken() // consume :

	if !p.expect(TokenProc) || !p.expect(TokenLParen) {
		return nil
	}
	for !p.curTokenIs(TokenRParen) {
		fp := p.parseFormalParam()
		if fp == nil {
			return nil
		}
		proc.Params = append(proc.Params, fp)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.expect(TokenRParen) {
		return nil
	}

	if p.curTokenIs(TokenReturns) {
		resStart := p.curToken.Pos
		p.nextToken()
		if !p.expect(TokenLParen) {
			return nil
		}
		mode := p.parseMode()
		if mode == nil {
			return nil
		}
		res := &ResultSpec{Mode: mode}
		if p.curTokenIs(TokenLoc) {
			res.Loc = true
			p.nextToken()
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		res.SpanVal = p.span(resStart)
		proc.Result = res
	}
	if !p.expect(TokenSemicolon) {
		return nil
	}

	proc.Body = p.parseStatements(TokenEnd)
	if !p.expect(TokenEnd) {
		return nil
	}
	proc.SpanVal = p.span(start)
	return proc
}

func (p *Parser) parseFormalParam() *FormalParam {
	start := p.curToken.Pos
	names := p.parseIdentList()
	if len(names) == 0 {
		return nil
	}
	mode := p.parseMode()
	if mode == nil {
		return nil
	}
	fp := &FormalParam{Names: names, Mode: mode}
	if p.curTokenIs(TokenLoc) {
		fp.Loc = true
		p.nextToken()
	}
	fp.SpanVal = p.span(start)
	return fp
}

// ---------------------------------------------------------------------------
// Modes
// ---------------------------------------------------------------------------

// parseMode parses a mode expression.
func (p *Parser) parseMode() ModeExpr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenRef:
		p.nextToken()
		elem := p.parseMode()
		if elem == nil {
			return nil
		}
		return &RefMode{SpanVal: p.span(start), Elem: elem}

	case TokenChars:
		p.nextToken()
		if !p.expect(TokenLBracket) {
			return nil
		}
		n := p.ParseExpression()
		if n == nil || !p.expect(TokenRBracket) {
			return nil
		}
		return &CharsMode{SpanVal: p.span(start), Len: n}

	case TokenArray:
		p.nextToken()
		if !p.expect(TokenLBracket) {
			return nil
		}
		arr := &ArrayMode{}
		for {
			idx := p.parseIndexMode()
			if idx == nil {
				return nil
			}
			arr.Indexes = append(arr.Indexes, idx)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		if !p.expect(TokenRBracket) {
			return nil
		}
		arr.Elem = p.parseMode()
		if arr.Elem == nil {
			return nil
		}
		arr.SpanVal = p.span(start)
		return arr

	case TokenIdentifier:
		return p.parseNamedMode()
	}

	p.errorf("expected mode, got %s", describe(p.curToken))
	return nil
}

// parseNamedMode parses `name` or `name(lo:hi)`.
func (p *Parser) parseNamedMode() ModeExpr {
	start := p.curToken.Pos
	id := p.parseIdent()
	if id == nil {
		return nil
	}
	name := &ModeName{SpanVal: id.SpanVal, Name: id}
	if !p.curTokenIs(TokenLParen) {
		return name
	}
	p.nextToken()
	lo, hi := p.parseRangeBounds()
	if lo == nil || !p.expect(TokenRParen) {
		return nil
	}
	return &RangeMode{SpanVal: p.span(start), Base: name, Lo: lo, Hi: hi}
}

// parseIndexMode parses one array index: `lo:hi`, `name(lo:hi)` or `name`.
func (p *Parser) parseIndexMode() ModeExpr {
	if p.curTokenIs(TokenIdentifier) && !p.peekTokenIs(TokenColon) {
		switch p.peekToken.Type {
		case TokenLParen, TokenComma, TokenRBracket:
			return p.parseNamedMode()
		}
	}
	start := p.curToken.Pos
	lo, hi := p.parseRangeBounds()
	if lo == nil {
		return nil
	}
	return &RangeMode{SpanVal: p.span(start), Lo: lo, Hi: hi}
}

func (p *Parser) parseRangeBounds() (Expr, Expr) {
	lo := p.ParseExpression()
	if lo == nil || !p.expect(TokenColon) {
		return nil, nil
	}
	hi := p.ParseExpression()
	if hi == nil {
		return nil, nil
	}
	return lo, hi
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

func (p *Parser) parseAction() Stmt {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenIf:
		if act := p.parseIfAction(); act != nil {
			return act
		}
		return nil
	case TokenDo:
		if act := p.parseDoAction(); act != nil {
			return act
		}
		return nil
	case TokenFor, TokenWhile:
		if act := p.parseShortLoop(); act != nil {
			return act
		}
		return nil
	case TokenReturn:
		p.nextToken()
		ret := &ReturnAction{}
		if !p.curTokenIs(TokenSemicolon) && !p.atBlockEnd() {
			ret.Value = p.ParseExpression()
			if ret.Value == nil {
				return nil
			}
		}
		ret.SpanVal = p.span(start)
		return ret
	case TokenResult:
		p.nextToken()
		v := p.ParseExpression()
		if v == nil {
			return nil
		}
		return &ResultAction{SpanVal: p.span(start), Value: v}
	}

	x := p.ParseExpression()
	if x == nil {
		return nil
	}

	if p.curToken.Type.IsAssignOp() {
		op := ""
		if !p.curTokenIs(TokenAssign) {
			lit := p.curToken.Literal
			op = lit[:len(lit)-1]
		}
		p.nextToken()
		v := p.ParseExpression()
		if v == nil {
			return nil
		}
		return &AssignAction{SpanVal: p.span(start), Target: x, Op: op, Value: v}
	}

	if call, ok := x.(*CallExpr); ok {
		return &CallAction{SpanVal: call.SpanVal, Call: call}
	}

	p.errorf("expected action, got expression")
	return nil
}

func (p *Parser) atBlockEnd() bool {
	switch p.curToken.Type {
	case TokenFi, TokenOd, TokenEnd, TokenElse, TokenElsif, TokenEOF:
		return true
	}
	return false
}

// parseIfAction parses `if c then ... {elsif c then ...} [else ...] fi`.
func (p *Parser) parseIfAction() *IfAction {
	start := p.curToken.Pos
	act := &IfAction{}

	for p.curTokenIs(TokenIf) || p.curTokenIs(TokenElsif) {
		brStart := p.curToken.Pos
		p.nextToken()
		cond := p.ParseExpression()
		if cond == nil || !p.expect(TokenThen) {
			return nil
		}
		body := p.parseStatements(TokenElsif, TokenElse, TokenFi)
		act.Branches = append(act.Branches, &CondBranch{SpanVal: p.span(brStart), Cond: cond, Body: body})
	}

	if p.curTokenIs(TokenElse) {
		p.nextToken()
		act.Else = p.parseStatements(TokenFi)
		if act.Else == nil {
			act.Else = []Stmt{}
		}
	}
	if !p.expect(TokenFi) {
		return nil
	}
	act.SpanVal = p.span(start)
	return act
}

// parseDoAction parses `do [for ...] [while c]; body od`.
func (p *Parser) parseDoAction() *DoAction {
	start := p.curToken.Pos
	p.nextToken() // consume do

	act := &DoAction{}
	if p.curTokenIs(TokenFor) {
		act.For = p.parseForControl()
		if act.For == nil {
			return nil
		}
	}
	if p.curTokenIs(TokenWhile) {
		p.nextToken()
		act.While = p.ParseExpression()
		if act.While == nil {
			return nil
		}
	}
	if act.For != nil || act.While != nil {
		if !p.expect(TokenSemicolon) {
			return nil
		}
	}

	act.Body = p.parseStatements(TokenOd)
	if !p.expect(TokenOd) {
		return nil
	}
	act.SpanVal = p.span(start)
	return act
}

// parseShortLoop parses `for ... [while c] do body od` and
// `while c do body od`.
func (p *Parser) parseShortLoop() *DoAction {
	start := p.curToken.Pos
	act := &DoAction{}

	if p.curTokenIs(TokenFor) {
		act.For = p.parseForControl()
		if act.For == nil {
			return nil
		}
	}
	if p.curTokenIs(TokenWhile) {
		p.nextToken()
		act.While = p.ParseExpression()
		if act.While == nil {
			return nil
		}
	}
	if !p.expect(TokenDo) {
		return nil
	}
	act.Body = p.parseStatements(TokenOd)
	if !p.expect(TokenOd) {
		return nil
	}
	act.SpanVal = p.span(start)
	return act
}

// parseForControl parses `for i = a [by s] [down] to b`.
func (p *Parser) parseForControl() *ForControl {
	start := p.curToken.Pos
	p.nextToken() // consume for

	fc := &ForControl{Counter: p.parseIdent()}
	if fc.Counter == nil || !p.expect(TokenAssign) {
		return nil
	}
	if fc.Start = p.ParseExpression(); fc.Start == nil {
		return nil
	}
	if p.curTokenIs(TokenBy) {
		p.nextToken()
		if fc.Step = p.ParseExpression(); fc.Step == nil {
			return nil
		}
	}
	if p.curTokenIs(TokenDown) {
		fc.Down = true
		p.nextToken()
	}
	if !p.expect(TokenTo) {
		return nil
	}
	if fc.End = p.ParseExpression(); fc.End == nil {
		return nil
	}
	fc.SpanVal = p.span(start)
	return fc
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// binaryLevels lists binary operators from lowest to highest precedence.
var binaryLevels = [][]TokenType{
	{TokenOr},
	{TokenAnd},
	{TokenEq, TokenNotEq},
	{TokenLess, TokenLessEq, TokenGreater, TokenGreatEq},
	{TokenPlus, TokenMinus},
	{TokenStar, TokenSlash, TokenPercent},
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(level int) Expr {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	start := p.curToken.Pos
	left := p.parseBinary(level + 1)
	if left == nil {
		return nil
	}
	for p.curTokenIn(binaryLevels[level]) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseBinary(level + 1)
		if right == nil {
			return nil
		}
		left = &BinaryExpr{SpanVal: p.span(start), Op: op, X: left, Y: right}
	}
	return left
}

func (p *Parser) curTokenIn(types []TokenType) bool {
	for _, t := range types {
		if p.curTokenIs(t) {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenMinus, TokenNot:
		op := p.curToken.Literal
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &UnaryExpr{SpanVal: p.span(start), Op: op, X: x}
	case TokenArrow:
		p.nextToken()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &RefExpr{SpanVal: p.span(start), X: x}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	start := p.curToken.Pos
	x := p.parsePrimary()
	if x == nil {
		return nil
	}
	for {
		switch p.curToken.Type {
		case TokenLBracket:
			p.nextToken()
			idx := &IndexExpr{X: x}
			for {
				e := p.ParseExpression()
				if e == nil {
					return nil
				}
				idx.Indexes = append(idx.Indexes, e)
				if !p.curTokenIs(TokenComma) {
					break
				}
				p.nextToken()
			}
			if !p.expect(TokenRBracket) {
				return nil
			}
			idx.SpanVal = p.span(start)
			x = idx
		case TokenArrow:
			p.nextToken()
			x = &DerefExpr{SpanVal: p.span(start), X: x}
		default:
			return x
		}
	}
}

func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos
	tok := p.curToken

	switch tok.Type {
	case TokenInteger:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf("integer literal %s out of range", tok.Literal)
			return nil
		}
		p.nextToken()
		return &IntLiteral{SpanVal: p.span(start), Value: n}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: p.span(start), Value: tok.Type == TokenTrue}

	case TokenCharacter:
		p.nextToken()
		r := []rune(tok.Literal)
		return &CharLiteral{SpanVal: p.span(start), Value: r[0]}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: p.span(start), Value: tok.Literal}

	case TokenIdentifier:
		id := p.parseIdent()
		if !p.curTokenIs(TokenLParen) {
			return id
		}
		p.nextToken()
		call := &CallExpr{Callee: id}
		for !p.curTokenIs(TokenRParen) {
			arg := p.ParseExpression()
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		call.SpanVal = p.span(start)
		return call

	case TokenLParen:
		p.nextToken()
		x := p.ParseExpression()
		if x == nil || !p.expect(TokenRParen) {
			return nil
		}
		return x

	case TokenIf:
		return p.parseCondExpr()
	}

	p.errorf("unexpected %s", describe(tok))
	return nil
}

// parseCondExpr parses `if c then a {elsif c then b} else z fi`.
func (p *Parser) parseCondExpr() Expr {
	start := p.curToken.Pos
	ce := &CondExpr{}
	for p.curTokenIs(TokenIf) || p.curTokenIs(TokenElsif) {
		brStart := p.curToken.Pos
		p.nextToken()
		cond := p.ParseExpression()
		if cond == nil || !p.expect(TokenThen) {
			return nil
		}
		v := p.ParseExpression()
		if v == nil {
			return nil
		}
		ce.Branches = append(ce.Branches, &CondValue{SpanVal: p.span(brStart), Cond: cond, Value: v})
	}
	if !p.expect(TokenElse) {
		return nil
	}
	if ce.Else = p.ParseExpression(); ce.Else == nil {
		return nil
	}
	if !p.expect(TokenFi) {
		return nil
	}
	ce.SpanVal = p.span(start)
	return ce
}

package compiler

import "fmt"

// IssueKind classifies a semantic diagnostic.
type IssueKind int

const (
	UndeclaredIdentifier IssueKind = iota
	Redeclaration
	TypeMismatch
	InvalidOperator
	InvalidType
	CallingNonCallable
	ArgumentCountMismatch
	NonConstantExpression
)

var issueKindNames = map[IssueKind]string{
	UndeclaredIdentifier:  "undeclared identifier",
	Redeclaration:         "redeclaration",
	TypeMismatch:          "type mismatch",
	InvalidOperator:       "invalid operator",
	InvalidType:           "invalid type",
	CallingNonCallable:    "calling non-callable",
	ArgumentCountMismatch: "argument count mismatch",
	NonConstantExpression: "non-constant expression",
}

func (k IssueKind) String() string {
	if s, ok := issueKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("issue(%d)", int(k))
}

// MarshalText renders the kind for YAML and JSON reports.
func (k IssueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Issue is one semantic diagnostic. Issues are values: validation
// collects them and keeps going.
type Issue struct {
	Kind    IssueKind `yaml:"kind"`
	Message string    `yaml:"message"`
	Line    int       `yaml:"line"`
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s: %s", i.Line, i.Kind, i.Message)
}

func newIssue(kind IssueKind, n Node, format string, args ...interface{}) Issue {
	line := 0
	if n != nil {
		line = Line(n)
	}
	return Issue{Kind: kind, Message: fmt.Sprintf(format, args...), Line: line}
}

func undeclared(id *Ident) Issue {
	return newIssue(UndeclaredIdentifier, id, "%s is not declared", id.Name)
}

func redeclared(id *Ident, prev *Symbol) Issue {
	if prev.Line == 0 {
		return newIssue(Redeclaration, id, "%s redeclares a builtin", id.Name)
	}
	return newIssue(Redeclaration, id, "%s already declared on line %d", id.Name, prev.Line)
}

func mismatch(n Node, expected, received *ExprType) Issue {
	return newIssue(TypeMismatch, n, "expected %s, received %s", expected, received)
}

func badOperator(n Node, op string, t *ExprType) Issue {
	return newIssue(InvalidOperator, n, "operator %s is not defined on %s", op, t)
}

func invalidType(n Node, format string, args ...interface{}) Issue {
	return newIssue(InvalidType, n, format, args...)
}

func notCallable(id *Ident, sym *Symbol) Issue {
	return newIssue(CallingNonCallable, id, "%s is a %s, not a procedure", id.Name, sym.Category)
}

func arityMismatch(call *CallExpr, want int) Issue {
	return newIssue(ArgumentCountMismatch, call, "%s takes %d argument(s), got %d", call.Callee.Name, want, len(call.Args))
}

func nonConstant(n Node) Issue {
	return newIssue(NonConstantExpression, n, "expression is not constant")
}

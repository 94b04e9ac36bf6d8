package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/lya/pkg/bytecode"
)

// Pipeline errors. Compile wraps one of these; the details are in the
// returned Compilation.
var (
	ErrParse    = errors.New("parse errors")
	ErrInvalid  = errors.New("semantic errors")
	ErrGenerate = errors.New("code generation errors")
)

// Compilation is everything one run of the pipeline produced. Fields
// after the failing stage are nil.
type Compilation struct {
	Context *Context
	AST     *Program

	ParseErrors []string
	Issues      []Issue

	Plan    *LabelPlan
	Info    *Info
	Program *bytecode.Program
}

// Valid reports whether the source parsed and validated cleanly.
func (c *Compilation) Valid() bool {
	return c.AST != nil && len(c.ParseErrors) == 0 && len(c.Issues) == 0
}

// Compile parses, validates and generates src in a fresh context.
func Compile(src string) (*Compilation, error) {
	return CompileWithContext(NewContext(), src)
}

// CompileWithContext runs the pipeline in ctx:
// parse, reserve labels, validate, generate.
func CompileWithContext(ctx *Context, src string) (*Compilation, error) {
	c := &Compilation{Context: ctx}

	prog, errs := Parse(src)
	c.AST = prog
	c.ParseErrors = errs
	if len(errs) > 0 {
		log.Debugf("compilation %s: %d parse error(s)", ctx.ID, len(errs))
		return c, fmt.Errorf("%w: %s", ErrParse, strings.Join(errs, "; "))
	}

	c.Plan = ReserveLabels(ctx, prog)

	v := NewValidator(ctx)
	valid := v.Validate(prog)
	c.Info = v.Info()
	c.Issues = v.Issues()
	if !valid {
		log.Debugf("compilation %s: %d issue(s)", ctx.ID, len(c.Issues))
		return c, fmt.Errorf("%w: %s", ErrInvalid, joinIssues(c.Issues))
	}

	g := NewGenerator(c.Info, c.Plan)
	code := g.Generate(prog)
	if errs := g.Errors(); len(errs) > 0 {
		return c, fmt.Errorf("%w: %s", ErrGenerate, strings.Join(errs, "; "))
	}
	if err := code.CheckLabels(); err != nil {
		return c, fmt.Errorf("%w: %w", ErrGenerate, err)
	}
	c.Program = code
	log.Debugf("compilation %s: %d instruction(s), %d label(s)", ctx.ID, code.Len(), c.Plan.Total)
	return c, nil
}

func joinIssues(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, is := range issues {
		parts[i] = is.String()
	}
	return strings.Join(parts, "; ")
}

package compiler

// LabelPlan records the first label number reserved for each construct
// with internal control flow. A construct owns LabelBudget(n)
// consecutive labels starting at First(n).
type LabelPlan struct {
	first map[Node]int
	Total int
}

// First returns the first label reserved for n. It panics if n reserved
// none, which means the plan was built for a different tree.
func (p *LabelPlan) First(n Node) int {
	l, ok := p.first[n]
	if !ok {
		panic("compiler: no labels reserved for node")
	}
	return l
}

// Has reports whether n reserved labels.
func (p *LabelPlan) Has(n Node) bool {
	_, ok := p.first[n]
	return ok
}

// LabelBudget returns the number of labels n needs:
//
//	if chain / conditional expression   one per branch, plus the shared exit
//	do loop                             start (or step), compare, end
//	procedure                           entry, return, after body
func LabelBudget(n Node) int {
	switch n := n.(type) {
	case *IfAction:
		return len(n.Branches) + 1
	case *CondExpr:
		return len(n.Branches) + 1
	case *DoAction, *ProcStmt:
		return 3
	}
	return 0
}

// ReserveLabels walks the tree in source order and reserves every
// construct's labels from ctx. It depends only on the shape of the tree
// and must run once before generation.
func ReserveLabels(ctx *Context, root Node) *LabelPlan {
	plan := &LabelPlan{first: make(map[Node]int)}
	start := ctx.LabelCount
	Inspect(root, func(n Node) bool {
		if k := LabelBudget(n); k > 0 {
			plan.first[n] = ctx.ReserveLabels(k)
		}
		return true
	})
	plan.Total = ctx.LabelCount - start
	return plan
}

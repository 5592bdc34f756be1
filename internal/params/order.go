package params

import (
	"slices"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// newBindings returns the globals that stmt bound for the first time.
// Starlark hands globals back as an unordered map, so names bound by the
// same statement are ordered by where they appear in its syntax tree.
// A predeclared name counts once the cell rebinds it.
func newBindings(stmt syntax.Stmt, globals, predeclared starlark.StringDict, seen map[string]bool) []string {
	var fresh []string
	for name, v := range globals {
		if seen[name] {
			continue
		}
		if pv, ok := predeclared[name]; ok && pv == v {
			continue
		}
		fresh = append(fresh, name)
	}
	if len(fresh) < 2 {
		return fresh
	}

	static := bindingOrder([]syntax.Stmt{stmt})
	rank := func(name string) int {
		if i := slices.Index(static, name); i >= 0 {
			return i
		}
		return len(static)
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		ri, rj := rank(fresh[i]), rank(fresh[j])
		if ri != rj {
			return ri < rj
		}
		return fresh[i] < fresh[j]
	})
	return fresh
}

// bindingOrder lists the top-level names bound by stmts in the order they
// first appear in the source.
func bindingOrder(stmts []syntax.Stmt) []string {
	var (
		order []string
		seen  = make(map[string]bool)
	)
	bind := func(name string) {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	walkStmts(stmts, bind)
	return order
}

func walkStmts(stmts []syntax.Stmt, bind func(string)) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *syntax.AssignStmt:
			bindTargets(s.LHS, bind)
		case *syntax.DefStmt:
			bind(s.Name.Name)
		case *syntax.LoadStmt:
			for _, id := range s.To {
				bind(id.Name)
			}
		case *syntax.ForStmt:
			bindTargets(s.Vars, bind)
			walkStmts(s.Body, bind)
		case *syntax.WhileStmt:
			walkStmts(s.Body, bind)
		case *syntax.IfStmt:
			walkStmts(s.True, bind)
			walkStmts(s.False, bind)
		}
	}
}

// bindTargets handles plain names and tuple/list unpacking. Index and
// attribute targets mutate existing values and bind nothing.
func bindTargets(e syntax.Expr, bind func(string)) {
	switch x := e.(type) {
	case *syntax.Ident:
		bind(x.Name)
	case *syntax.ParenExpr:
		bindTargets(x.X, bind)
	case *syntax.TupleExpr:
		for _, elem := range x.List {
			bindTargets(elem, bind)
		}
	case *syntax.ListExpr:
		for _, elem := range x.List {
			bindTargets(elem, bind)
		}
	}
}

package jsast

// Handlers maps a node kind to the callback run for every node of that kind.
type Handlers map[Kind]func(Node)

// Visit calls the matching handler for every node of t in pre-order: the
// prologue first, then the body. Parts of synthetic statements and edits are
// visited after their parent.
func Visit(t *Tree, h Handlers) {
	for _, n := range t.Prologue {
		visit(n, h)
	}
	for _, n := range t.Nodes {
		visit(n, h)
	}
}

func visit(n Node, h Handlers) {
	if fn := h[n.Kind()]; fn != nil {
		fn(n)
	}
	for _, part := range parts(n) {
		visit(part, h)
	}
}

func parts(n Node) []Node {
	switch v := n.(type) {
	case *Stmt:
		return v.Parts
	case *Splice:
		return v.Parts
	case *Insertion:
		return v.Parts
	}
	return nil
}

// RequireCalls returns every require call of t in visit order.
func RequireCalls(t *Tree) []*RequireCall {
	var calls []*RequireCall
	Visit(t, Handlers{
		KindRequire: func(n Node) { calls = append(calls, n.(*RequireCall)) },
	})
	return calls
}

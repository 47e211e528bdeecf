package tree

import (
	"log/slog"

	"github.com/Shopify/go-lua"
)

// RuleEvaluator runs per-node unlock rules. A rule is a Lua expression
// evaluated against the current tree; when it returns true the node
// unlocks. Rule errors are never fatal: a rule that fails to parse or run
// evaluates to false and is logged at debug level only.
//
// The environment exposed to a rule:
//
//	done(id)        number of completed objectives of the node
//	total(id)       number of objectives of the node
//	unlocked(id)    whether the node is unlocked
//	difficulty(id)  the node's difficulty score
//	self            the id of the node whose rule is running
type RuleEvaluator struct {
	tree  *Tree
	state *lua.State
}

// NewRuleEvaluator builds an evaluator bound to the tree. The Lua state is
// created once and reused across evaluations.
func NewRuleEvaluator(t *Tree) *RuleEvaluator {
	e := &RuleEvaluator{tree: t, state: lua.NewState()}
	l := e.state
	lua.OpenLibraries(l)

	l.Register("done", func(l *lua.State) int {
		id := lua.CheckString(l, 1)
		done, _ := e.tree.Progress(id)
		l.PushInteger(done)
		return 1
	})
	l.Register("total", func(l *lua.State) int {
		id := lua.CheckString(l, 1)
		_, total := e.tree.Progress(id)
		l.PushInteger(total)
		return 1
	})
	l.Register("unlocked", func(l *lua.State) int {
		id := lua.CheckString(l, 1)
		n := e.tree.FindNode(id)
		l.PushBoolean(n != nil && n.Unlocked)
		return 1
	})
	l.Register("difficulty", func(l *lua.State) int {
		id := lua.CheckString(l, 1)
		n := e.tree.FindNode(id)
		if n == nil {
			l.PushInteger(0)
		} else {
			l.PushInteger(n.Difficulty)
		}
		return 1
	})
	return e
}

// Eval runs the node's rule and reports whether it evaluated to true.
// Nodes without a rule evaluate to false.
func (e *RuleEvaluator) Eval(n *Node) bool {
	if n == nil || n.Rule == "" {
		return false
	}
	l := e.state
	l.PushString(n.ID)
	l.SetGlobal("self")

	if err := lua.DoString(l, "return ("+n.Rule+")"); err != nil {
		slog.Debug("unlock rule failed", "node", n.ID, "err", err)
		return false
	}
	result := l.ToBoolean(-1)
	l.Pop(1)
	return result
}

// ApplyRules evaluates the rules of every locked node and unlocks those
// whose rule returns true. It repeats until a pass unlocks nothing, so a
// rule chained on another rule-unlocked node settles in one call. Returns
// the ids unlocked, in unlock order.
func (e *RuleEvaluator) ApplyRules() []string {
	var unlocked []string
	for {
		changed := false
		for _, n := range e.tree.Nodes {
			if n.Unlocked || n.Rule == "" {
				continue
			}
			if e.Eval(n) {
				n.Unlocked = true
				unlocked = append(unlocked, n.ID)
				changed = true
			}
		}
		if !changed {
			return unlocked
		}
	}
}

package survey

import (
	"sort"

	"cityforall/internal/model"
)

// Navigator answers pure, stateless queries over a loaded graph:
// coordinate lookups and successor computation. Identical inputs always
// yield identical outputs.
type Navigator struct {
	graph *Graph
}

func NewNavigator(g *Graph) *Navigator {
	return &Navigator{graph: g}
}

// Question resolves a question by coordinates.
func (n *Navigator) Question(module string, id int) (*model.Question, bool) {
	mod, ok := n.graph.Module(module)
	if !ok {
		return nil, false
	}
	q, ok := mod.Questions[id]
	return q, ok
}

// Level resolves a level by coordinates, bounds-checked against the
// question's level list.
func (n *Navigator) Level(module string, id, index int) (*model.Level, bool) {
	q, ok := n.Question(module, id)
	if !ok || index < 0 || index >= len(q.Levels) {
		return nil, false
	}
	return &q.Levels[index], true
}

// OptionsForLevel returns the ordered option list of a level, resolving
// a shared-scale reference to the concrete array when the level stores
// a name instead of literal options.
func (n *Navigator) OptionsForLevel(lvl *model.Level) []string {
	if lvl.OptionsRef != "" {
		if scale, ok := n.graph.Scale(lvl.OptionsRef); ok {
			return scale
		}
		return nil
	}
	return lvl.Options
}

// Next computes the successor coordinate for a question just answered
// with the given value. A routing rule whose key matches the answer
// (exact literal for scalars, containment for lists) wins; otherwise
// the graph's default linear order applies. ok=false means end of
// survey. Rules are consulted only at question-level transitions, never
// between levels.
func (n *Navigator) Next(module string, id int, answer model.Value) (model.Target, bool) {
	q, ok := n.Question(module, id)
	if ok && len(q.Routing) > 0 {
		if target, hit := matchRule(q.Routing, answer); hit {
			return target, true
		}
	}
	return n.NextLinear(module, id)
}

// NextLinear returns the default-order successor: the next question in
// the module, else the first question of the next module, else the
// terminal sentinel.
func (n *Navigator) NextLinear(module string, id int) (model.Target, bool) {
	mod, ok := n.graph.Module(module)
	if !ok {
		return model.Target{}, false
	}
	for i, qid := range mod.Order {
		if qid != id {
			continue
		}
		if i+1 < len(mod.Order) {
			return model.Target{Module: module, QuestionID: mod.Order[i+1]}, true
		}
		return n.firstOfNextModule(module)
	}
	return model.Target{}, false
}

func (n *Navigator) firstOfNextModule(module string) (model.Target, bool) {
	order := n.graph.ModuleOrder()
	for i, name := range order {
		if name != module {
			continue
		}
		for _, next := range order[i+1:] {
			mod, _ := n.graph.Module(next)
			if len(mod.Order) > 0 {
				return model.Target{Module: next, QuestionID: mod.Order[0]}, true
			}
		}
		break
	}
	return model.Target{}, false
}

// matchRule checks routing rules against an answer. Keys are scanned in
// sorted order so that a (misconfigured) rule set with several matching
// keys still resolves deterministically.
func matchRule(rules map[string]model.Target, answer model.Value) (model.Target, bool) {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if answer.IsList() {
			for _, item := range answer.Many {
				if item == k {
					return rules[k], true
				}
			}
			continue
		}
		if answer.One == k {
			return rules[k], true
		}
	}
	return model.Target{}, false
}

package survey

import "cityforall/internal/model"

// Graph is the immutable in-memory survey definition: modules in
// traversal order, their questions, and the shared scale arrays that
// levels may reference by name. Loaded once per process and read-only
// afterwards, so it is freely shared across sessions.
type Graph struct {
	modules     map[string]*model.Module
	moduleOrder []string
	scales      map[string][]string
}

// Module returns a module by name.
func (g *Graph) Module(name string) (*model.Module, bool) {
	m, ok := g.modules[name]
	return m, ok
}

// ModuleOrder returns module names in traversal order.
func (g *Graph) ModuleOrder() []string {
	return g.moduleOrder
}

// Scale returns a named shared scale array.
func (g *Graph) Scale(name string) ([]string, bool) {
	s, ok := g.scales[name]
	return s, ok
}

// QuestionCount reports the total number of questions across modules.
func (g *Graph) QuestionCount() int {
	n := 0
	for _, m := range g.modules {
		n += len(m.Order)
	}
	return n
}

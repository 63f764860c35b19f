package engine

import "fmt"

// dagNode wraps one task's position in the dependency graph. Edges store
// task ids rather than pointers; the owning Graph maps ids to nodes.
type dagNode struct {
	id         string
	deps       map[string]struct{}
	dependents map[string]struct{}
	level      int
}

// Graph is the validated dependency graph for one execution request. It is
// built once, leveled once, and discarded when the request completes.
type Graph struct {
	tasks map[string]*Task
	nodes map[string]*dagNode
	// order preserves submission order so leveling and cycle reporting are
	// deterministic.
	order []string
}

// BuildGraph creates one node per task and wires dependency edges in both
// directions. It fails on duplicate task ids before any edges are built, and
// on dependencies referencing unknown task ids.
func BuildGraph(tasks []Task) (*Graph, error) {
	g := &Graph{
		tasks: make(map[string]*Task, len(tasks)),
		nodes: make(map[string]*dagNode, len(tasks)),
		order: make([]string, 0, len(tasks)),
	}

	for i := range tasks {
		t := &tasks[i]
		if _, exists := g.nodes[t.ID]; exists {
			return nil, &DuplicateTaskIDError{TaskID: t.ID}
		}
		g.tasks[t.ID] = t
		g.nodes[t.ID] = &dagNode{
			id:         t.ID,
			deps:       make(map[string]struct{}),
			dependents: make(map[string]struct{}),
			level:      -1,
		}
		g.order = append(g.order, t.ID)
	}

	for _, id := range g.order {
		node := g.nodes[id]
		for _, dep := range g.tasks[id].DependsOn {
			target, ok := g.nodes[dep]
			if !ok {
				return nil, &MissingDependencyError{TaskID: id, MissingID: dep}
			}
			node.deps[dep] = struct{}{}
			target.dependents[id] = struct{}{}
		}
	}

	return g, nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.order) }

// Task returns the task with the given id, or nil.
func (g *Graph) Task(id string) *Task { return g.tasks[id] }

// Dependencies returns the direct dependency ids of a task in submission order.
func (g *Graph) Dependencies(id string) []string {
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	deps := make([]string, 0, len(node.deps))
	for _, candidate := range g.order {
		if _, ok := node.deps[candidate]; ok {
			deps = append(deps, candidate)
		}
	}
	return deps
}

// DetectCycle runs a depth-first search with an explicit recursion stack. If
// a cycle exists, it returns the cycle as an ordered list of ids starting and
// ending at the same node; a self-dependency yields [A, A]. Returns nil when
// the graph is acyclic.
func (g *Graph) DetectCycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))

	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inStack
		stack = append(stack, id)

		node := g.nodes[id]
		for _, next := range g.order {
			if _, ok := node.dependents[next]; !ok {
				continue
			}
			switch state[next] {
			case inStack:
				// Slice the recursion stack from the revisited node and
				// close the loop.
				for i, sid := range stack {
					if sid == next {
						cycle = append(append([]string{}, stack[i:]...), next)
						return true
					}
				}
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// Levels groups tasks by dependency level using Kahn's algorithm and assigns
// each node's level as it is emitted. Tasks within a level have no ordering
// relationship and may run concurrently. Cycle detection must run first; a
// shortfall in emitted nodes here indicates an internal invariant violation.
func (g *Graph) Levels() ([][]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id, node := range g.nodes {
		inDegree[id] = len(node.deps)
	}

	frontier := make([]string, 0)
	for _, id := range g.order {
		if inDegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	var levels [][]string
	emitted := 0

	for len(frontier) > 0 {
		for _, id := range frontier {
			g.nodes[id].level = len(levels)
		}
		levels = append(levels, frontier)
		emitted += len(frontier)

		next := make([]string, 0)
		ready := make(map[string]struct{})
		for _, id := range frontier {
			for dep := range g.nodes[id].dependents {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready[dep] = struct{}{}
				}
			}
		}
		for _, id := range g.order {
			if _, ok := ready[id]; ok {
				next = append(next, id)
			}
		}
		frontier = next
	}

	if emitted != len(g.nodes) {
		return nil, fmt.Errorf("engine: leveling emitted %d of %d nodes; cycle detection must run first", emitted, len(g.nodes))
	}

	return levels, nil
}

// Edges returns the dependency -> dependent edge list, independent of level
// assignment, in submission order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.order {
		node := g.nodes[from]
		for _, to := range g.order {
			if _, ok := node.dependents[to]; ok {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
	}
	return edges
}

// ValidateAndBuild composes graph construction, cycle detection, and
// leveling. It is the only entry point the orchestrator calls. A detected
// cycle aborts before any leveling or execution occurs.
func ValidateAndBuild(tasks []Task) (*Graph, [][]string, error) {
	g, err := BuildGraph(tasks)
	if err != nil {
		return nil, nil, err
	}
	if cycle := g.DetectCycle(); cycle != nil {
		return nil, nil, &CircularDependencyError{Cycle: cycle}
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, nil, err
	}
	return g, levels, nil
}

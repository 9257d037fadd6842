package record

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Cycle is a dependency cycle among the jobs of a flow.
type Cycle struct {
	Path    []string `json:"path"` // job uuids: ["a", "b", "a"]
	Message string   `json:"message"`
}

// Cycles reports the dependency cycles of the flow at uuid level using
// Tarjan's strongly connected components. An acyclic flow returns an empty
// list. A malformed parents table returns no cycles; Validate reports it.
func (f *FlowRecord) Cycles() []Cycle {
	graph := f.uuidGraph()
	cycles := []Cycle{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b Cycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// dependencyGraph maps parent uuid -> child uuids, sorted and deduplicated.
type dependencyGraph map[string][]string

func (f *FlowRecord) uuidGraph() dependencyGraph {
	graph := make(dependencyGraph)
	for child, byIndex := range f.Parents {
		if graph[child] == nil {
			graph[child] = []string{}
		}
		for _, parents := range byIndex {
			for _, p := range parents {
				graph[p] = append(graph[p], child)
			}
		}
	}
	for node, next := range graph {
		slices.Sort(next)
		graph[node] = slices.Compact(next)
	}
	return graph
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC returns the strongly connected components of graph. Nodes and
// edges are visited in sorted order so the result is deterministic.
// Components come out in reverse topological order; callers sort them.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// v gets the next discovery index and starts as its own root.
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				// Tree edge: whatever w reaches, v reaches too.
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Back edge into the component still being built.
				lowlink[v] = min(lowlink[v], indices[w])
			}
			// Otherwise w belongs to a finished component; ignore it.
		}

		// v is the root of a component: everything above it on the stack
		// belongs with it.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range slices.Sorted(maps.Keys(graph)) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph dependencyGraph) Cycle {
	// A single-node component only reaches here with a self loop.
	if len(scc) == 1 {
		return Cycle{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("job %s depends on itself", scc[0]),
		}
	}
	path := cyclePath(scc, graph)
	return Cycle{
		Path:    path,
		Message: "dependency cycle: " + strings.Join(path, " -> "),
	}
}

// cyclePath returns a closed walk through the SCC that starts and ends at its
// smallest uuid. It descends depth first into unvisited members in sorted
// order and closes the walk at the deepest member with an edge back to the
// start, backtracking out of branches that never lead back.
//
// Every member reaches the start, so the search from the start's first
// child always closes. Members are marked once and never revisited, which
// keeps the walk linear in the size of the component.
func cyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	path := []string{start}
	visited := map[string]bool{start: true}

	var walk func(node string) bool
	walk = func(node string) bool {
		for _, next := range graph[node] {
			if !members[next] || visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, next)
			if walk(next) {
				return true
			}
			// Dead end below next: drop it from the walk.
			path = path[:len(path)-1]
		}
		if node != start && slices.Contains(graph[node], start) {
			path = append(path, start)
			return true
		}
		return false
	}

	walk(start)
	return path
}

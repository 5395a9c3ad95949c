package validator

import (
	"sort"
	"strings"

	"github.com/campushive/hivelab/pkg/domain"
)

// graph is the instance-level adjacency of a composition. Nodes keep element
// order and edges keep connection order so reports are deterministic.
type graph struct {
	nodes []string
	edges map[string][]string
}

func buildGraph(c *domain.ToolComposition) *graph {
	g := &graph{edges: make(map[string][]string)}
	known := make(map[string]bool, len(c.Elements))
	for _, el := range c.Elements {
		if known[el.InstanceID] {
			continue
		}
		known[el.InstanceID] = true
		g.nodes = append(g.nodes, el.InstanceID)
	}
	for _, conn := range c.Connections {
		from, to := conn.From.InstanceID, conn.To.InstanceID
		if !known[from] || !known[to] {
			continue
		}
		g.edges[from] = append(g.edges[from], to)
	}
	return g
}

const (
	white = iota
	grey
	black
)

// cycles returns every distinct cycle reachable in the graph as a closed path
// ("a", "b", "a"). The walk is iterative so deep compositions cannot exhaust
// the goroutine stack.
func (g *graph) cycles() [][]string {
	color := make(map[string]int, len(g.nodes))
	seen := make(map[string]bool)
	var found [][]string

	type frame struct {
		node string
		next int
	}

	for _, root := range g.nodes {
		if color[root] != white {
			continue
		}
		stack := []frame{{node: root}}
		path := []string{root}
		color[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succ := g.edges[top.node]
			if top.next >= len(succ) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				continue
			}
			nxt := succ[top.next]
			top.next++

			switch color[nxt] {
			case white:
				color[nxt] = grey
				stack = append(stack, frame{node: nxt})
				path = append(path, nxt)
			case grey:
				start := indexOf(path, nxt)
				loop := append(append([]string(nil), path[start:]...), nxt)
				if k := cycleKey(loop); !seen[k] {
					seen[k] = true
					found = append(found, loop)
				}
			}
		}
	}
	return found
}

// cycleKey identifies a cycle regardless of where the walk entered it.
func cycleKey(loop []string) string {
	body := loop[:len(loop)-1]
	min := 0
	for i := range body {
		if body[i] < body[min] {
			min = i
		}
	}
	rotated := append(append([]string(nil), body[min:]...), body[:min]...)
	return strings.Join(rotated, "\x00")
}

func indexOf(items []string, s string) int {
	for i, item := range items {
		if item == s {
			return i
		}
	}
	return -1
}

// topoOrder returns a Kahn ordering of an acyclic graph, ties broken by id.
func (g *graph) topoOrder() []string {
	indeg := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n] += 0
		for _, m := range g.edges[n] {
			indeg[m]++
		}
	}
	var ready []string
	for _, n := range g.nodes {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)
	var order []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range g.edges[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
				sort.Strings(ready)
			}
		}
	}
	return order
}

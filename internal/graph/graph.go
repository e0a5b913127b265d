// Package graph provides the dependency graph used to schedule task nodes.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/clayworks/clay/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among task nodes.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of task nodes.
// Edges represent "blocked by" relationships. Insertion order is preserved
// and used as the deterministic tie-break when scheduling.
//
// The orchestrator's scheduling loop is the single writer; the mutex exists
// so event emitters and tests can read concurrently.
type DependencyGraph struct {
	// nodes maps node ID to the node itself.
	nodes map[string]*models.TaskNode
	// order records node IDs in insertion order.
	order []string
	// edges maps node ID to the IDs of nodes it depends on.
	edges map[string][]string
	// mu guards all fields.
	mu sync.RWMutex
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*models.TaskNode),
		edges: make(map[string][]string),
	}
}

// Build registers the given nodes and their dependency edges.
// It rejects duplicate IDs, edges to unknown nodes, and cycles.
// Nodes are added only before scheduling begins; the graph is static
// for the rest of the run.
func (g *DependencyGraph) Build(nodes []*models.TaskNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, node := range nodes {
		if _, exists := g.nodes[node.ID]; exists {
			return fmt.Errorf("duplicate node ID %s", node.ID)
		}
		if node.Status == "" {
			node.Status = models.NodePending
		}
		g.nodes[node.ID] = node
		g.order = append(g.order, node.ID)
		g.edges[node.ID] = nil
	}

	for _, node := range nodes {
		for _, depID := range node.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("node %s depends on unknown node %s", node.ID, depID)
			}
			g.edges[node.ID] = append(g.edges[node.ID], depID)
		}
	}

	if path := g.findCycle(); path != nil {
		return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(path, " -> "))
	}

	return nil
}

// findCycle returns the node IDs forming a cycle, or nil if the graph is
// acyclic. Uses depth-first search with coloring to detect back edges.
// Caller must hold g.mu.
func (g *DependencyGraph) findCycle() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var cycle []string
	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		colors[id] = 1
		path = append(path, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge - trim the path to the cycle itself.
				start := 0
				for i, p := range path {
					if p == depID {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), depID)
				return true
			case 0:
				if visit(depID, path) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id, nil) {
				return cycle
			}
		}
	}

	return nil
}

// ReadySet returns the nodes whose dependencies have all succeeded,
// transitioning them from Pending to Ready. The result is ordered by
// priority (higher first) with insertion order breaking ties.
func (g *DependencyGraph) ReadySet() []*models.TaskNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ready []*models.TaskNode
	for _, id := range g.order {
		node := g.nodes[id]
		if node.Status != models.NodePending && node.Status != models.NodeReady {
			continue
		}

		blocked := false
		for _, depID := range g.edges[id] {
			if g.nodes[depID].Status != models.NodeSucceeded {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		node.Status = models.NodeReady
		ready = append(ready, node)
	}

	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority > ready[j].Priority
	})

	return ready
}

// MarkRunning transitions a Ready node to Running.
func (g *DependencyGraph) MarkRunning(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	if node.Status != models.NodeReady {
		return fmt.Errorf("node %s is %s, not ready", id, node.Status)
	}
	node.Status = models.NodeRunning
	return nil
}

// MarkSucceeded records a successful result and unblocks dependents.
func (g *DependencyGraph) MarkSucceeded(id string, result *models.AgentResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	node.Status = models.NodeSucceeded
	node.Result = result
	return nil
}

// MarkFailed records a failed result and cascades: every node that
// transitively depends on the failed node becomes Skipped with its
// SkipCause set to the failed node's ID. Nodes already running or in a
// terminal state are left untouched.
func (g *DependencyGraph) MarkFailed(id string, result *models.AgentResult) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	node.Status = models.NodeFailed
	node.Result = result

	for _, depID := range g.transitiveDependents(id) {
		dep := g.nodes[depID]
		if dep.Status == models.NodePending || dep.Status == models.NodeReady {
			dep.Status = models.NodeSkipped
			dep.SkipCause = id
		}
	}
	return nil
}

// transitiveDependents returns every node that directly or indirectly
// depends on the given node. Caller must hold g.mu.
func (g *DependencyGraph) transitiveDependents(id string) []string {
	// Reverse adjacency, walked breadth-first.
	seen := map[string]bool{id: true}
	frontier := []string{id}
	var result []string

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		for _, candidate := range g.order {
			if seen[candidate] {
				continue
			}
			for _, depID := range g.edges[candidate] {
				if depID == current {
					seen[candidate] = true
					frontier = append(frontier, candidate)
					result = append(result, candidate)
					break
				}
			}
		}
	}

	return result
}

// Complete returns true when every node has reached a terminal state.
func (g *DependencyGraph) Complete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, node := range g.nodes {
		if !node.Status.Terminal() {
			return false
		}
	}
	return true
}

// Node returns the node for the given ID, or nil if not found.
func (g *DependencyGraph) Node(id string) *models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *DependencyGraph) Nodes() []*models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*models.TaskNode, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs the given node depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// Dependents returns the IDs of nodes that directly depend on the given node.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, candidate := range g.order {
		for _, depID := range g.edges[candidate] {
			if depID == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

package weld

import (
	"math"

	"github.com/piwi3910/SlabNest/internal/model"
)

// Threshold is the weld distance in mm. Endpoints strictly closer than this
// to an existing vertex are merged into it.
const Threshold = 2.0

type segment struct {
	a, b model.Point2D
}

type edge struct {
	u, v  int
	alive bool
}

// graph is an undirected multigraph over an arena of welded points.
// Vertices are identified by their index into points.
type graph struct {
	points []model.Point2D
	edges  []edge
	degree []int
}

func newGraph(segments []segment) *graph {
	g := &graph{}
	for _, s := range segments {
		u := g.findOrCreateVertex(s.a)
		v := g.findOrCreateVertex(s.b)
		if u == v {
			continue
		}
		g.edges = append(g.edges, edge{u: u, v: v, alive: true})
		g.degree[u]++
		g.degree[v]++
	}
	return g
}

// findOrCreateVertex returns the first vertex within Threshold of p, or
// appends p as a new vertex.
func (g *graph) findOrCreateVertex(p model.Point2D) int {
	for i, v := range g.points {
		if distance(p, v) < Threshold {
			return i
		}
	}
	g.points = append(g.points, p)
	g.degree = append(g.degree, 0)
	return len(g.points) - 1
}

func distance(p1, p2 model.Point2D) float64 {
	return math.Hypot(p1.X-p2.X, p1.Y-p2.Y)
}

// pruneSpurs repeatedly removes the single edge of every degree-1 vertex
// until none is left. What survives is the 2-core of the graph.
func (g *graph) pruneSpurs() {
	incident := make([][]int, len(g.points))
	for i, e := range g.edges {
		if !e.alive {
			continue
		}
		incident[e.u] = append(incident[e.u], i)
		incident[e.v] = append(incident[e.v], i)
	}

	var queue []int
	for v, d := range g.degree {
		if d == 1 {
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if g.degree[v] != 1 {
			continue
		}
		for _, ei := range incident[v] {
			e := &g.edges[ei]
			if !e.alive {
				continue
			}
			e.alive = false
			g.degree[e.u]--
			g.degree[e.v]--
			other := e.u
			if other == v {
				other = e.v
			}
			if g.degree[other] == 1 {
				queue = append(queue, other)
			}
			break
		}
	}
}

// edgeCount returns the number of edges still in the graph.
func (g *graph) edgeCount() int {
	n := 0
	for _, e := range g.edges {
		if e.alive {
			n++
		}
	}
	return n
}

// adjacency builds neighbour lists from the live edges in insertion order.
func (g *graph) adjacency() [][]int {
	adj := make([][]int, len(g.points))
	for _, e := range g.edges {
		if !e.alive {
			continue
		}
		adj[e.u] = append(adj[e.u], e.v)
		adj[e.v] = append(adj[e.v], e.u)
	}
	return adj
}

// loops walks every unvisited vertex of degree >= 2, always stepping to the
// first neighbour that is not the vertex it came from. A walk ends when it
// returns to its start or reaches an already visited vertex. Walks of two
// vertices or fewer are discarded.
func (g *graph) loops() [][]int {
	adj := g.adjacency()
	visited := make([]bool, len(g.points))

	var found [][]int
	for start := range g.points {
		if visited[start] || len(adj[start]) < 2 {
			continue
		}
		visited[start] = true
		path := []int{start}
		prev, next := start, adj[start][0]
		for !visited[next] {
			visited[next] = true
			path = append(path, next)
			step, ok := firstOther(adj[next], prev)
			if !ok {
				break
			}
			prev, next = next, step
		}
		if len(path) > 2 {
			found = append(found, path)
		}
	}
	return found
}

func firstOther(neighbours []int, exclude int) (int, bool) {
	for _, n := range neighbours {
		if n != exclude {
			return n, true
		}
	}
	return 0, false
}

// outline maps vertex indices to their positions.
func (g *graph) outline(path []int) model.Outline {
	o := make(model.Outline, len(path))
	for i, v := range path {
		o[i] = g.points[v]
	}
	return o
}

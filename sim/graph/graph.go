// Package graph holds the immutable bipartite adjacency used by the matching
// engine. Offline vertices are 0..Offline()-1, online vertices 0..Online()-1;
// the two id spaces are independent.
package graph

import (
	"fmt"
	"sort"
)

// Graph is an immutable bipartite graph. Adjacency is symmetric: every edge is
// recorded under both of its endpoints, and each neighbor list is sorted and
// free of duplicates.
type Graph struct {
	offline    int
	online     int
	offlineAdj [][]int // offline vertex -> online neighbors
	onlineAdj  [][]int // online vertex -> offline neighbors
	edges      int
}

// New builds a graph from (offline, online) edge pairs. Duplicate edges are
// collapsed.
func New(offline, online int, edges [][2]int) (*Graph, error) {
	if offline < 0 || online < 0 {
		return nil, fmt.Errorf("graph: negative vertex count (%d offline, %d online)", offline, online)
	}
	g := &Graph{
		offline:    offline,
		online:     online,
		offlineAdj: make([][]int, offline),
		onlineAdj:  make([][]int, online),
	}
	for i, e := range edges {
		u, v := e[0], e[1]
		if u < 0 || u >= offline || v < 0 || v >= online {
			return nil, fmt.Errorf("graph: edge %d (%d, %d) out of range for %dx%d graph", i, u, v, offline, online)
		}
		g.offlineAdj[u] = append(g.offlineAdj[u], v)
		g.onlineAdj[v] = append(g.onlineAdj[v], u)
	}
	for u := range g.offlineAdj {
		g.offlineAdj[u] = sortedUnique(g.offlineAdj[u])
		g.edges += len(g.offlineAdj[u])
	}
	for v := range g.onlineAdj {
		g.onlineAdj[v] = sortedUnique(g.onlineAdj[v])
	}
	return g, nil
}

// UpperTriangle builds the synthetic graph in which online vertex i is adjacent
// to offline vertices i, i+1, ..., offline-1.
func UpperTriangle(offline, online int) *Graph {
	edges := make([][2]int, 0)
	for i := 0; i < online; i++ {
		for j := i; j < offline; j++ {
			edges = append(edges, [2]int{j, i})
		}
	}
	g, _ := New(offline, online, edges)
	return g
}

// Complete builds the complete bipartite graph K(offline, online).
func Complete(offline, online int) *Graph {
	edges := make([][2]int, 0, offline*online)
	for u := 0; u < offline; u++ {
		for v := 0; v < online; v++ {
			edges = append(edges, [2]int{u, v})
		}
	}
	g, _ := New(offline, online, edges)
	return g
}

// Offline returns the number of offline vertices.
func (g *Graph) Offline() int { return g.offline }

// Online returns the number of online vertices.
func (g *Graph) Online() int { return g.online }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.edges }

// OnlineNeighbors returns the offline neighbors of online vertex v.
// The slice is shared; callers must not modify it.
func (g *Graph) OnlineNeighbors(v int) []int {
	return g.onlineAdj[v]
}

// OfflineNeighbors returns the online neighbors of offline vertex u.
// The slice is shared; callers must not modify it.
func (g *Graph) OfflineNeighbors(u int) []int {
	return g.offlineAdj[u]
}

// Adjacent reports whether online vertex v and offline vertex u share an edge.
func (g *Graph) Adjacent(v, u int) bool {
	if v < 0 || v >= g.online {
		return false
	}
	nbrs := g.onlineAdj[v]
	i := sort.SearchInts(nbrs, u)
	return i < len(nbrs) && nbrs[i] == u
}

// AdjacencyRow returns a dense 0/1 row over offline vertices for online vertex v.
func (g *Graph) AdjacencyRow(v int) []float64 {
	row := make([]float64, g.offline)
	for _, u := range g.onlineAdj[v] {
		row[u] = 1
	}
	return row
}

func sortedUnique(xs []int) []int {
	if len(xs) < 2 {
		return xs
	}
	sort.Ints(xs)
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

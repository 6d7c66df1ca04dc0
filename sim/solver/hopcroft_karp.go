// Package solver computes maximum bipartite matchings between a realized
// arrival sequence and the offline vertices of a graph.
package solver

import (
	"context"
	"fmt"

	"github.com/allocsim/allocsim/sim/graph"
)

// Unmatched marks a left or right vertex with no partner.
const Unmatched = -1

const infDistance = int(^uint(0) >> 1)

// HopcroftKarp solves maximum cardinality matching in O(E sqrt(V)).
// The zero value is ready to use and safe for concurrent calls.
type HopcroftKarp struct{}

// Solve matches each arrival (a realized online vertex, repeats allowed) to
// at most one distinct offline neighbor. The result has one entry per
// arrival: the matched offline vertex or Unmatched.
func (HopcroftKarp) Solve(ctx context.Context, g *graph.Graph, arrivals []int) ([]int, error) {
	adj := make([][]int, len(arrivals))
	for i, v := range arrivals {
		if v < 0 || v >= g.Online() {
			return nil, fmt.Errorf("solver: arrival %d is online vertex %d, graph has %d", i, v, g.Online())
		}
		adj[i] = g.OnlineNeighbors(v)
	}
	m := newMatcher(len(arrivals), g.Offline(), adj)
	if _, err := m.run(ctx); err != nil {
		return nil, err
	}
	return m.matchL, nil
}

// MaxMatching runs Hopcroft-Karp over an explicit left-to-right adjacency.
// It returns the partner of every left vertex and the matching size.
func MaxMatching(ctx context.Context, right int, adj [][]int) ([]int, int, error) {
	for u, vs := range adj {
		for _, v := range vs {
			if v < 0 || v >= right {
				return nil, 0, fmt.Errorf("solver: edge (%d, %d) out of range for %d right vertices", u, v, right)
			}
		}
	}
	m := newMatcher(len(adj), right, adj)
	size, err := m.run(ctx)
	if err != nil {
		return nil, 0, err
	}
	return m.matchL, size, nil
}

type matcher struct {
	adj      [][]int
	distance []int
	matchL   []int
	matchR   []int
}

func newMatcher(left, right int, adj [][]int) *matcher {
	m := &matcher{
		adj:      adj,
		distance: make([]int, left),
		matchL:   make([]int, left),
		matchR:   make([]int, right),
	}
	for i := range m.matchL {
		m.matchL[i] = Unmatched
	}
	for i := range m.matchR {
		m.matchR[i] = Unmatched
	}
	return m
}

func (m *matcher) run(ctx context.Context) (int, error) {
	size := 0
	for m.bfs() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for u := range m.matchL {
			if m.matchL[u] == Unmatched && m.dfs(u) {
				size++
			}
		}
	}
	return size, nil
}

// bfs layers the free left vertices and reports whether an augmenting path exists.
func (m *matcher) bfs() bool {
	queue := make([]int, 0, len(m.matchL))
	for u := range m.matchL {
		if m.matchL[u] == Unmatched {
			m.distance[u] = 0
			queue = append(queue, u)
		} else {
			m.distance[u] = infDistance
		}
	}

	found := false
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range m.adj[u] {
			w := m.matchR[v]
			if w == Unmatched {
				found = true
			} else if m.distance[w] == infDistance {
				m.distance[w] = m.distance[u] + 1
				queue = append(queue, w)
			}
		}
	}
	return found
}

func (m *matcher) dfs(u int) bool {
	for _, v := range m.adj[u] {
		w := m.matchR[v]
		if w == Unmatched || (m.distance[w] == m.distance[u]+1 && m.dfs(w)) {
			m.matchL[u] = v
			m.matchR[v] = u
			return true
		}
	}
	m.distance[u] = infDistance
	return false
}
